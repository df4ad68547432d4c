// Package auth はセッションCookieによる認証フローを提供する。
// IdPが発行した短命なIDトークンを長期セッショントークンと交換し、
// 以降のリクエストではCookieのトークンから現在のユーザーを解決する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/prepwise/internal/identity"
	"github.com/hitoshi/prepwise/internal/metrics"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/session"
)

// 認証アクションのメッセージ
const (
	MsgSignUpSucceeded = "Account created successfully. Please sign in."
	MsgSignInSucceeded = "Signed in successfully."
	MsgSignInFailed    = "Failed to log into account. Please try again."
	MsgSignUpFailed    = "Failed to create account. Please try again."
	MsgRevokeFailed    = "Failed to revoke sessions. Please try again."
)

// Directory はユーザーディレクトリの操作インターフェース。
type Directory interface {
	Register(ctx context.Context, uid, name, email string) (*model.User, error)
	EnsureRecord(ctx context.Context, rec *identity.UserRecord, fallbackEmail string) error
	Find(ctx context.Context, uid string) (*model.User, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider  identity.Provider
	directory Directory
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(provider identity.Provider, directory Directory, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		provider:  provider,
		directory: directory,
		metrics:   collector,
	}
}

// SignUp はIdPで作成済みのUIDに対してディレクトリレコードを作成する。
func (s *Service) SignUp(ctx context.Context, uid, name, email string) error {
	_, err := s.directory.Register(ctx, uid, name, email)
	err = toAPIError(err, MsgSignUpFailed)
	s.recordResult(metrics.AuthActionSignUp, err)
	return err
}

// Register はIdPに認証主体を作成し、続けてディレクトリレコードを作成する。
// クライアントSDKのアカウント作成とSignUpを1回の呼び出しで行う。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	rec, err := s.provider.CreateUser(ctx, email, password, name)
	if err != nil {
		slog.Warn("IdPでのユーザー作成に失敗しました",
			slog.String("code", identity.CodeOf(err)),
			slog.String("error", err.Error()),
		)
		apiErr := ProviderErrorToAPIError(err)
		s.metrics.RecordAuthResult(metrics.AuthActionRegister, apiErr.Code)
		return nil, apiErr
	}

	u, err := s.directory.Register(ctx, rec.UID, name, rec.Email)
	err = toAPIError(err, MsgSignUpFailed)
	s.recordResult(metrics.AuthActionRegister, err)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// IssueIDToken はメールアドレスとパスワードを検証し、短命なIDトークンを返す。
func (s *Service) IssueIDToken(ctx context.Context, email, password string) (string, error) {
	token, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		slog.Info("パスワード認証に失敗しました",
			slog.String("code", identity.CodeOf(err)),
		)
		return "", ProviderErrorToAPIError(err)
	}
	return token, nil
}

// SignIn はIDトークンをセッショントークンと交換し、sessに記録する。
// 続けてディレクトリレコードを補修するが、補修の失敗はログのみでCookieは取り消さない。
func (s *Service) SignIn(ctx context.Context, sess *session.Context, email, idToken string) error {
	err := s.signIn(ctx, sess, email, idToken)
	s.recordResult(metrics.AuthActionSignIn, err)
	return err
}

func (s *Service) signIn(ctx context.Context, sess *session.Context, email, idToken string) error {
	rec, err := s.provider.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsUserNotFound(err) {
			return model.NewUserNotFoundError()
		}
		slog.Error("IdPのユーザー検索に失敗しました", slog.String("error", err.Error()))
		return model.NewRemoteUnavailableError(MsgSignInFailed)
	}

	token, err := s.provider.CreateSessionToken(ctx, idToken, session.MaxAge)
	if err != nil {
		slog.Warn("セッショントークンの発行に失敗しました",
			slog.String("user_id", rec.UID),
			slog.String("error", err.Error()),
		)
		if identity.CodeOf(err) == identity.CodeInvalidToken {
			return model.NewAuthFailureError(MsgSignInFailed)
		}
		return model.NewRemoteUnavailableError(MsgSignInFailed)
	}
	sess.Set(token)

	if err := s.directory.EnsureRecord(ctx, rec, email); err != nil {
		slog.Error("ユーザーレコードの補修に失敗しました",
			slog.String("user_id", rec.UID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("サインインしました", slog.String("user_id", rec.UID))
	return nil
}

// SignOut はセッションCookieを破棄する。IdPは呼び出さない。
func (s *Service) SignOut(sess *session.Context) {
	sess.Clear()
}

// GetCurrentUser はセッショントークンから現在のユーザーを解決する。
// トークンが空・無効・失効済み、またはディレクトリレコードが無い場合はnilを返す。
func (s *Service) GetCurrentUser(ctx context.Context, token string) *model.User {
	if token == "" {
		return nil
	}

	claims, err := s.provider.VerifySessionToken(ctx, token, true)
	if err != nil {
		slog.Info("セッションの検証に失敗しました",
			slog.String("code", identity.CodeOf(err)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	u, err := s.directory.Find(ctx, claims.UID)
	if err != nil {
		slog.Error("ユーザーの取得に失敗しました",
			slog.String("user_id", claims.UID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if u == nil {
		slog.Warn("セッションに対応するユーザーレコードがありません",
			slog.String("user_id", claims.UID),
		)
		return nil
	}
	return u
}

// IsAuthenticated は現在のユーザーが解決できるかどうかを返す。
func (s *Service) IsAuthenticated(ctx context.Context, token string) bool {
	return s.GetCurrentUser(ctx, token) != nil
}

// RevokeSessions は指定ユーザーの発行済みセッションをすべて失効させる。
func (s *Service) RevokeSessions(ctx context.Context, uid string) error {
	if err := s.provider.RevokeSessions(ctx, uid); err != nil {
		return toAPIError(err, MsgRevokeFailed)
	}
	slog.Info("セッションを失効させました", slog.String("user_id", uid))
	return nil
}

func (s *Service) recordResult(action string, err error) {
	if err != nil {
		s.metrics.RecordAuthResult(action, model.CodeOf(err))
		return
	}
	s.metrics.RecordAuthResult(action, "success")
}

// toAPIError はAPIError以外のエラーをログに残し、fallbackメッセージのエラーに置き換える。
func toAPIError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	slog.Error(fallback, slog.String("error", err.Error()))
	return model.NewRemoteUnavailableError(fallback)
}

// ProviderErrorToAPIError はIdPのエラーコードを利用者向けのエラーに変換する。
// 想定外のコードは "Error: <原文>" の形で返す。
func ProviderErrorToAPIError(err error) *model.APIError {
	switch identity.CodeOf(err) {
	case identity.CodeEmailAlreadyInUse:
		return model.NewAuthFailureError("This email is already registered. Try signing in.")
	case identity.CodeUserNotFound:
		return model.NewAuthFailureError("No account found. Please sign up.")
	case identity.CodeWrongPassword:
		return model.NewAuthFailureError("Incorrect password.")
	default:
		return model.NewRemoteUnavailableError(fmt.Sprintf("Error: %v", err))
	}
}
