// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/prepwise/internal/auth"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, uid, name, email string) error
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	IssueIDToken(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, sess *session.Context, email, idToken string) error
	SignOut(sess *session.Context)
	GetCurrentUser(ctx context.Context, token string) *model.User
	IsAuthenticated(ctx context.Context, token string) bool
	RevokeSessions(ctx context.Context, uid string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

func (c AuthHandlerConfig) cookie() session.CookieConfig {
	return session.CookieConfig{Secure: c.CookieSecure, Domain: c.CookieDomain}
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	validator RequestValidator
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, validator RequestValidator, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: validator,
		config:    config,
	}
}

// signUpRequest はIdPで作成済みのアカウントをディレクトリに登録するリクエスト。
// passwordはクライアントSDKが使用済みのため検証しない。
type signUpRequest struct {
	UID      string `json:"uid" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

type signInRequest struct {
	Email   string `json:"email" validate:"required,email"`
	IDToken string `json:"idToken" validate:"required"`
}

type registerResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type tokenResponse struct {
	Success bool   `json:"success"`
	IDToken string `json:"idToken"`
}

type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// SignUp はディレクトリレコードを作成する。
// POST /api/auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	if err := h.service.SignUp(r.Context(), req.UID, req.Name, req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, actionResponse{Success: true, Message: auth.MsgSignUpSucceeded})
}

// Register はIdPの認証主体とディレクトリレコードを続けて作成する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Success: true,
		Message: auth.MsgSignUpSucceeded,
		User:    user,
	})
}

// Token はメールアドレスとパスワードから短命なIDトークンを発行する。
// POST /api/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	token, err := h.service.IssueIDToken(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Success: true, IDToken: token})
}

// SignIn はIDトークンをセッションCookieと交換する。
// POST /api/auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	sess := session.FromRequest(r)
	err := h.service.SignIn(r.Context(), sess, req.Email, req.IDToken)
	// ヘッダー送出前にCookieを書き込む
	sess.WriteTo(w, h.config.cookie())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: auth.MsgSignInSucceeded})
}

// SignOut はセッションCookieを破棄する。
// POST /api/auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess := session.FromRequest(r)
	h.service.SignOut(sess)
	sess.WriteTo(w, h.config.cookie())

	writeJSON(w, http.StatusOK, actionResponse{Success: true})
}

// Me は現在のログインユーザーを返す。未ログインの場合はnullを返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.service.GetCurrentUser(r.Context(), session.FromRequest(r).Token())
	writeJSON(w, http.StatusOK, user)
}

// Session はログイン状態を返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	authenticated := h.service.IsAuthenticated(r.Context(), session.FromRequest(r).Token())
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: authenticated})
}

// Revoke は現在のユーザーの全セッションを失効させ、Cookieも破棄する。
// POST /api/auth/revoke
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RevokeSessions(r.Context(), userID); err != nil {
		slog.Error("failed to revoke sessions",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	sess := session.FromRequest(r)
	h.service.SignOut(sess)
	sess.WriteTo(w, h.config.cookie())

	writeJSON(w, http.StatusOK, actionResponse{Success: true})
}
