package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// firebaseAuthClient はFirebaseProviderが使用するauth.Clientのメソッド集合。
type firebaseAuthClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, sessionCookie string) (*auth.Token, error)
	VerifySessionCookieAndCheckRevoked(ctx context.Context, sessionCookie string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseConfig はFirebaseProviderの設定。
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	// APIKey はIdentity ToolkitのWeb APIキー。
	APIKey string
	// ToolkitEndpoint はIdentity Toolkit relyingparty APIのベースURL。空の場合はSDKの既定値。
	ToolkitEndpoint string
}

// FirebaseProvider はFirebase Authenticationを使用するIdP。
type FirebaseProvider struct {
	client  firebaseAuthClient
	toolkit *identitytoolkit.Service
}

// NewFirebaseProvider はFirebase Admin SDKを初期化してFirebaseProviderを生成する。
// CredentialsFileが空の場合はApplication Default Credentialsを使用する。
func NewFirebaseProvider(ctx context.Context, cfg FirebaseConfig) (*FirebaseProvider, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	toolkit, err := newToolkitService(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newFirebaseProvider(client, toolkit), nil
}

// newToolkitService はパスワード認証用のIdentity Toolkitクライアントを生成する。
// 認証はAPIキーのみで行う。
func newToolkitService(ctx context.Context, cfg FirebaseConfig) (*identitytoolkit.Service, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.ToolkitEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.ToolkitEndpoint))
	}

	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity toolkit: %w", err)
	}
	return svc, nil
}

func newFirebaseProvider(client firebaseAuthClient, toolkit *identitytoolkit.Service) *FirebaseProvider {
	return &FirebaseProvider{client: client, toolkit: toolkit}
}

// CreateUser はFirebaseにユーザーを作成する。
func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password, displayName string) (*UserRecord, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}

	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return nil, translateFirebaseError(err)
	}
	return fromFirebaseRecord(rec), nil
}

// GetUserByEmail はFirebaseからメールアドレスでユーザーを取得する。
func (p *FirebaseProvider) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	rec, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, translateFirebaseError(err)
	}
	return fromFirebaseRecord(rec), nil
}

// CreateSessionToken はIDトークンをFirebaseのセッションCookieと交換する。
func (p *FirebaseProvider) CreateSessionToken(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	cookie, err := p.client.SessionCookie(ctx, idToken, expiresIn)
	if err != nil {
		return "", newError(CodeInvalidToken, err)
	}
	return cookie, nil
}

// VerifySessionToken はFirebaseのセッションCookieを検証する。
func (p *FirebaseProvider) VerifySessionToken(ctx context.Context, token string, checkRevoked bool) (*Claims, error) {
	var (
		tok *auth.Token
		err error
	)
	if checkRevoked {
		tok, err = p.client.VerifySessionCookieAndCheckRevoked(ctx, token)
	} else {
		tok, err = p.client.VerifySessionCookie(ctx, token)
	}
	if err != nil {
		return nil, translateFirebaseError(err)
	}

	claims := &Claims{
		UID:       tok.UID,
		IssuedAt:  time.Unix(tok.IssuedAt, 0),
		ExpiresAt: time.Unix(tok.Expires, 0),
	}
	if email, ok := tok.Claims["email"].(string); ok {
		claims.Email = email
	}
	return claims, nil
}

// RevokeSessions は指定ユーザーのリフレッシュトークンを失効させる。
// 失効前に発行されたセッションCookieは失効チェック付き検証で拒否される。
func (p *FirebaseProvider) RevokeSessions(ctx context.Context, uid string) error {
	if err := p.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return translateFirebaseError(err)
	}
	return nil
}

// SignInWithPassword はIdentity Toolkitでパスワード認証を行い、IDトークンを返す。
func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (string, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}

	resp, err := p.toolkit.Relyingparty.VerifyPassword(req).Context(ctx).Do()
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			return "", translateToolkitError(gErr.Message)
		}
		return "", fmt.Errorf("requesting sign-in: %w", err)
	}
	if resp.IdToken == "" {
		return "", fmt.Errorf("sign-in response has no idToken")
	}
	return resp.IdToken, nil
}

// translateToolkitError はIdentity Toolkitのエラーメッセージをエラーコードに変換する。
// メッセージは "INVALID_PASSWORD : ..." のように詳細が付くことがある。
func translateToolkitError(message string) error {
	reason, _, _ := strings.Cut(message, " ")
	switch reason {
	case "EMAIL_NOT_FOUND":
		return newError(CodeUserNotFound, fmt.Errorf("%s", message))
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return newError(CodeWrongPassword, fmt.Errorf("%s", message))
	case "EMAIL_EXISTS":
		return newError(CodeEmailAlreadyInUse, fmt.Errorf("%s", message))
	default:
		return newError(CodeInternal, fmt.Errorf("%s", message))
	}
}

func translateFirebaseError(err error) error {
	switch {
	case auth.IsUserNotFound(err):
		return newError(CodeUserNotFound, err)
	case auth.IsEmailAlreadyExists(err):
		return newError(CodeEmailAlreadyInUse, err)
	case auth.IsSessionCookieRevoked(err):
		return newError(CodeSessionRevoked, err)
	case auth.IsSessionCookieInvalid(err), auth.IsIDTokenInvalid(err):
		return newError(CodeInvalidToken, err)
	default:
		return newError(CodeInternal, err)
	}
}

func fromFirebaseRecord(rec *auth.UserRecord) *UserRecord {
	if rec == nil || rec.UserInfo == nil {
		return &UserRecord{}
	}
	return &UserRecord{
		UID:         rec.UID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
	}
}

// compile-time interface check
var (
	_ Provider           = (*FirebaseProvider)(nil)
	_ firebaseAuthClient = (*auth.Client)(nil)
)
