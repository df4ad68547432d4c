package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/repository"
)

// トークン用途。IDトークンをセッショントークンとして使い回せないようにする。
const (
	tokenUseID      = "id"
	tokenUseSession = "session"
)

// LocalConfig はLocalProviderの設定。
type LocalConfig struct {
	// Secret はHS256署名鍵。
	Secret string
	// Issuer はトークンのiss。
	Issuer string
	// IDTokenTTL はIDトークンの有効期間。
	IDTokenTTL time.Duration
}

// LocalProvider はPostgreSQLとJWTで実装した自己完結型のIdP。
// 失効は認証主体ごとのtokens_valid_afterで管理する。
type LocalProvider struct {
	repo       repository.IdentityRepository
	secret     []byte
	issuer     string
	idTokenTTL time.Duration
	now        func() time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	Use   string `json:"use"`
	jwt.RegisteredClaims
}

// NewLocalProvider はLocalProviderを生成する。
func NewLocalProvider(repo repository.IdentityRepository, cfg LocalConfig) *LocalProvider {
	ttl := cfg.IDTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalProvider{
		repo:       repo,
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		idTokenTTL: ttl,
		now:        time.Now,
	}
}

// CreateUser は認証主体を作成する。
func (p *LocalProvider) CreateUser(ctx context.Context, email, password, displayName string) (*UserRecord, error) {
	email = normalizeEmail(email)

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	ident := &model.Identity{
		UID:              uuid.New().String(),
		Email:            email,
		DisplayName:      displayName,
		PasswordHash:     hash,
		TokensValidAfter: time.Unix(0, 0).UTC(),
		CreatedAt:        p.now().UTC(),
	}
	if err := p.repo.Create(ctx, ident); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, newError(CodeEmailAlreadyInUse, err)
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return toUserRecord(ident), nil
}

// SignInWithPassword はパスワードを検証し、IDトークンを発行する。
func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (string, error) {
	ident, err := p.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if ident == nil {
		return "", newError(CodeUserNotFound, nil)
	}
	if !CheckPasswordHash(password, ident.PasswordHash) {
		return "", newError(CodeWrongPassword, nil)
	}

	return p.sign(ident.UID, ident.Email, tokenUseID, p.idTokenTTL)
}

// CreateSessionToken はIDトークンを検証し、セッショントークンを発行する。
func (p *LocalProvider) CreateSessionToken(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	claims, err := p.parse(idToken, tokenUseID)
	if err != nil {
		return "", err
	}

	ident, err := p.repo.FindByUID(ctx, claims.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if ident == nil {
		return "", newError(CodeUserNotFound, nil)
	}

	return p.sign(ident.UID, ident.Email, tokenUseSession, expiresIn)
}

// VerifySessionToken はセッショントークンを検証する。
// checkRevoked がtrueの場合、tokens_valid_afterより前に発行されたトークンを拒否する。
func (p *LocalProvider) VerifySessionToken(ctx context.Context, token string, checkRevoked bool) (*Claims, error) {
	claims, err := p.parse(token, tokenUseSession)
	if err != nil {
		return nil, err
	}

	if checkRevoked {
		ident, err := p.repo.FindByUID(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("failed to find identity: %w", err)
		}
		if ident == nil {
			return nil, newError(CodeUserNotFound, nil)
		}
		if claims.IssuedAt.Time.Before(ident.TokensValidAfter) {
			return nil, newError(CodeSessionRevoked, nil)
		}
	}

	return &Claims{
		UID:       claims.Subject,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// GetUserByEmail はメールアドレスで認証主体を検索する。
func (p *LocalProvider) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	ident, err := p.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if ident == nil {
		return nil, newError(CodeUserNotFound, nil)
	}
	return toUserRecord(ident), nil
}

// RevokeSessions は現在時刻より前に発行されたセッショントークンをすべて失効させる。
func (p *LocalProvider) RevokeSessions(ctx context.Context, uid string) error {
	validAfter := p.now().UTC().Truncate(time.Second)
	if err := p.repo.UpdateTokensValidAfter(ctx, uid, validAfter); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

func (p *LocalProvider) sign(uid, email, use string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := tokenClaims{
		Email: email,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) parse(token, use string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, newError(CodeInvalidToken, err)
	}
	if claims.Use != use || claims.Subject == "" {
		return nil, newError(CodeInvalidToken, fmt.Errorf("unexpected token use %q", claims.Use))
	}
	return claims, nil
}

func toUserRecord(ident *model.Identity) *UserRecord {
	return &UserRecord{
		UID:         ident.UID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// compile-time interface check
var _ Provider = (*LocalProvider)(nil)
