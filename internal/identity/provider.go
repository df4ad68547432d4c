// Package identity は外部IdPとの連携を抽象化する。
// 短命なIDトークンの発行と検証、長期セッショントークンの発行、
// 失効チェック付きのセッション検証を提供する。
package identity

import (
	"context"
	"time"
)

// UserRecord はIdPが管理するユーザーのプロフィール。
type UserRecord struct {
	UID         string
	Email       string
	DisplayName string
}

// Claims はセッショントークンの検証結果。
type Claims struct {
	UID       string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provider はIdPの機能を表すインターフェース。
type Provider interface {
	// CreateUser はメールアドレスとパスワードで認証主体を作成する。
	CreateUser(ctx context.Context, email, password, displayName string) (*UserRecord, error)

	// SignInWithPassword はパスワード認証を行い、短命なIDトークンを返す。
	SignInWithPassword(ctx context.Context, email, password string) (string, error)

	// CreateSessionToken はIDトークンを検証し、expiresIn有効なセッショントークンと交換する。
	CreateSessionToken(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)

	// VerifySessionToken はセッショントークンを検証する。
	// checkRevoked がtrueの場合は失効済みトークンも拒否する。
	VerifySessionToken(ctx context.Context, token string, checkRevoked bool) (*Claims, error)

	// GetUserByEmail はメールアドレスでユーザーを検索する。
	// 見つからない場合はCodeUserNotFoundのErrorを返す。
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)

	// RevokeSessions は指定ユーザーの発行済みセッションをすべて失効させる。
	RevokeSessions(ctx context.Context, uid string) error
}
