package identity

import (
	"errors"
	"fmt"
)

// IdPが返すエラーコード
const (
	CodeEmailAlreadyInUse = "email-already-in-use"
	CodeUserNotFound      = "user-not-found"
	CodeWrongPassword     = "wrong-password"
	CodeInvalidToken      = "invalid-token"
	CodeSessionRevoked    = "session-revoked"
	CodeInternal          = "internal-error"
)

// Error はIdPの失敗をコード付きで表す。
type Error struct {
	Code string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err == nil {
		return "identity: " + e.Code
	}
	return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf はエラーチェーンからIdPのエラーコードを取り出す。
// identity.Errorを含まない場合は空文字を返す。
func CodeOf(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

// IsUserNotFound はユーザー不在エラーかどうかを判定する。
func IsUserNotFound(err error) bool {
	return CodeOf(err) == CodeUserNotFound
}
