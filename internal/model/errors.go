package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, interview, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeAuthFailure       = "AUTH_FAILURE"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeCSRF              = "CSRF_INVALID"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// CodeOf はエラーチェーンからAPIErrorのコードを取り出す。
// APIErrorを含まない場合はINTERNAL_ERRORを返す。
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrCodeInternal
}

// ToRemoteUnavailable はAPIErrorを含まないエラーをREMOTE_UNAVAILABLEに置き換える。
// APIErrorを含む場合はそのAPIErrorを返す。
func ToRemoteUnavailable(err error, message string) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewRemoteUnavailableError(message)
}

// NewUserAlreadyExistsError はディレクトリレコード重複エラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyExists,
		Message:  "User already exists. Please sign in.",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewUserNotFoundError はIdPにユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "User does not exist. Create an account.",
		Category: "auth",
		Action:   "アカウントを作成してください。",
	}
}

// NewInvalidArgumentError は必須の識別子が欠けている場合のエラーを生成する。
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewAuthFailureError は認証情報が不正な場合のエラーを生成する。
func NewAuthFailureError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailure,
		Message:  message,
		Category: "auth",
		Action:   "入力した認証情報を確認してください。",
	}
}

// NewRemoteUnavailableError はIdPやストアなど外部サービスの失敗を表すエラーを生成する。
func NewRemoteUnavailableError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteUnavailable,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewForbiddenError は他ユーザーのリソースを操作しようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You can only access your own interviews.",
		Category: "auth",
		Action:   "ログイン中のユーザーのデータのみ操作できます。",
	}
}

// NewUnauthorizedError は有効なセッションが無い場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Please sign in to continue.",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong. Please try again.",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
