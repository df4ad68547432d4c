package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/prepwise/internal/middleware"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/validation"
)

// RequestValidator はリクエストDTOの検証インターフェース。
type RequestValidator interface {
	Validate(i any) error
}

// actionResponse はアクションの成否を返す共通レスポンス。
type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAlreadyExists:
		return http.StatusConflict
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case model.ErrCodeAuthFailure, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeRemoteUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest はリクエストボディをdstにデコードし、validatorで検証する。
// 失敗時はエラーレスポンスを書き込んでfalseを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, v RequestValidator, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Request body must be valid JSON.",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	if v == nil {
		return true
	}

	if err := v.Validate(dst); err != nil {
		var ve *validation.ValidationError
		if errors.As(err, &ve) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError(ve.Error()))
			return false
		}
		handleServiceError(w, err)
		return false
	}
	return true
}

// sessionUserID はセッションミドルウェアが設定したユーザーIDを返す。
// 取得できない場合は401を書き込んでfalseを返す。
func sessionUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// resolveOwner は指定されたuserIdとセッションのユーザーを照合する。
// 空の場合はセッションのユーザーを使い、異なる場合は403を書き込んでfalseを返す。
func resolveOwner(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	userID, ok := sessionUserID(w, r)
	if !ok {
		return "", false
	}
	if requested != "" && requested != userID {
		slog.Warn("他ユーザーのリソースへのアクセスを拒否しました",
			slog.String("user_id", userID),
			slog.String("requested_user_id", requested),
		)
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return "", false
	}
	return userID, true
}
