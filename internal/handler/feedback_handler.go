package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/prepwise/internal/feedback"
	"github.com/hitoshi/prepwise/internal/model"
)

// FeedbackServiceInterface はフィードバックハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	CreateFeedback(ctx context.Context, params feedback.CreateParams) (string, error)
	GetFeedbackByInterviewID(ctx context.Context, interviewID, userID string) (*model.Feedback, error)
}

// FeedbackHandler はフィードバックのHTTPハンドラー。
type FeedbackHandler struct {
	service   FeedbackServiceInterface
	validator RequestValidator
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(service FeedbackServiceInterface, validator RequestValidator) *FeedbackHandler {
	return &FeedbackHandler{
		service:   service,
		validator: validator,
	}
}

type createFeedbackRequest struct {
	UserID     string                  `json:"userId"`
	Transcript []model.TranscriptEntry `json:"transcript" validate:"dive"`
	FeedbackID string                  `json:"feedbackId"`
}

type createFeedbackResponse struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedbackId,omitempty"`
}

// CreateFeedback は文字起こしを採点してフィードバックを保存する。
// POST /api/interviews/{id}/feedback
func (h *FeedbackHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req createFeedbackRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}
	userID, ok := resolveOwner(w, r, req.UserID)
	if !ok {
		return
	}

	id, err := h.service.CreateFeedback(r.Context(), feedback.CreateParams{
		InterviewID: chi.URLParam(r, "id"),
		UserID:      userID,
		Transcript:  req.Transcript,
		FeedbackID:  req.FeedbackID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createFeedbackResponse{Success: true, FeedbackID: id})
}

// GetFeedback は面接に対するログイン中ユーザーのフィードバックを返す。
// 見つからない場合はnullを返す。
// GET /api/interviews/{id}/feedback?userId=
func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveOwner(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	fb, err := h.service.GetFeedbackByInterviewID(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}
