package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/prepwise/internal/model"
)

// InterviewServiceInterface は面接ハンドラーが必要とするサービスインターフェース。
type InterviewServiceInterface interface {
	GetInterviewByID(ctx context.Context, id string) (*model.Interview, error)
	GetInterviewsByUserID(ctx context.Context, userID string) ([]*model.Interview, error)
	GetLatestInterviews(ctx context.Context, userID string) ([]*model.Interview, error)
	CreateInterviewDocument(ctx context.Context, userID string, transcript []model.TranscriptEntry) (string, error)
	SaveInterviewData(ctx context.Context, interviewID, userID string, transcript []model.TranscriptEntry) error
}

// InterviewHandler は面接管理のHTTPハンドラー。
type InterviewHandler struct {
	service   InterviewServiceInterface
	validator RequestValidator
}

// NewInterviewHandler はInterviewHandlerを生成する。
func NewInterviewHandler(service InterviewServiceInterface, validator RequestValidator) *InterviewHandler {
	return &InterviewHandler{
		service:   service,
		validator: validator,
	}
}

// createInterviewRequest は面接ドキュメント作成リクエストのボディ。
// userIdを省略した場合はログイン中のユーザーとなる。
type createInterviewRequest struct {
	UserID     string                  `json:"userId"`
	Transcript []model.TranscriptEntry `json:"transcript" validate:"omitempty,dive"`
}

type saveTranscriptRequest struct {
	UserID     string                  `json:"userId"`
	Transcript []model.TranscriptEntry `json:"transcript" validate:"dive"`
}

type createInterviewResponse struct {
	Success     bool   `json:"success"`
	InterviewID string `json:"interviewId"`
}

// GetInterview は面接を返す。見つからない場合はnullを返す。
// GET /api/interviews/{id}
func (h *InterviewHandler) GetInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := h.service.GetInterviewByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// ListLatest は面接を新しい順に返す。userIdを省略すると全ユーザーが対象となる。
// GET /api/interviews?userId=
func (h *InterviewHandler) ListLatest(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("userId")
	if requested != "" {
		if _, ok := resolveOwner(w, r, requested); !ok {
			return
		}
	}

	interviews, err := h.service.GetLatestInterviews(r.Context(), requested)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilInterviews(interviews))
}

// ListByUser は指定ユーザーの面接を新しい順に返す。
// GET /api/users/{userId}/interviews
func (h *InterviewHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := resolveOwner(w, r, chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	interviews, err := h.service.GetInterviewsByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilInterviews(interviews))
}

// CreateInterview は既定値の面接ドキュメントを作成する。
// POST /api/interviews
func (h *InterviewHandler) CreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}
	userID, ok := resolveOwner(w, r, req.UserID)
	if !ok {
		return
	}

	id, err := h.service.CreateInterviewDocument(r.Context(), userID, req.Transcript)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createInterviewResponse{Success: true, InterviewID: id})
}

// SaveTranscript は面接の文字起こしを保存して完了状態にする。
// PUT /api/interviews/{id}/transcript
func (h *InterviewHandler) SaveTranscript(w http.ResponseWriter, r *http.Request) {
	var req saveTranscriptRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}
	userID, ok := resolveOwner(w, r, req.UserID)
	if !ok {
		return
	}

	if err := h.service.SaveInterviewData(r.Context(), chi.URLParam(r, "id"), userID, req.Transcript); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{Success: true, Message: "Interview data saved successfully"})
}

// nonNilInterviews は空の一覧をnullではなく[]としてエンコードするために使う。
func nonNilInterviews(interviews []*model.Interview) []*model.Interview {
	if interviews == nil {
		return []*model.Interview{}
	}
	return interviews
}
