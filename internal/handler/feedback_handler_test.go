package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/prepwise/internal/feedback"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/validation"
)

// --- モック定義 ---

type mockFeedbackService struct {
	createFeedbackFn           func(ctx context.Context, params feedback.CreateParams) (string, error)
	getFeedbackByInterviewIDFn func(ctx context.Context, interviewID, userID string) (*model.Feedback, error)
}

func (m *mockFeedbackService) CreateFeedback(ctx context.Context, params feedback.CreateParams) (string, error) {
	if m.createFeedbackFn != nil {
		return m.createFeedbackFn(ctx, params)
	}
	return "", nil
}

func (m *mockFeedbackService) GetFeedbackByInterviewID(ctx context.Context, interviewID, userID string) (*model.Feedback, error) {
	if m.getFeedbackByInterviewIDFn != nil {
		return m.getFeedbackByInterviewIDFn(ctx, interviewID, userID)
	}
	return nil, nil
}

const testTranscriptBody = `{"transcript":[{"role":"assistant","content":"Tell me about yourself."},{"role":"user","content":"I build APIs."}]`

// --- テスト ---

func TestFeedbackHandler_CreateFeedback(t *testing.T) {
	var got feedback.CreateParams
	svc := &mockFeedbackService{
		createFeedbackFn: func(ctx context.Context, params feedback.CreateParams) (string, error) {
			got = params
			return "fb-1", nil
		},
	}
	h := NewFeedbackHandler(svc, validation.New())

	req := jsonRequest(http.MethodPost, "/api/interviews/iv-1/feedback", testTranscriptBody+`}`)
	req = withURLParams(req, map[string]string{"id": "iv-1"})
	w := httptest.NewRecorder()
	h.CreateFeedback(w, withUser(req, "u1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.InterviewID != "iv-1" || got.UserID != "u1" || got.FeedbackID != "" {
		t.Errorf("unexpected params: %+v", got)
	}
	if len(got.Transcript) != 2 {
		t.Errorf("transcript len = %d, want 2", len(got.Transcript))
	}

	var resp createFeedbackResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Success || resp.FeedbackID != "fb-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestFeedbackHandler_CreateFeedback_WithFeedbackID(t *testing.T) {
	var got feedback.CreateParams
	svc := &mockFeedbackService{
		createFeedbackFn: func(ctx context.Context, params feedback.CreateParams) (string, error) {
			got = params
			return params.FeedbackID, nil
		},
	}
	h := NewFeedbackHandler(svc, validation.New())

	req := jsonRequest(http.MethodPost, "/api/interviews/iv-1/feedback", testTranscriptBody+`,"feedbackId":"fb-existing"}`)
	req = withURLParams(req, map[string]string{"id": "iv-1"})
	w := httptest.NewRecorder()
	h.CreateFeedback(w, withUser(req, "u1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.FeedbackID != "fb-existing" {
		t.Errorf("FeedbackID = %q, want %q", got.FeedbackID, "fb-existing")
	}
}

func TestFeedbackHandler_CreateFeedback_EmptyTranscript_IsScored(t *testing.T) {
	called := false
	svc := &mockFeedbackService{
		createFeedbackFn: func(ctx context.Context, params feedback.CreateParams) (string, error) {
			called = true
			if len(params.Transcript) != 0 {
				t.Errorf("transcript len = %d, want 0", len(params.Transcript))
			}
			return "fb-empty", nil
		},
	}
	h := NewFeedbackHandler(svc, validation.New())

	req := withURLParams(jsonRequest(http.MethodPost, "/api/interviews/iv-1/feedback", `{"transcript":[]}`), map[string]string{"id": "iv-1"})
	w := httptest.NewRecorder()
	h.CreateFeedback(w, withUser(req, "u1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if !called {
		t.Error("service should be called for an empty transcript")
	}
}

func TestFeedbackHandler_CreateFeedback_InvalidEntry_Returns400(t *testing.T) {
	h := NewFeedbackHandler(&mockFeedbackService{}, validation.New())

	req := withURLParams(jsonRequest(http.MethodPost, "/api/interviews/iv-1/feedback", `{"transcript":[{"role":"","content":"hi"}]}`), map[string]string{"id": "iv-1"})
	w := httptest.NewRecorder()
	h.CreateFeedback(w, withUser(req, "u1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestFeedbackHandler_CreateFeedback_GenerationFailure(t *testing.T) {
	svc := &mockFeedbackService{
		createFeedbackFn: func(ctx context.Context, params feedback.CreateParams) (string, error) {
			return "", errors.New("gemini: status 500")
		},
	}
	h := NewFeedbackHandler(svc, validation.New())

	req := withURLParams(jsonRequest(http.MethodPost, "/api/interviews/iv-1/feedback", testTranscriptBody+`}`), map[string]string{"id": "iv-1"})
	w := httptest.NewRecorder()
	h.CreateFeedback(w, withUser(req, "u1"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Success {
		t.Error("expected success=false")
	}
	if strings.Contains(body.Message, "gemini") {
		t.Error("raw error must not be exposed to the client")
	}
}

func TestFeedbackHandler_CreateFeedback_OtherUser_Returns403(t *testing.T) {
	h := NewFeedbackHandler(&mockFeedbackService{}, validation.New())

	req := jsonRequest(http.MethodPost, "/api/interviews/iv-1/feedback", testTranscriptBody+`,"userId":"u2"}`)
	req = withURLParams(req, map[string]string{"id": "iv-1"})
	w := httptest.NewRecorder()
	h.CreateFeedback(w, withUser(req, "u1"))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestFeedbackHandler_GetFeedback(t *testing.T) {
	svc := &mockFeedbackService{
		getFeedbackByInterviewIDFn: func(ctx context.Context, interviewID, userID string) (*model.Feedback, error) {
			if interviewID == "iv-1" && userID == "u1" {
				return &model.Feedback{ID: "fb-1", InterviewID: interviewID, UserID: userID, TotalScore: 82}, nil
			}
			return nil, nil
		},
	}
	h := NewFeedbackHandler(svc, validation.New())

	t.Run("存在するフィードバック", func(t *testing.T) {
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/interviews/iv-1/feedback", nil), map[string]string{"id": "iv-1"})
		w := httptest.NewRecorder()
		h.GetFeedback(w, withUser(req, "u1"))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var fb model.Feedback
		json.NewDecoder(w.Body).Decode(&fb)
		if fb.ID != "fb-1" || fb.TotalScore != 82 {
			t.Errorf("unexpected feedback: %+v", fb)
		}
	})

	t.Run("存在しない場合はnull", func(t *testing.T) {
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/interviews/iv-9/feedback", nil), map[string]string{"id": "iv-9"})
		w := httptest.NewRecorder()
		h.GetFeedback(w, withUser(req, "u1"))

		if got := strings.TrimSpace(w.Body.String()); got != "null" {
			t.Errorf("body = %q, want null", got)
		}
	})

	t.Run("他人のuserIdは403", func(t *testing.T) {
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/interviews/iv-1/feedback?userId=u2", nil), map[string]string{"id": "iv-1"})
		w := httptest.NewRecorder()
		h.GetFeedback(w, withUser(req, "u1"))

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}
