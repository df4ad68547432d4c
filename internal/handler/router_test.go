package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/prepwise/internal/feedback"
	"github.com/hitoshi/prepwise/internal/middleware"
	"github.com/hitoshi/prepwise/internal/model"
	"github.com/hitoshi/prepwise/internal/session"
	"github.com/hitoshi/prepwise/internal/validation"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// routerState はルーター統合テスト用のインメモリ状態。
type routerState struct {
	sessions   map[string]string // token -> userID
	interviews map[string]*model.Interview
	feedbacks  map[string]*model.Feedback // interviewID -> feedback
}

func newRouterState() *routerState {
	return &routerState{
		sessions:   map[string]string{"valid-session": "user-test-1"},
		interviews: map[string]*model.Interview{},
		feedbacks:  map[string]*model.Feedback{},
	}
}

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter(state *routerState, checker HealthChecker) http.Handler {
	authSvc := &mockAuthService{
		signInFn: func(ctx context.Context, sess *session.Context, email, idToken string) error {
			if idToken != "good-id-token" {
				return model.NewAuthFailureError("Failed to log into account. Please try again.")
			}
			state.sessions["issued-session"] = "user-test-1"
			sess.Set("issued-session")
			return nil
		},
		getCurrentUserFn: func(ctx context.Context, token string) *model.User {
			if uid, ok := state.sessions[token]; ok {
				return &model.User{ID: uid, Name: "Test", Email: "test@example.com"}
			}
			return nil
		},
	}

	interviewSvc := &mockInterviewService{
		getInterviewByIDFn: func(ctx context.Context, id string) (*model.Interview, error) {
			return state.interviews[id], nil
		},
		getLatestInterviewsFn: func(ctx context.Context, userID string) ([]*model.Interview, error) {
			var list []*model.Interview
			for _, iv := range state.interviews {
				if userID == "" || iv.UserID == userID {
					list = append(list, iv)
				}
			}
			return list, nil
		},
		getInterviewsByUserIDFn: func(ctx context.Context, userID string) ([]*model.Interview, error) {
			var list []*model.Interview
			for _, iv := range state.interviews {
				if iv.UserID == userID {
					list = append(list, iv)
				}
			}
			return list, nil
		},
		createInterviewDocumentFn: func(ctx context.Context, userID string, transcript []model.TranscriptEntry) (string, error) {
			id := "iv-" + string(rune('a'+len(state.interviews)))
			state.interviews[id] = &model.Interview{ID: id, UserID: userID, Status: model.InterviewStatusPending}
			return id, nil
		},
		saveInterviewDataFn: func(ctx context.Context, interviewID, userID string, transcript []model.TranscriptEntry) error {
			iv, ok := state.interviews[interviewID]
			if !ok {
				iv = &model.Interview{ID: interviewID}
				state.interviews[interviewID] = iv
			}
			iv.UserID = userID
			iv.Transcript = transcript
			iv.Status = model.InterviewStatusCompleted
			return nil
		},
	}

	feedbackSvc := &mockFeedbackService{
		createFeedbackFn: func(ctx context.Context, params feedback.CreateParams) (string, error) {
			state.feedbacks[params.InterviewID] = &model.Feedback{
				ID:          "fb-" + params.InterviewID,
				InterviewID: params.InterviewID,
				UserID:      params.UserID,
				TotalScore:  75,
			}
			return "fb-" + params.InterviewID, nil
		},
		getFeedbackByInterviewIDFn: func(ctx context.Context, interviewID, userID string) (*model.Feedback, error) {
			fb := state.feedbacks[interviewID]
			if fb == nil || fb.UserID != userID {
				return nil, nil
			}
			return fb, nil
		},
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	return NewRouter(&RouterDeps{
		HealthChecker:     checker,
		CORSAllowedOrigin: "http://localhost:3000",
		CSRF:              middleware.CSRFConfig{},
		RateLimiter:       rl,
		AuthRateLimit:     100,
		AuthRateWindow:    time.Minute,
		Validator:         validation.New(),
		AuthService:       authSvc,
		InterviewService:  interviewSvc,
		FeedbackService:   feedbackSvc,
	})
}

// withCSRF はダブルサブミットCookieとヘッダーを付与する。
func withCSRF(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	r.Header.Set("X-CSRF-Token", "test-token")
	return r
}

func withSession(r *http.Request, token string) *http.Request {
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	return r
}

func TestNewRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{name: "チェッカー無し", checker: nil, wantStatus: http.StatusOK},
		{name: "疎通成功", checker: &mockHealthChecker{}, wantStatus: http.StatusOK},
		{name: "疎通失敗", checker: &mockHealthChecker{err: errors.New("db down")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := createTestRouter(newRouterState(), tt.checker)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewRouter_CSRFTokenEndpoint_NoAuthRequired(t *testing.T) {
	router := createTestRouter(newRouterState(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/csrf-token status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["token"] == "" {
		t.Error("expected non-empty CSRF token")
	}
}

func TestNewRouter_SetsSecurityAndCORSHeaders(t *testing.T) {
	router := createTestRouter(newRouterState(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNewRouter_ProtectedRoutes_NoSession_Returns401(t *testing.T) {
	router := createTestRouter(newRouterState(), nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/interviews"},
		{http.MethodGet, "/api/interviews/iv-1"},
		{http.MethodGet, "/api/interviews/iv-1/feedback"},
		{http.MethodGet, "/api/users/user-test-1/interviews"},
		{http.MethodPost, "/api/interviews"},
		{http.MethodPut, "/api/interviews/iv-1/transcript"},
		{http.MethodPost, "/api/interviews/iv-1/feedback"},
		{http.MethodPost, "/api/auth/revoke"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := withCSRF(jsonRequest(rt.method, rt.path, `{}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestNewRouter_RevokedSession_Returns401(t *testing.T) {
	state := newRouterState()
	router := createTestRouter(state, nil)

	delete(state.sessions, "valid-session")

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/interviews", nil), "valid-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestNewRouter_POST_RequiresCSRF(t *testing.T) {
	router := createTestRouter(newRouterState(), nil)

	req := withSession(jsonRequest(http.MethodPost, "/api/interviews", `{}`), "valid-session")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("POST /api/interviews (no CSRF) status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeCSRF {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRF)
	}
}

func TestNewRouter_UnknownRoute_Returns404(t *testing.T) {
	router := createTestRouter(newRouterState(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestNewRouter_InterviewFlow はサインインから面接作成・文字起こし保存・
// フィードバック生成・サインアウトまでの一連の流れを検証する。
func TestNewRouter_InterviewFlow(t *testing.T) {
	state := newRouterState()
	router := createTestRouter(state, nil)

	// 1. サインイン: セッションCookieが発行されること
	req := withCSRF(jsonRequest(http.MethodPost, "/api/auth/sign-in", `{"email":"test@example.com","idToken":"good-id-token"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("step1: sign-in status = %d, want %d", w.Code, http.StatusOK)
	}
	sessionCookie := findCookie(w.Result(), session.CookieName)
	if sessionCookie == nil || sessionCookie.Value != "issued-session" {
		t.Fatalf("step1: expected issued session cookie, got %+v", sessionCookie)
	}

	// 2. /api/auth/me でユーザーが取得できること
	req = withSession(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var me model.User
	json.NewDecoder(w.Body).Decode(&me)
	if me.ID != "user-test-1" {
		t.Fatalf("step2: me.ID = %q, want %q", me.ID, "user-test-1")
	}

	// 3. 面接ドキュメントを作成
	req = withSession(withCSRF(jsonRequest(http.MethodPost, "/api/interviews", `{}`)), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("step3: create status = %d, want %d", w.Code, http.StatusCreated)
	}
	var created createInterviewResponse
	json.NewDecoder(w.Body).Decode(&created)
	if created.InterviewID == "" {
		t.Fatal("step3: expected interviewId")
	}

	// 4. 文字起こしを保存
	transcript := `{"transcript":[{"role":"assistant","content":"Why Go?"},{"role":"user","content":"Simplicity."}]}`
	req = withSession(withCSRF(jsonRequest(http.MethodPut, "/api/interviews/"+created.InterviewID+"/transcript", transcript)), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("step4: save status = %d, want %d", w.Code, http.StatusOK)
	}
	if state.interviews[created.InterviewID].Status != model.InterviewStatusCompleted {
		t.Error("step4: interview should be completed")
	}

	// 5. フィードバックを生成して取得
	req = withSession(withCSRF(jsonRequest(http.MethodPost, "/api/interviews/"+created.InterviewID+"/feedback", transcript)), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("step5: feedback status = %d, want %d", w.Code, http.StatusCreated)
	}

	req = withSession(httptest.NewRequest(http.MethodGet, "/api/interviews/"+created.InterviewID+"/feedback", nil), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var fb model.Feedback
	json.NewDecoder(w.Body).Decode(&fb)
	if fb.InterviewID != created.InterviewID || fb.UserID != "user-test-1" {
		t.Errorf("step5: unexpected feedback %+v", fb)
	}

	// 6. 自分の面接一覧に含まれること
	req = withSession(httptest.NewRequest(http.MethodGet, "/api/users/user-test-1/interviews", nil), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), created.InterviewID) {
		t.Errorf("step6: list should contain %q, got %s", created.InterviewID, w.Body.String())
	}

	// 7. サインアウトでCookieが破棄されること
	req = withSession(withCSRF(httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil)), sessionCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	cleared := findCookie(w.Result(), session.CookieName)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Error("step7: expected session cookie to be cleared")
	}
}

func TestNewRouter_SignIn_BadToken_Returns401(t *testing.T) {
	router := createTestRouter(newRouterState(), nil)

	req := withCSRF(jsonRequest(http.MethodPost, "/api/auth/sign-in", `{"email":"test@example.com","idToken":"bad"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if findCookie(w.Result(), session.CookieName) != nil {
		t.Error("session cookie should not be set")
	}
}

func TestNewRouter_AuthRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rl.Stop()
	router := NewRouter(&RouterDeps{
		RateLimiter:      rl,
		AuthRateLimit:    2,
		AuthRateWindow:   time.Minute,
		Validator:        validation.New(),
		AuthService:      &mockAuthService{},
		InterviewService: &mockInterviewService{},
		FeedbackService:  &mockFeedbackService{},
	})

	var last int
	for i := 0; i < 3; i++ {
		req := withCSRF(jsonRequest(http.MethodPost, "/api/auth/token", `{"email":"a@example.com","password":"pw1"}`))
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", last, http.StatusTooManyRequests)
	}
}
