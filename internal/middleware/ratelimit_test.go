package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/prepwise/internal/metrics"
	"github.com/hitoshi/prepwise/internal/model"
)

func testLimiterConfig(generalBurst, feedbackBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		FeedbackRate:    0.5,
		FeedbackBurst:   feedbackBurst,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// serveAs は指定ユーザーとしてリクエストを処理する。
func serveAs(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/interviews", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// --- API全般 ---

func TestRateLimitMiddleware_AllowsBurstThenReturns429(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(3, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		if w := serveAs(handler, "user-1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := serveAs(handler, "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if ra, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil || ra < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited || body.Category != "system" || body.Success {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	if w := serveAs(handler, "user-a"); w.Code != http.StatusOK {
		t.Fatalf("user-a first: %d", w.Code)
	}
	if w := serveAs(handler, "user-a"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("user-a second: %d, want 429", w.Code)
	}
	if w := serveAs(handler, "user-b"); w.Code != http.StatusOK {
		t.Fatalf("user-b first: %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 5))
	defer rl.Stop()

	w := serveAs(rl.GeneralMiddleware()(okHandler()), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// --- フィードバック生成 ---

func TestFeedbackRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(100, 2))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rl.FeedbackMiddleware()(okHandler()))
	general := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		if w := serveAs(handler, "user-1"); w.Code != http.StatusOK {
			t.Fatalf("feedback request %d: %d", i, w.Code)
		}
	}
	if w := serveAs(handler, "user-1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("feedback request 3: %d, want 429", w.Code)
	}
	if w := serveAs(general, "user-1"); w.Code != http.StatusOK {
		t.Errorf("general request after feedback limit: %d, want 200", w.Code)
	}
	if rl.FeedbackLimiterCount() != 1 {
		t.Errorf("FeedbackLimiterCount = %d, want 1", rl.FeedbackLimiterCount())
	}
}

// --- クリーンアップ ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := testLimiterConfig(5, 5)
	cfg.CleanupInterval = 50 * time.Millisecond

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	serveAs(rl.GeneralMiddleware()(okHandler()), "user-cleanup")
	serveAs(rl.FeedbackMiddleware()(okHandler()), "user-cleanup")
	if rl.GeneralLimiterCount() != 1 || rl.FeedbackLimiterCount() != 1 {
		t.Fatal("expected limiter entries")
	}

	// TTLはCleanupIntervalの2倍（100ms）
	time.Sleep(250 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("general entries after cleanup = %d, want 0", count)
	}
	if count := rl.FeedbackLimiterCount(); count != 0 {
		t.Errorf("feedback entries after cleanup = %d, want 0", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	rl.Stop()
	rl.Stop()
}

// --- ミドルウェアチェーン ---

func TestRateLimitMiddleware_InChainWithSession(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(2, 10))
	defer rl.Stop()

	handler := NewCORSMiddleware("http://localhost:3000")(
		NewSessionMiddleware(resolverFor("chain-token", "user-chain"))(
			rl.GeneralMiddleware()(okHandler()),
		),
	)

	request := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/interviews", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: "chain-token"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := request(); code != http.StatusOK {
			t.Fatalf("request %d: %d, want 200", i, code)
		}
	}
	if code := request(); code != http.StatusTooManyRequests {
		t.Errorf("request 3: %d, want 429", code)
	}
}

// --- IP単位 ---

func TestIPRateLimitMiddleware_LimitsByClientIP(t *testing.T) {
	handler := NewIPRateLimitMiddleware(2, time.Minute)(okHandler())

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := request("10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}

	w := request("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want RATE_LIMITED", body.Code)
	}

	if w := request("10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("other IP: %d, want 200", w.Code)
	}
}

// --- メトリクス ---

type statusRecordingCollector struct {
	metrics.Nop
	statuses []int
}

func (c *statusRecordingCollector) RecordHTTPStatus(code int) {
	c.statuses = append(c.statuses, code)
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	c := &statusRecordingCollector{}
	handler := NewMetricsMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if len(c.statuses) != 2 || c.statuses[0] != 200 || c.statuses[1] != 404 {
		t.Errorf("statuses = %v, want [200 404]", c.statuses)
	}
}

// --- デフォルト設定値 ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 {
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.FeedbackRate == 0 {
		t.Error("FeedbackRate should not be 0")
	}
	if cfg.FeedbackBurst != 10 {
		t.Errorf("FeedbackBurst = %d, want 10", cfg.FeedbackBurst)
	}
}
