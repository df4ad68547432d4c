package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/prepwise/internal/metrics"
	"github.com/hitoshi/prepwise/internal/middleware"
)

// HealthChecker はストアの疎通確認インターフェース。*sql.DBはそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	// 認証エンドポイントのIP単位レート制限
	AuthRateLimit  int
	AuthRateWindow time.Duration

	Validator RequestValidator

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 面接・フィードバック
	InterviewService InterviewServiceInterface
	FeedbackService  FeedbackServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS → CSRF
//	→ (認証ルート) IPRateLimit
//	→ (保護ルート) Session → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Validator, deps.AuthConfig)
	interviewHandler := NewInterviewHandler(deps.InterviewService, deps.Validator)
	feedbackHandler := NewFeedbackHandler(deps.FeedbackService, deps.Validator)
	sessionMiddleware := middleware.NewSessionMiddleware(deps.AuthService)

	r.Get("/health", healthHandler(deps.HealthChecker))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// --- 認証ルート（セッション不要） ---
		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/me", authHandler.Me)
			r.Get("/session", authHandler.Session)
			r.Post("/sign-out", authHandler.SignOut)
			r.With(sessionMiddleware).Post("/revoke", authHandler.Revoke)

			// 認証情報を受け取るエンドポイントはIP単位で制限する
			r.Group(func(r chi.Router) {
				if deps.AuthRateLimit > 0 {
					r.Use(middleware.NewIPRateLimitMiddleware(deps.AuthRateLimit, deps.AuthRateWindow))
				}
				r.Post("/sign-up", authHandler.SignUp)
				r.Post("/sign-in", authHandler.SignIn)
				r.Post("/register", authHandler.Register)
				r.Post("/token", authHandler.Token)
			})
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware)
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Route("/api/interviews", func(r chi.Router) {
				r.Get("/", interviewHandler.ListLatest)
				r.Post("/", interviewHandler.CreateInterview)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", interviewHandler.GetInterview)
					r.Put("/transcript", interviewHandler.SaveTranscript)

					// フィードバック生成は生成AIを呼び出すため専用のレート制限を追加する
					r.With(deps.RateLimiter.FeedbackMiddleware()).Post("/feedback", feedbackHandler.CreateFeedback)
					r.Get("/feedback", feedbackHandler.GetFeedback)
				})
			})

			r.Get("/api/users/{userId}/interviews", interviewHandler.ListByUser)
		})
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler はストアの疎通を確認するハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
