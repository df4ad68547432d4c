package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/hitoshi/prepwise/internal/model"
)

// NewIPRateLimitMiddleware はクライアントIP単位のレート制限ミドルウェアを返す。
// セッションを持たない認証系エンドポイントに使用する。
func NewIPRateLimitMiddleware(requestLimit int, window time.Duration) func(next http.Handler) http.Handler {
	return httprate.Limit(requestLimit, window,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded",
				slog.String("path", r.URL.Path),
				slog.String("limit_type", "ip"),
			)
			WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
		}),
	)
}
