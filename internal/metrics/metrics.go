// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証アクションの種類
const (
	AuthActionSignUp   = "sign_up"
	AuthActionSignIn   = "sign_in"
	AuthActionRegister = "register"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthResult(action, result string)
	RecordFeedbackGenerated(duration time.Duration)
	RecordFeedbackFailed(duration time.Duration)
	RecordInterviewCreated()
	RecordInterviewCompleted()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authResults         *prometheus.CounterVec
	feedbackGenerations *prometheus.CounterVec
	feedbackLatency     prometheus.Histogram
	interviewsCreated   prometheus.Counter
	interviewsCompleted prometheus.Counter
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prepwise_auth_results_total",
			Help: "認証アクションの結果別件数",
		}, []string{"action", "result"}),
		feedbackGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prepwise_feedback_generations_total",
			Help: "フィードバック生成の結果別件数",
		}, []string{"result"}),
		feedbackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prepwise_feedback_generation_seconds",
			Help:    "フィードバック生成（AI呼び出しと保存）のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		interviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prepwise_interviews_created_total",
			Help: "作成された面接ドキュメントの合計数",
		}),
		interviewsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prepwise_interviews_completed_total",
			Help: "文字起こしが保存され完了した面接の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prepwise_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authResults,
		c.feedbackGenerations,
		c.feedbackLatency,
		c.interviewsCreated,
		c.interviewsCompleted,
		c.httpStatus,
	)

	return c
}

// RecordAuthResult は認証アクションの結果を記録する。
// resultは "success" またはエラーコード。
func (c *Collector) RecordAuthResult(action, result string) {
	c.authResults.WithLabelValues(action, result).Inc()
}

// RecordFeedbackGenerated はフィードバック生成成功を記録する。
func (c *Collector) RecordFeedbackGenerated(duration time.Duration) {
	c.feedbackGenerations.WithLabelValues("success").Inc()
	c.feedbackLatency.Observe(duration.Seconds())
}

// RecordFeedbackFailed はフィードバック生成失敗を記録する。
func (c *Collector) RecordFeedbackFailed(duration time.Duration) {
	c.feedbackGenerations.WithLabelValues("failure").Inc()
	c.feedbackLatency.Observe(duration.Seconds())
}

// RecordInterviewCreated は面接ドキュメントの作成を記録する。
func (c *Collector) RecordInterviewCreated() {
	c.interviewsCreated.Inc()
}

// RecordInterviewCompleted は面接の完了を記録する。
func (c *Collector) RecordInterviewCompleted() {
	c.interviewsCompleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordAuthResult(string, string)       {}
func (Nop) RecordFeedbackGenerated(time.Duration) {}
func (Nop) RecordFeedbackFailed(time.Duration)    {}
func (Nop) RecordInterviewCreated()               {}
func (Nop) RecordInterviewCompleted()             {}
func (Nop) RecordHTTPStatus(int)                  {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
