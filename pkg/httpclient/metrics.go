package httpclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics はクライアントが記録するPrometheusメトリクス。
type Metrics struct {
	// RequestsTotal はリクエスト数。resultは "ok" またはKind。
	RequestsTotal *prometheus.CounterVec
	// RequestDuration はリクエスト1回あたりの所要時間。
	RequestDuration *prometheus.HistogramVec
	// RefreshesTotal は再認証の試行結果。resultは success/failure/rejected。
	RefreshesTotal *prometheus.CounterVec
}

// NewMetrics はメトリクスを生成し、指定されたレジストリに登録する。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cursory",
				Subsystem: "httpclient",
				Name:      "requests_total",
				Help:      "Total number of backend requests issued by the client",
			},
			[]string{"method", "result"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cursory",
				Subsystem: "httpclient",
				Name:      "request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cursory",
				Subsystem: "httpclient",
				Name:      "refreshes_total",
				Help:      "Session refresh attempts by outcome",
			},
			[]string{"result"},
		),
	}
}

// observeRequest はリクエスト1回分の結果を記録する。nilレシーバでも安全。
func (m *Metrics) observeRequest(method string, kind Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if kind != 0 {
		result = kind.String()
	}
	m.RequestsTotal.WithLabelValues(method, result).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// observeRefresh は再認証の結果を記録する。nilレシーバでも安全。
func (m *Metrics) observeRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(result).Inc()
}
