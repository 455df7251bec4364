package coursestub

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics はスタブサーバーのPrometheusメトリクス。
type metrics struct {
	// registry はメトリクスの登録先。サーバーごとに独立させる。
	registry *prometheus.Registry
	// requestsTotal はルート・メソッド・ステータス別のリクエスト数。
	requestsTotal *prometheus.CounterVec
	// requestDuration はルート別の処理時間。
	requestDuration *prometheus.HistogramVec
	// refreshesTotal は結果別のトークン再発行回数。
	refreshesTotal *prometheus.CounterVec
	// loginsTotal は結果別のログイン試行回数。
	loginsTotal *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursestub",
			Name:      "http_requests_total",
			Help:      "処理したHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coursestub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTPリクエストの処理時間",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursestub",
			Name:      "token_refreshes_total",
			Help:      "トークン再発行の試行回数",
		}, []string{"result"}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursestub",
			Name:      "logins_total",
			Help:      "ログインの試行回数",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.refreshesTotal,
		m.loginsTotal,
		collectors.NewGoCollector(),
	)
	return m
}

// middleware はリクエスト数と処理時間を記録するGinミドルウェアを返す。
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// handler は /metrics のハンドラを返す。
func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
