package httpclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option はClientの設定を変更する関数型オプション。
type Option func(*Client)

// WithHTTPClient は内部で使用するhttp.Clientを差し替える。
// Jarが設定されていない場合はNewがCookieJarを補う。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCookieJar は認証Cookieを保持するCookieJarを指定する。
// CLIのように実行をまたいでセッションを維持する場合に使用する。
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithTimeout はリクエストごとのデフォルトタイムアウトを指定する。デフォルトは10秒。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRefreshPath は再認証エンドポイントのパスを指定する。デフォルトは "/auth/refresh"。
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithNotifier は再認証失敗時にセッション切れを通知する先を指定する。
func WithNotifier(n ExpiryNotifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithLogger はロガーを指定する。デフォルトはslog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics はPrometheusメトリクスの記録先を指定する。
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider はスパンを生成するTracerProviderを指定する。
// 指定しない場合はotelのグローバルプロバイダを使用する。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// requestConfig は1リクエスト単位の設定。
type requestConfig struct {
	// timeout はこのリクエストのタイムアウト。
	timeout time.Duration
	// header は追加のリクエストヘッダー。
	header http.Header
	// query はクエリパラメータ。
	query url.Values
}

// RequestOption は1リクエスト単位の設定を変更する関数型オプション。
type RequestOption func(*requestConfig)

// WithRequestTimeout はこのリクエストだけタイムアウトを上書きする。
// AI生成のように応答に時間がかかるエンドポイントで使用する。
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) {
		rc.timeout = d
	}
}

// WithHeader はリクエストヘッダーを追加する。
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Set(key, value)
	}
}

// WithQuery はクエリパラメータを追加する。
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) {
		for k, vs := range q {
			for _, v := range vs {
				rc.query.Add(k, v)
			}
		}
	}
}
