package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout はリクエストごとのデフォルトタイムアウト。
	DefaultTimeout = 10 * time.Second
	// DefaultRefreshPath は再認証エンドポイントのデフォルトパス。
	DefaultRefreshPath = "/auth/refresh"
	// tracerName はotelのトレーサー名。
	tracerName = "github.com/nao1215/cursory/pkg/httpclient"
)

// ExpiryNotifier は再認証に失敗したときにセッション切れを受け取る通知先。
// クライアントは通知先が誰であるかを知らない。
type ExpiryNotifier interface {
	// NotifySessionExpired はセッション切れを通知する。呼び出し元のgoroutineで同期的に呼ばれる。
	NotifySessionExpired()
}

// nopNotifier は通知先が指定されていない場合に使う何もしない通知先。
type nopNotifier struct{}

func (nopNotifier) NotifySessionExpired() {}

// Client はセッション対応のHTTPクライアント。
// 401を受け取った場合に再認証と再送を1回だけ行う。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// jar は認証Cookieを保持するCookieJar。
	jar http.CookieJar
	// baseURL は接続先APIのベースURL。
	baseURL string
	// timeout はリクエストごとのデフォルトタイムアウト。
	timeout time.Duration
	// refreshPath は再認証エンドポイントのパス。
	refreshPath string
	// notifier はセッション切れの通知先。
	notifier ExpiryNotifier
	// logger はロガー。
	logger *slog.Logger
	// metrics はPrometheusメトリクス。nilの場合は記録しない。
	metrics *Metrics
	// tracerProvider はスパン生成に使うプロバイダ。
	tracerProvider trace.TracerProvider
	// tracer はスパンを生成するトレーサー。
	tracer trace.Tracer
	// refreshing は再認証が進行中かどうか。判定と設定はCompareAndSwapで不可分に行う。
	refreshing atomic.Bool
}

// New は新しいクライアントを生成する。
// baseURLにはAPIのベースURL（例: "http://localhost:3000"）を指定する。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ベースURLが不正です: %q", baseURL)
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     DefaultTimeout,
		refreshPath: DefaultRefreshPath,
		notifier:    nopNotifier{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("CookieJarの生成に失敗: %w", err)
		}
		c.jar = jar
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = c.jar
	} else {
		c.jar = c.httpClient.Jar
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	return c, nil
}

// BaseURL は接続先APIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar は認証Cookieを保持するCookieJarを返す。
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// CloseIdleConnections はアイドル状態のコネクションを閉じる。
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// GetJSON は指定パスにGETリクエストを送信し、レスポンスをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, result, opts...)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
func (c *Client) PostJSON(ctx context.Context, path string, body, result any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, result, opts...)
}

// PutJSON は指定パスにJSONボディでPUTリクエストを送信する。
func (c *Client) PutJSON(ctx context.Context, path string, body, result any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, result, opts...)
}

// DeleteJSON は指定パスにDELETEリクエストを送信する。
func (c *Client) DeleteJSON(ctx context.Context, path string, result any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, result, opts...)
}

// request は再送のために保持する元リクエストの内容。
type request struct {
	method  string
	path    string
	payload []byte
	cfg     requestConfig
}

// Do はリクエストを送信し、レスポンスボディをresultにデシリアライズする。
// 再認証エンドポイント以外で401を受け取った場合は再認証と1回だけの再送を行う。
// それ以外の失敗はRequestErrorとしてそのまま返す。
func (c *Client) Do(ctx context.Context, method, path string, body, result any, opts ...RequestOption) error {
	req := &request{
		method: method,
		path:   path,
		cfg: requestConfig{
			timeout: c.timeout,
			header:  make(http.Header),
			query:   make(url.Values),
		},
	}
	for _, opt := range opts {
		opt(&req.cfg)
	}

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		req.payload = payload
	}

	err := c.send(ctx, req, result)
	if err == nil {
		return nil
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusUnauthorized || c.isRefreshPath(path) {
		return err
	}
	return c.recoverSession(ctx, req, reqErr, result)
}

// recoverSession は401を受け取ったリクエストについて再認証と再送を行う。
// 再認証が既に進行中の場合は待機せず即座に失敗する。
func (c *Client) recoverSession(ctx context.Context, req *request, unauthorized *RequestError, result any) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.metrics.observeRefresh("rejected")
		c.logger.Debug("再認証が進行中のためリクエストを失敗させます",
			"method", req.method,
			"path", req.path,
		)
		return &RequestError{
			Kind:       KindAuthorizationExpired,
			Method:     req.method,
			Path:       req.path,
			StatusCode: unauthorized.StatusCode,
			Message:    unauthorized.Message,
			Code:       unauthorized.Code,
			Err:        ErrRefreshInProgress,
		}
	}

	refreshErr := c.refresh(ctx)
	c.refreshing.Store(false)

	if refreshErr != nil {
		c.metrics.observeRefresh("failure")
		c.logger.Warn("再認証に失敗しました。セッション切れを通知します",
			"path", req.path,
			"error", refreshErr,
		)
		c.notifier.NotifySessionExpired()

		failed := &RequestError{
			Kind:   KindRefreshFailed,
			Method: http.MethodPost,
			Path:   c.refreshPath,
			Err:    refreshErr,
		}
		var cause *RequestError
		if errors.As(refreshErr, &cause) {
			failed.StatusCode = cause.StatusCode
			failed.Message = cause.Message
			failed.Code = cause.Code
		}
		return failed
	}

	c.metrics.observeRefresh("success")
	c.logger.Debug("再認証に成功しました。元のリクエストを再送します",
		"method", req.method,
		"path", req.path,
	)
	// 再送の結果は自動再送の対象にしない
	return c.send(ctx, req, result)
}

// refresh は再認証エンドポイントを1回だけ呼び出す。
func (c *Client) refresh(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "httpclient.refresh")
	defer span.End()

	req := &request{
		method: http.MethodPost,
		path:   c.refreshPath,
		cfg: requestConfig{
			timeout: c.timeout,
			header:  make(http.Header),
			query:   make(url.Values),
		},
	}
	if err := c.send(ctx, req, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return err
	}
	return nil
}

// isRefreshPath はパスが再認証エンドポイントかどうかを判定する。
func (c *Client) isRefreshPath(path string) bool {
	p, _, _ := strings.Cut(path, "?")
	return strings.TrimRight(p, "/") == strings.TrimRight(c.refreshPath, "/")
}

// send はリクエストを1回だけ送信する共通処理。再送は行わない。
func (c *Client) send(ctx context.Context, req *request, result any) (err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "httpclient "+req.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("url.path", req.path),
		),
	)
	defer func() {
		kind := KindOf(err)
		c.metrics.observeRequest(req.method, kind, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, kind.String())
		}
		span.End()
	}()

	if req.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.cfg.timeout)
		defer cancel()
	}

	target := c.baseURL + req.path
	if len(req.cfg.query) > 0 {
		target += "?" + req.cfg.query.Encode()
	}

	var bodyReader io.Reader
	if req.payload != nil {
		bodyReader = bytes.NewReader(req.payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.cfg.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &RequestError{
			Kind:   KindTransport,
			Method: req.method,
			Path:   req.path,
			Err:    err,
		}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{
			Kind:   KindTransport,
			Method: req.method,
			Path:   req.path,
			Err:    fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(req, resp.StatusCode, respBody)
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// newStatusError は2xx以外のレスポンスからRequestErrorを生成する。
// バックエンドがJSONでエラーメッセージを返した場合はそれを優先する。
func newStatusError(req *request, status int, body []byte) *RequestError {
	reqErr := &RequestError{
		Kind:       kindFromStatus(status),
		Method:     req.method,
		Path:       req.path,
		StatusCode: status,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		reqErr.Code = eb.Code
		switch {
		case eb.Error != "":
			reqErr.Message = eb.Error
		case eb.Message != "":
			reqErr.Message = eb.Message
		}
	}
	if reqErr.Message == "" {
		if text := strings.TrimSpace(string(body)); text != "" && !json.Valid(body) {
			reqErr.Message = text
		} else {
			reqErr.Message = http.StatusText(status)
		}
	}
	return reqErr
}
