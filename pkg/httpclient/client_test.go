package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Query はクエリ文字列。
	Query string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// newTestClient はテストサーバーに接続するクライアントを生成する。
func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()

	client, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("New()でエラーが発生: %v", err)
	}
	t.Cleanup(client.CloseIdleConnections)
	return client
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, "http://localhost:3000/")
		if client.BaseURL() != "http://localhost:3000" {
			t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), "http://localhost:3000")
		}
		if client.Jar() == nil {
			t.Fatal("Jar()がnil")
		}
		if client.timeout != DefaultTimeout {
			t.Errorf("timeout = %v, want %v", client.timeout, DefaultTimeout)
		}
		if client.refreshPath != DefaultRefreshPath {
			t.Errorf("refreshPath = %q, want %q", client.refreshPath, DefaultRefreshPath)
		}
	})

	t.Run("不正なベースURLでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		for _, baseURL := range []string{"", "localhost", "://broken"} {
			if _, err := New(baseURL); err == nil {
				t.Errorf("New(%q)がエラーを返すべきだが、nilが返った", baseURL)
			}
		}
	})

	t.Run("オプションで設定を上書きできること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, "http://localhost:3000",
			WithTimeout(3*time.Second),
			WithRefreshPath("/session/renew"),
		)
		if client.timeout != 3*time.Second {
			t.Errorf("timeout = %v, want 3s", client.timeout)
		}
		if client.refreshPath != "/session/renew" {
			t.Errorf("refreshPath = %q, want %q", client.refreshPath, "/session/renew")
		}
	})

	t.Run("http.ClientのJarが優先されること", func(t *testing.T) {
		t.Parallel()

		other := newTestClient(t, "http://localhost:3000")
		hc := &http.Client{Jar: other.Jar()}
		client := newTestClient(t, "http://localhost:3000", WithHTTPClient(hc))
		if client.Jar() != other.Jar() {
			t.Error("WithHTTPClientで渡したJarが使われていない")
		}
	})
}

// TestDo は各HTTPメソッドの送受信を検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("POSTでボディを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		var result testPayload
		if err := client.PostJSON(context.Background(), "/courses", testPayload{Name: "request", Value: 100}, &result); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/courses" {
			t.Errorf("Path = %q, want %q", received.Path, "/courses")
		}
		var sent testPayload
		if err := json.Unmarshal(received.Body, &sent); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if sent.Name != "request" || sent.Value != 100 {
			t.Errorf("sent = %+v, want {request 100}", sent)
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v, want {response 200}", result)
		}
	})

	t.Run("GETとDELETEにボディが含まれないこと", func(t *testing.T) {
		t.Parallel()

		var bodies [][]byte
		var methods []string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			bodies = append(bodies, b)
			methods = append(methods, r.Method)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		if err := client.GetJSON(context.Background(), "/courses/1", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if err := client.DeleteJSON(context.Background(), "/courses/1", nil); err != nil {
			t.Fatalf("DeleteJSON()でエラーが発生: %v", err)
		}

		if len(methods) != 2 || methods[0] != http.MethodGet || methods[1] != http.MethodDelete {
			t.Fatalf("methods = %v, want [GET DELETE]", methods)
		}
		for i, b := range bodies {
			if len(b) != 0 {
				t.Errorf("リクエスト%dにボディが含まれている: %q", i, string(b))
			}
		}
	})

	t.Run("PUTでボディが送信されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Body, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.Write(received.Body)
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		var result testPayload
		if err := client.PutJSON(context.Background(), "/courses/1", testPayload{Name: "put", Value: 7}, &result); err != nil {
			t.Fatalf("PutJSON()でエラーが発生: %v", err)
		}
		if received.Method != http.MethodPut {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPut)
		}
		if result.Name != "put" || result.Value != 7 {
			t.Errorf("result = %+v, want {put 7}", result)
		}
	})

	t.Run("クエリとヘッダーが付与されること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Query = r.URL.RawQuery
			received.Headers = r.Header
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		err := client.GetJSON(context.Background(), "/courses", nil,
			WithQuery(url.Values{"page": []string{"2"}}),
			WithHeader("X-Request-ID", "req-1"),
		)
		if err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if received.Query != "page=2" {
			t.Errorf("Query = %q, want %q", received.Query, "page=2")
		}
		if got := received.Headers.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-1")
		}
	})

	t.Run("レスポンスのCookieが次のリクエストに付与されること", func(t *testing.T) {
		t.Parallel()

		var gotCookie string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/login":
				http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "abc", Path: "/", HttpOnly: true})
				w.WriteHeader(http.StatusOK)
			default:
				if c, err := r.Cookie("access_token"); err == nil {
					gotCookie = c.Value
				}
				w.WriteHeader(http.StatusOK)
			}
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		if err := client.PostJSON(context.Background(), "/auth/login", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if err := client.GetJSON(context.Background(), "/courses", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if gotCookie != "abc" {
			t.Errorf("access_token = %q, want %q", gotCookie, "abc")
		}
	})

	t.Run("同じGETを2回呼ぶと独立して2回成功すること", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		var refreshes atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == DefaultRefreshPath {
				refreshes.Add(1)
			}
			n := hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "courses", Value: int(n)})
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		var first, second testPayload
		if err := client.GetJSON(context.Background(), "/courses", &first); err != nil {
			t.Fatalf("1回目のGetJSON()でエラーが発生: %v", err)
		}
		if err := client.GetJSON(context.Background(), "/courses", &second); err != nil {
			t.Fatalf("2回目のGetJSON()でエラーが発生: %v", err)
		}
		if first.Value != 1 || second.Value != 2 {
			t.Errorf("values = (%d, %d), want (1, 2)", first.Value, second.Value)
		}
		if refreshes.Load() != 0 {
			t.Errorf("refresh calls = %d, want 0", refreshes.Load())
		}
	})
}

// TestDo_Errors はエラーの分類とパススルーを検証する。
func TestDo_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   Kind
		wantSentry error
		wantMsg    string
		wantCode   string
	}{
		{
			name:       "400はバックエンドのメッセージ付きでValidationになること",
			status:     http.StatusBadRequest,
			body:       `{"error":"slug already exists","code":"SLUG_TAKEN"}`,
			wantKind:   KindValidation,
			wantSentry: ErrValidation,
			wantMsg:    "slug already exists",
			wantCode:   "SLUG_TAKEN",
		},
		{
			name:       "404はValidationになること",
			status:     http.StatusNotFound,
			body:       `{"message":"course not found"}`,
			wantKind:   KindValidation,
			wantSentry: ErrValidation,
			wantMsg:    "course not found",
		},
		{
			name:       "500はServerになること",
			status:     http.StatusInternalServerError,
			body:       `{"error":"boom"}`,
			wantKind:   KindServer,
			wantSentry: ErrServer,
			wantMsg:    "boom",
		},
		{
			name:       "JSONでないボディはそのままメッセージになること",
			status:     http.StatusBadGateway,
			body:       "upstream unavailable",
			wantKind:   KindServer,
			wantSentry: ErrServer,
			wantMsg:    "upstream unavailable",
		},
		{
			name:       "空のボディはステータステキストになること",
			status:     http.StatusForbidden,
			body:       "",
			wantKind:   KindValidation,
			wantSentry: ErrValidation,
			wantMsg:    http.StatusText(http.StatusForbidden),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client := newTestClient(t, ts.URL)
			err := client.GetJSON(context.Background(), "/courses", nil)
			if err == nil {
				t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("RequestErrorではない: %T", err)
			}
			if reqErr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", reqErr.Kind, tt.wantKind)
			}
			if !errors.Is(err, tt.wantSentry) {
				t.Errorf("errors.Is(err, %v) = false", tt.wantSentry)
			}
			if reqErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", reqErr.StatusCode, tt.status)
			}
			if reqErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", reqErr.Message, tt.wantMsg)
			}
			if reqErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", reqErr.Code, tt.wantCode)
			}
			if hits.Load() != 1 {
				t.Errorf("hits = %d, want 1 (再送されてはいけない)", hits.Load())
			}
		})
	}

	t.Run("接続できないサーバーはTransportになること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, "http://127.0.0.1:1")
		err := client.GetJSON(context.Background(), "/courses", nil)
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("errors.Is(err, ErrTransport) = false: %v", err)
		}
		if StatusCode(err) != 0 {
			t.Errorf("StatusCode = %d, want 0", StatusCode(err))
		}
	})

	t.Run("タイムアウトはTransportとなり再送されないこと", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			select {
			case <-release:
			case <-r.Context().Done():
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer ts.Close()
		defer close(release)

		client := newTestClient(t, ts.URL, WithTimeout(time.Minute))
		err := client.GetJSON(context.Background(), "/courses", nil, WithRequestTimeout(50*time.Millisecond))
		if KindOf(err) != KindTransport {
			t.Fatalf("KindOf(err) = %v, want transport: %v", KindOf(err), err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("errors.Is(err, context.DeadlineExceeded) = false: %v", err)
		}
		if hits.Load() != 1 {
			t.Errorf("hits = %d, want 1", hits.Load())
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		client := newTestClient(t, ts.URL)
		var result testPayload
		if err := client.GetJSON(context.Background(), "/courses", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("シリアライズできないボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, "http://127.0.0.1:1")
		if err := client.PostJSON(context.Background(), "/courses", make(chan int), nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestMetrics はメトリクスが記録されることを検証する。
func TestMetrics(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := newTestClient(t, ts.URL, WithMetrics(metrics))

	_ = client.GetJSON(context.Background(), "/courses", nil)
	_ = client.GetJSON(context.Background(), "/broken", nil)

	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, "ok")); got != 1 {
		t.Errorf("requests_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, "server")); got != 1 {
		t.Errorf("requests_total{server} = %v, want 1", got)
	}
}

// TestKind はKindの文字列表現を検証する。
func TestKind(t *testing.T) {
	t.Parallel()

	want := map[Kind]string{
		KindTransport:            "transport",
		KindAuthorizationExpired: "authorization_expired",
		KindRefreshFailed:        "refresh_failed",
		KindValidation:           "validation",
		KindServer:               "server",
		Kind(0):                  "unknown",
	}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), k.String(), s)
		}
	}
}
