package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// errors.Isで判定するためのセンチネルエラー。
var (
	// ErrTransport はネットワーク障害やタイムアウトなど、HTTPレスポンスを得られなかったことを表す。
	ErrTransport = errors.New("通信エラー")
	// ErrAuthorizationExpired は保護されたエンドポイントが401を返したことを表す。
	ErrAuthorizationExpired = errors.New("認証の有効期限切れ")
	// ErrRefreshFailed は再認証エンドポイントの呼び出し自体が失敗したことを表す。
	ErrRefreshFailed = errors.New("再認証に失敗")
	// ErrValidation はバックエンドが4xx（401以外）を返したことを表す。
	ErrValidation = errors.New("リクエストが不正")
	// ErrServer はバックエンドが5xxを返したことを表す。
	ErrServer = errors.New("サーバーエラー")
	// ErrRefreshInProgress は別のリクエストによる再認証が進行中のため、待機せずに失敗したことを表す。
	ErrRefreshInProgress = errors.New("再認証が進行中")
)

// Kind はRequestErrorの分類。
type Kind int

const (
	// KindTransport はネットワーク障害・タイムアウト。再送しない。
	KindTransport Kind = iota + 1
	// KindAuthorizationExpired は401。保護されたエンドポイントでは再認証後に1回だけ再送する。
	KindAuthorizationExpired
	// KindRefreshFailed は再認証の失敗。呼び出し元に返すと同時にセッション切れを通知する。
	KindRefreshFailed
	// KindValidation は401以外の4xx。バックエンドのメッセージをそのまま返す。
	KindValidation
	// KindServer は5xx。バックエンドのメッセージをそのまま返す。
	KindServer
)

// String はメトリクスのラベルやログに使う文字列表現を返す。
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthorizationExpired:
		return "authorization_expired"
	case KindRefreshFailed:
		return "refresh_failed"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// sentinel はKindに対応するセンチネルエラーを返す。
func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindAuthorizationExpired:
		return ErrAuthorizationExpired
	case KindRefreshFailed:
		return ErrRefreshFailed
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServer
	default:
		return nil
	}
}

// kindFromStatus はHTTPステータスコードからKindを決定する。
func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthorizationExpired
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindValidation
	}
}

// RequestError はバックエンド呼び出しの失敗を表す。
// HTTPステータスとバックエンドが返したエラーメッセージを保持する。
type RequestError struct {
	// Kind は失敗の分類。
	Kind Kind
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// StatusCode はHTTPステータスコード。通信エラーの場合は0。
	StatusCode int
	// Message はバックエンドが返したエラーメッセージ。
	Message string
	// Code はバックエンドが返したエラーコード（任意）。
	Code string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s %s: status=%d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status=%d", e.Method, e.Path, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	}
}

// Unwrap は原因となったエラーを返す。
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is はKindに対応するセンチネルエラーとの比較をサポートする。
func (e *RequestError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf はエラーチェーン中の最も外側のRequestErrorのKindを返す。
// RequestErrorを含まない場合は0を返す。
func KindOf(err error) Kind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return 0
}

// StatusCode はエラーチェーン中の最も外側のRequestErrorのHTTPステータスを返す。
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// errorBody はバックエンドのエラーレスポンスのJSON構造。
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
