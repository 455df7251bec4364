// Package httpclient はコース管理APIを呼び出すセッション対応HTTPクライアントを提供する。
//
// すべてのリクエストにCookie（認証情報）を付与し、アクセストークンの期限切れ（HTTP 401）を
// 検知した場合は再認証エンドポイントを1回だけ呼び出してから元のリクエストを1回だけ再送する。
// 再認証に失敗した場合は注入されたExpiryNotifierへセッション切れを通知する。
//
// 再認証中に別のリクエストが401を受け取った場合、そのリクエストは待機せずに即座に失敗する
// （fail fast）。再認証中フラグはクライアントインスタンスが所有し、
// 判定と設定は単一のアトミック操作で行う。
package httpclient
