// Package cli はコース管理APIのコマンドラインクライアント cursory を実装する。
//
// 認証Cookieはセッションファイルに保存され、次の実行で再利用される。
// アクセストークンが失効した場合はHTTPクライアントが1回だけ再発行を試み、
// 再発行にも失敗するとセッションファイルを破棄して再ログインを案内する。
package cli
