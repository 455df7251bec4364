// Package event はセッションに関するイベントと、プロセス内のイベントバスを提供する。
//
// HTTPクライアントは再認証に失敗したとき、誰が購読しているかを知らずに
// Bus.NotifySessionExpired を呼び出す。セッション状態を保持する側はバスを購読し、
// SessionExpired を受け取ったら未認証状態へ戻す。
package event
