// Package auth は認証APIの呼び出し、セッション状態の保持、画面遷移のガードを提供する。
//
// Store はプロセス内で唯一のセッション状態を持ち、イベントバスから SessionExpired を
// 受け取ると未認証状態に戻る。ガード関数は Store のスナップショットから遷移先を決める。
package auth
