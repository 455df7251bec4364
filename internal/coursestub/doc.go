// Package coursestub はコース管理バックエンドのリファレンス実装（スタブ）を提供する。
//
// CLIとSDKの結合テスト、およびローカル開発で使う。認証はCookieベースで、
// 短命のアクセストークン（JWT）と、ローテーションされる不透明なリフレッシュトークンを発行する。
// リフレッシュトークンはSHA-256ハッシュのみをSQLiteに保存する。
// コースとモジュールの生成エンドポイントはAIを呼ばず、入力から決定的に下書きを組み立てる。
package coursestub
