// Package validation はgo-playground/validatorを使った入力検証の共通処理を提供する。
//
// フォームやリクエストの構造体タグで検証ルールを宣言し、Struct で検証する。
// 検証エラーはフィールドごとのメッセージを持つ *Error として返す。
package validation
