// Package course はコース・モジュール・リソースのレコード、入力検証、
// REST APIを呼び出すサービス、AIによるモジュール生成のレビューフローを提供する。
package course
