// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Cookieで受け渡すアクセストークン（JWT）の発行と検証、構造化リクエストログ、
// パニックリカバリ、資格情報付きのCORS設定を含む。
package middleware
