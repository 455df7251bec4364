package auth

import (
	"time"

	"github.com/nao1215/cursory/pkg/validation"
)

// User はバックエンドが返すユーザー情報。
type User struct {
	// ID はユーザーの識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Name は表示名。
	Name string `json:"name,omitempty"`
}

// Credentials はログインに使う認証情報。
type Credentials struct {
	// Email はメールアドレス。
	Email string `json:"email" validate:"required,email"`
	// Password はパスワード。
	Password string `json:"password" validate:"required,min=8,password_charset"`
}

// Session はバックエンドが返すセッション情報。
type Session struct {
	// IsAuthenticated は認証済みかどうか。
	IsAuthenticated bool `json:"isAuthenticated"`
	// LastActivity は最終アクティビティ日時。
	LastActivity time.Time `json:"lastActivity"`
}

// SessionInfo は GET /auth/session のレスポンス。
type SessionInfo struct {
	// User は認証済みユーザー。
	User User `json:"user"`
	// Session はセッション情報。
	Session Session `json:"session"`
}

// loginResponse は POST /auth/login のレスポンス。
type loginResponse struct {
	User User `json:"user"`
}

// messageResponse はメッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// credentialMessages はログインフォームのエラーメッセージ。
var credentialMessages = validation.Messages{
	"email.required":            "メールアドレスは必須です",
	"email.email":               "メールアドレスの形式が不正です",
	"password.required":         "パスワードは必須です",
	"password.min":              "パスワードは8文字以上である必要があります",
	"password.password_charset": "パスワードに使用できない文字が含まれています",
}

// ValidateCredentials はログインフォームの入力を検証する。
// 検証エラーは *validation.Error として返す。
func ValidateCredentials(c Credentials) error {
	return validation.Struct(c, credentialMessages)
}
