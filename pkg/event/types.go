package event

import (
	"encoding/json"
	"time"
)

// Type はセッションイベントの種類を表す。
type Type string

const (
	// TypeSessionExpired は再認証に失敗しセッションが失効したことを表す。ペイロードは持たない。
	TypeSessionExpired Type = "SessionExpired"
	// TypeLoggedIn はログインに成功したことを表す。
	TypeLoggedIn Type = "LoggedIn"
	// TypeLoggedOut はログアウトしたことを表す。
	TypeLoggedOut Type = "LoggedOut"
)

// Event はバス上を流れる不変のイベントレコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Type はイベントの種類。
	Type Type `json:"type"`
	// OccurredAt はイベントが発生した日時。
	OccurredAt time.Time `json:"occurred_at"`
	// Data はイベント固有のデータ（JSON形式）。ペイロードがない場合はnil。
	Data json.RawMessage `json:"data,omitempty"`
}

// LoggedInData はLoggedInイベントのデータ。
type LoggedInData struct {
	// UserID はログインしたユーザーのID。
	UserID string `json:"user_id"`
	// Email はログインしたユーザーのメールアドレス。
	Email string `json:"email"`
}

// LoggedOutData はLoggedOutイベントのデータ。
type LoggedOutData struct {
	// Reason はログアウトの理由。"user" または "expired"。
	Reason string `json:"reason"`
}
