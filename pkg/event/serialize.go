package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。nilの場合はペイロードなしのイベントになる。
func New(eventType Type, data any) (Event, error) {
	ev := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
	if data == nil {
		return ev, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}
	ev.Data = jsonData
	return ev, nil
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e Event) (*T, error) {
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("イベント %s にデータがありません", e.Type)
	}
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
