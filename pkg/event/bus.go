package event

import (
	"log/slog"
	"sync"
)

// Handler はイベントを受け取るコールバック。
type Handler func(Event)

// Bus はプロセス内のイベントバス。
// Publishは呼び出し元のgoroutineで購読者へ同期的に配信する。
type Bus struct {
	// mu はsubscribersを保護する。
	mu sync.RWMutex
	// subscribers は購読IDごとのハンドラ。
	subscribers map[uint64]Handler
	// nextID は次に払い出す購読ID。
	nextID uint64
	// logger はロガー。
	logger *slog.Logger
}

// NewBus は新しいイベントバスを生成する。loggerがnilの場合はslog.Default()を使う。
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[uint64]Handler),
		logger:      logger,
	}
}

// Subscribe はハンドラを登録し、登録解除用の関数を返す。
// 返された関数は何度呼んでも安全。
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeType は指定した種類のイベントだけを受け取るハンドラを登録する。
func (b *Bus) SubscribeType(t Type, h Handler) (unsubscribe func()) {
	return b.Subscribe(func(e Event) {
		if e.Type == t {
			h(e)
		}
	})
}

// Publish はイベントを全購読者に配信する。
// 配信先は呼び出し時点の購読者のスナップショットで、ハンドラ内での購読・解除はこの配信に影響しない。
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.logger.Debug("イベントを配信します", "type", e.Type, "subscribers", len(handlers))
	for _, h := range handlers {
		h(e)
	}
}

// NotifySessionExpired はペイロードなしのSessionExpiredイベントを配信する。
func (b *Bus) NotifySessionExpired() {
	ev, err := New(TypeSessionExpired, nil)
	if err != nil {
		b.logger.Error("SessionExpiredイベントの生成に失敗", "error", err)
		return
	}
	b.Publish(ev)
}

// Len は現在の購読者数を返す。
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
