package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nao1215/cursory/pkg/event"
	"github.com/nao1215/cursory/pkg/httpclient"
)

// Authenticator はStoreが使う認証API。*Service が満たす。
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*User, error)
	Logout(ctx context.Context) (string, error)
	Session(ctx context.Context) (*SessionInfo, error)
}

// State はセッション状態のスナップショット。
type State struct {
	// User は認証済みユーザー。未認証の場合はnil。
	User *User `json:"user"`
	// Authenticated は認証済みかどうか。
	Authenticated bool `json:"authenticated"`
	// Loading は認証状態を確認中かどうか。
	Loading bool `json:"loading"`
	// Err は直近のログイン失敗のメッセージ。
	Err string `json:"error,omitempty"`
}

// Store はプロセス内で唯一のセッション状態を保持する。並行利用に対して安全。
type Store struct {
	// mu はstateとbusを保護する。
	mu sync.RWMutex
	// state は現在のセッション状態。
	state State
	// api は認証API。
	api Authenticator
	// bus はイベントの配信先。Attach前はnil。
	bus *event.Bus
	// logger はロガー。
	logger *slog.Logger
}

// NewStore は新しいStoreを生成する。初期状態は確認中（Loading=true）かつ未認証。
func NewStore(api Authenticator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:  State{Loading: true},
		api:    api,
		logger: logger,
	}
}

// Attach はイベントバスを購読し、SessionExpiredを受け取ったら未認証状態に戻す。
// 戻り値の関数で購読を解除する。
func (s *Store) Attach(bus *event.Bus) (detach func()) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()

	unsubscribe := bus.SubscribeType(event.TypeSessionExpired, func(event.Event) {
		s.logger.Info("セッションが失効したため未認証状態に戻します")
		s.ClearSession()
		s.publish(event.TypeLoggedOut, event.LoggedOutData{Reason: "expired"})
	})
	return func() {
		unsubscribe()
		s.mu.Lock()
		if s.bus == bus {
			s.bus = nil
		}
		s.mu.Unlock()
	}
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// CheckAuth はバックエンドのセッションを確認し、結果で状態を置き換える。
// 確認に失敗した場合は未認証状態になり、そのエラーを返す。
func (s *Store) CheckAuth(ctx context.Context) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Err = ""
	})

	info, err := s.api.Session(ctx)
	if err != nil {
		s.ClearSession()
		return err
	}
	s.setAuthenticated(&info.User)
	return nil
}

// Login はログインし、成功すれば認証済み状態にする。
// 失敗した場合はErrにメッセージを設定し、エラーを返す。
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Err = ""
	})

	user, err := s.api.Login(ctx, creds)
	if err != nil {
		msg := errorMessage(err)
		s.update(func(st *State) {
			st.Loading = false
			st.Err = msg
		})
		return err
	}

	s.setAuthenticated(user)
	s.publish(event.TypeLoggedIn, event.LoggedInData{UserID: user.ID, Email: user.Email})
	return nil
}

// Logout はログアウトする。APIの成否にかかわらず未認証状態に戻す。
func (s *Store) Logout(ctx context.Context) error {
	s.update(func(st *State) { st.Loading = true })

	_, err := s.api.Logout(ctx)
	s.ClearSession()
	if err != nil {
		s.logger.Error("ログアウト処理でエラーが発生", "error", err)
	}
	s.publish(event.TypeLoggedOut, event.LoggedOutData{Reason: "user"})
	return err
}

// ClearError はエラーメッセージを消去する。
func (s *Store) ClearError() {
	s.update(func(st *State) { st.Err = "" })
}

// ClearSession はネットワークを使わずに未認証状態に戻す。
func (s *Store) ClearSession() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
}

func (s *Store) setAuthenticated(user *User) {
	u := *user
	s.mu.Lock()
	s.state = State{User: &u, Authenticated: true}
	s.mu.Unlock()
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

// publish はAttach済みであればイベントを配信する。ロックを保持したまま配信しない。
func (s *Store) publish(t event.Type, data any) {
	s.mu.RLock()
	bus := s.bus
	s.mu.RUnlock()
	if bus == nil {
		return
	}

	ev, err := event.New(t, data)
	if err != nil {
		s.logger.Error("イベントの生成に失敗", "type", t, "error", err)
		return
	}
	bus.Publish(ev)
}

// errorMessage は利用者に表示するエラーメッセージを返す。
func errorMessage(err error) string {
	if httpclient.KindOf(err) == httpclient.KindRefreshFailed {
		return "認証に失敗しました"
	}
	var reqErr *httpclient.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return err.Error()
}
