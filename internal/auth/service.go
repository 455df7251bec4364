package auth

import (
	"context"
	"fmt"

	"github.com/nao1215/cursory/pkg/httpclient"
)

// Requester は認証APIの呼び出しに使うHTTPクライアント。
// *httpclient.Client が満たす。
type Requester interface {
	GetJSON(ctx context.Context, path string, result any, opts ...httpclient.RequestOption) error
	PostJSON(ctx context.Context, path string, body, result any, opts ...httpclient.RequestOption) error
}

// Service は認証APIを呼び出すサービス。
type Service struct {
	// client はHTTPクライアント。
	client Requester
}

// NewService は新しい認証サービスを生成する。
func NewService(client Requester) *Service {
	return &Service{client: client}
}

// Login はメールアドレスとパスワードでログインし、認証済みユーザーを返す。
// 成功するとバックエンドが認証Cookieを設定する。
func (s *Service) Login(ctx context.Context, creds Credentials) (*User, error) {
	var resp loginResponse
	if err := s.client.PostJSON(ctx, "/auth/login", creds, &resp); err != nil {
		return nil, fmt.Errorf("ログインに失敗: %w", err)
	}
	return &resp.User, nil
}

// Logout はセッションを終了し、バックエンドの確認メッセージを返す。
func (s *Service) Logout(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := s.client.PostJSON(ctx, "/auth/logout", nil, &resp); err != nil {
		return "", fmt.Errorf("ログアウトに失敗: %w", err)
	}
	return resp.Message, nil
}

// Session は現在のセッション情報を取得する。
func (s *Service) Session(ctx context.Context) (*SessionInfo, error) {
	var resp SessionInfo
	if err := s.client.GetJSON(ctx, "/auth/session", &resp); err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗: %w", err)
	}
	return &resp, nil
}

// Refresh はアクセストークンを明示的に再発行する。
// 401時の自動再認証はHTTPクライアントが行うため、通常は呼び出す必要はない。
func (s *Service) Refresh(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := s.client.PostJSON(ctx, httpclient.DefaultRefreshPath, nil, &resp); err != nil {
		return "", fmt.Errorf("トークンの再発行に失敗: %w", err)
	}
	return resp.Message, nil
}
