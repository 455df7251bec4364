package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nao1215/cursory/internal/auth"
)

// newLoginCommand はloginコマンドを生成する。
func newLoginCommand(st *cliState) *cobra.Command {
	var creds auth.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "メールアドレスとパスワードでログインする",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.ValidateCredentials(creds); err != nil {
				return err
			}

			a := st.app
			// ログイン失敗時の再認証の失敗はセッション失効として案内しない
			a.quiet.Store(true)
			defer a.quiet.Store(false)
			if err := a.store.Login(cmd.Context(), creds); err != nil {
				if msg := a.store.Snapshot().Err; msg != "" {
					return errors.New(msg)
				}
				return err
			}
			return st.print(a.store.Snapshot())
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "メールアドレス")
	cmd.Flags().StringVar(&creds.Password, "password", "", "パスワード")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// newLogoutCommand はlogoutコマンドを生成する。
func newLogoutCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "ログアウトしてセッションを破棄する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := st.app
			err := a.store.Logout(cmd.Context())
			// APIの成否にかかわらずローカルのセッションは破棄する
			if cerr := a.jar.Clear(); cerr != nil {
				return cerr
			}
			if err != nil {
				a.logger.Warn("ログアウトAPIの呼び出しに失敗しました", "error", err)
			}
			return st.print(a.store.Snapshot())
		},
	}
}

// newSessionCommand はsessionコマンドを生成する。
func newSessionCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "現在のログイン状態を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := st.app
			if err := a.store.CheckAuth(cmd.Context()); err != nil {
				a.logger.Debug("セッションの確認に失敗", "error", err)
			}
			return st.print(a.store.Snapshot())
		},
	}
}
