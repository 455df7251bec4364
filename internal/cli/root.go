package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nao1215/cursory/internal/config"
	"github.com/nao1215/cursory/pkg/validation"
)

// tracerName はCLIが生成するスパンの計装名。
const tracerName = "github.com/nao1215/cursory/internal/cli"

// ErrNotLoggedIn は認証が必要なコマンドを未ログインで実行したことを表す。
var ErrNotLoggedIn = errors.New("ログインしていません。cursory login でログインしてください")

// Build information. -ldflags で上書きする。
var (
	Version = "dev"
	Commit  = "none"
)

// rootOptions はグローバルフラグの値。
type rootOptions struct {
	configFile  string
	apiURL      string
	sessionFile string
	logLevel    string
	trace       bool
}

// cliState はコマンド間で共有する実行時の状態。
type cliState struct {
	opts   rootOptions
	out    io.Writer
	errOut io.Writer
	// app はPersistentPreRunEで生成される。
	app *app
	// span はコマンド全体のスパン。
	span trace.Span
}

// Execute はコマンドを実行し、終了コードを返す。
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root, st := newRootCommand(out, errOut)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if st.span != nil {
		if err != nil {
			st.span.RecordError(err)
			st.span.SetStatus(codes.Error, err.Error())
		}
		st.span.End()
	}
	if st.app != nil {
		if cerr := st.app.close(context.WithoutCancel(ctx)); cerr != nil {
			fmt.Fprintln(errOut, cerr)
		}
	}
	if err != nil {
		printError(errOut, err)
		return 1
	}
	return 0
}

// newRootCommand はルートコマンドを生成する。
func newRootCommand(out, errOut io.Writer) (*cobra.Command, *cliState) {
	st := &cliState{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "cursory",
		Short: "コース管理APIのコマンドラインクライアント",
		Long: `cursory はコース管理APIのコマンドラインクライアントです。

設定は ./cursory.yaml または $HOME/.cursory/cursory.yaml から読み込みます。
環境変数 CURSORY_ 接頭辞で設定を上書きできます（例: CURSORY_API_BASE_URL）。
ログイン状態はセッションファイル（既定: $HOME/.cursory/session.json）に保存します。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsApp(cmd) {
				return nil
			}
			cfg, err := st.loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, out, errOut)
			if err != nil {
				return err
			}
			st.app = a

			ctx, span := a.tracer.Start(cmd.Context(), cmd.CommandPath(),
				trace.WithAttributes(attribute.String("cli.command", cmd.CommandPath())))
			st.span = span
			cmd.SetContext(ctx)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&st.opts.configFile, "config", "", "設定ファイル（既定: ./cursory.yaml）")
	flags.StringVar(&st.opts.apiURL, "api-url", "", "APIのベースURL")
	flags.StringVar(&st.opts.sessionFile, "session-file", "", "セッションファイルのパス")
	flags.StringVar(&st.opts.logLevel, "log-level", "", "ログレベル（debug, info, warn, error）")
	flags.BoolVar(&st.opts.trace, "trace", false, "トレースを標準エラー出力に書き出す")

	root.AddCommand(
		newVersionCommand(st),
		newLoginCommand(st),
		newLogoutCommand(st),
		newSessionCommand(st),
		newCoursesCommand(st),
		newModulesCommand(st),
		newResourcesCommand(st),
	)
	return root, st
}

// loadConfig は設定を読み込み、フラグで指定された値で上書きする。
func (st *cliState) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: st.opts.configFile})
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = strings.TrimRight(st.opts.apiURL, "/")
	}
	if flags.Changed("session-file") {
		cfg.SessionFile = st.opts.sessionFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(st.opts.logLevel)
	}
	if flags.Changed("trace") {
		cfg.Trace = st.opts.trace
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// needsApp はコマンドがAPIクライアントを必要とするかどうかを返す。
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion":
			return false
		}
	}
	return true
}

// protected は認証が必要なコマンドの前処理。未認証ならErrNotLoggedInを返す。
func (st *cliState) protected(cmd *cobra.Command) error {
	return st.app.requireAuth(cmd.Context(), cmd.CommandPath())
}

// print は値をインデント付きJSONで出力する。
func (st *cliState) print(v any) error {
	enc := json.NewEncoder(st.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("出力のエンコードに失敗: %w", err)
	}
	return nil
}

// printError はエラーを出力する。検証エラーはフィールドごとに表示する。
func printError(w io.Writer, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		fmt.Fprintln(w, "入力内容が不正です:")
		for _, f := range verr.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Message)
		}
		return
	}
	fmt.Fprintln(w, "エラー:", err)
}

// newVersionCommand はversionコマンドを生成する。
func newVersionCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "バージョンを表示する",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return st.print(map[string]string{"version": Version, "commit": Commit})
		},
	}
}
