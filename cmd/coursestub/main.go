// コース管理バックエンドのスタブサーバーのエントリポイント。
// CLIとSDKの結合テスト、およびローカル開発で使う。
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nao1215/cursory/internal/coursestub"
)

func main() {
	// .envはあれば読み込む
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := coursestub.ConfigFromEnv()

	server, err := coursestub.NewServer(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("スタブサーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	logger.Info("スタブサーバーを起動します", "addr", ":"+cfg.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("スタブサーバーの起動に失敗: %v", err)
	}
}
