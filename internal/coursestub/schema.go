package coursestub

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/nao1215/cursory/pkg/migration"
)

// migrations はスキーマ定義のSQLファイル。
//
//go:embed migrations/*.sql
var migrations embed.FS

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if _, err := migration.Run(ctx, db, migrations, "migrations", logger); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
