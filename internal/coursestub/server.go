package coursestub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/cursory/pkg/middleware"
)

// Server はコース管理バックエンドのスタブHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバー設定。
	cfg Config
	// queries はSQLiteに対するクエリ。
	queries *queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// logger はロガー。
	logger *slog.Logger
	// metrics はPrometheusメトリクス。
	metrics *metrics
	// now は現在時刻。テストで差し替える。
	now func() time.Time
}

// NewServer は新しいスタブサーバーを生成する。
// SQLiteデータベースを開き、スキーマの適用とシードユーザーの作成を行う。
func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := NewServerWithDB(ctx, sqlDB, cfg, logger)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewServerWithDB は既存のデータベース接続からスタブサーバーを生成する。
func NewServerWithDB(ctx context.Context, sqlDB *sql.DB, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	if err := initSchema(ctx, sqlDB, logger); err != nil {
		return nil, err
	}

	s := &Server{
		router:  gin.New(),
		cfg:     cfg,
		queries: newQueries(sqlDB),
		db:      sqlDB,
		logger:  logger,
		metrics: newMetrics(),
		now:     time.Now,
	}

	if cfg.SeedEmail != "" {
		if err := s.SeedUser(ctx, cfg.SeedEmail, cfg.SeedPassword, cfg.SeedName); err != nil {
			return nil, err
		}
	}

	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.RequestLogger(logger))
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.router.Use(s.metrics.middleware())
	s.setupRoutes(middleware.CookieJWTAuth(cfg.JWTSecret))

	return s, nil
}

// Handler はHTTPハンドラを返す。httptest.Server に渡す用途を想定する。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("シャットダウンに失敗: %w", err)
		}
		return nil
	}
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// SeedUser はユーザーが存在しなければ作成する。既に存在する場合は何もしない。
func (s *Server) SeedUser(ctx context.Context, email, password, name string) error {
	if _, err := s.queries.getUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, errNotFound) {
		return fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}

	hash, err := argon2id.CreateHash(password, s.cfg.HashParams)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	if err := s.queries.createUser(ctx, userRow{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}); err != nil {
		return fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	s.logger.Info("シードユーザーを作成しました", "email", email)
	return nil
}

// setupRoutes はAPIルーティングを設定する。authは保護エンドポイントに適用する認証ミドルウェア。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	authGroup := s.router.Group("/auth")
	{
		// ログイン
		authGroup.POST("/login", s.handleLogin())
		// アクセストークンの再発行
		authGroup.POST("/refresh", s.handleRefresh())
		// ログアウト
		authGroup.POST("/logout", auth, s.handleLogout())
		// セッション確認
		authGroup.GET("/session", auth, s.handleSession())
	}

	courses := s.router.Group("/courses")
	courses.Use(auth)
	{
		// コース一覧取得
		courses.GET("", s.handleListCourses())
		// コース作成
		courses.POST("", s.handleCreateCourse())
		// コースの下書き生成
		courses.POST("/generate", s.handleGenerateCourse())
		// コース詳細取得
		courses.GET("/:id", s.handleGetCourse())
		// コース更新
		courses.PUT("/:id", s.handleUpdateCourse())
		// コース削除
		courses.DELETE("/:id", s.handleDeleteCourse())

		// モジュール作成
		courses.POST("/:id/modules", s.handleCreateModule())
		// モジュール一括作成
		courses.POST("/:id/modules/bulk", s.handleBulkCreateModules())
		// モジュール案の生成
		courses.POST("/:id/modules/generate", s.handleGenerateModules())
		// モジュール取得
		courses.GET("/:id/modules/:moduleId", s.handleGetModule())
		// モジュール更新
		courses.PUT("/:id/modules/:moduleId", s.handleUpdateModule())
		// モジュール削除
		courses.DELETE("/:id/modules/:moduleId", s.handleDeleteModule())

		// リソース作成
		courses.POST("/:id/resources", s.handleCreateResource())
		// リソース更新
		courses.PUT("/:id/resources/:resourceId", s.handleUpdateResource())
		// リソース削除
		courses.DELETE("/:id/resources/:resourceId", s.handleDeleteResource())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "coursestub"})
	})
	// Prometheusメトリクス
	s.router.GET("/metrics", gin.WrapH(s.metrics.handler()))
}
