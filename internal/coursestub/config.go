package coursestub

import (
	"os"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
)

// Config はスタブサーバーの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// DSN はSQLiteのデータソース名。
	DSN string
	// JWTSecret はアクセストークンの署名鍵。
	JWTSecret string
	// AccessTokenTTL はアクセストークンの有効期間。
	AccessTokenTTL time.Duration
	// RefreshTokenTTL はリフレッシュトークンの有効期間。
	RefreshTokenTTL time.Duration
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// SecureCookies はCookieにSecure属性を付けるかどうか。
	SecureCookies bool
	// SeedEmail は起動時に作成するユーザーのメールアドレス。空の場合は作成しない。
	SeedEmail string
	// SeedPassword は起動時に作成するユーザーのパスワード。
	SeedPassword string
	// SeedName は起動時に作成するユーザーの表示名。
	SeedName string
	// HashParams はパスワードハッシュのパラメータ。nilの場合はargon2id.DefaultParams。
	HashParams *argon2id.Params
}

const (
	// defaultAccessTokenTTL はアクセストークンの既定の有効期間。
	defaultAccessTokenTTL = 15 * time.Minute
	// defaultRefreshTokenTTL はリフレッシュトークンの既定の有効期間。
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// ConfigFromEnv は環境変数から設定を読み込む。
func ConfigFromEnv() Config {
	cfg := Config{
		Port:            getEnvOr("PORT", "3000"),
		DSN:             getEnvOr("STUB_DB_DSN", "file:coursestub.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"),
		JWTSecret:       getEnvOr("JWT_SECRET", "dev-secret-key"),
		AccessTokenTTL:  durationEnvOr("ACCESS_TOKEN_TTL", defaultAccessTokenTTL),
		RefreshTokenTTL: durationEnvOr("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL),
		SecureCookies:   getEnvOr("COOKIE_SECURE", "false") == "true",
		SeedEmail:       os.Getenv("STUB_SEED_EMAIL"),
		SeedPassword:    os.Getenv("STUB_SEED_PASSWORD"),
		SeedName:        getEnvOr("STUB_SEED_NAME", "Stub User"),
	}
	for _, origin := range strings.Split(getEnvOr("FRONTEND_URL", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg
}

// withDefaults は未設定の項目を既定値で埋めた設定を返す。
func (c Config) withDefaults() Config {
	if c.Port == "" {
		c.Port = "3000"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-secret-key"
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = defaultAccessTokenTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	if c.HashParams == nil {
		c.HashParams = argon2id.DefaultParams
	}
	return c
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// durationEnvOr は環境変数を時間として解釈する。未設定または不正な値の場合はデフォルト値を返す。
func durationEnvOr(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
