// Package config はCLIの設定を読み込む。
//
// 読み込み順序（後が優先）: 既定値、設定ファイル（cursory.yaml）、環境変数（CURSORY_ 接頭辞）。
// 環境変数の前に .env ファイルを読み込む。既に設定されている環境変数は上書きしない。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nao1215/cursory/pkg/validation"
)

const (
	// EnvPrefix は環境変数の接頭辞。
	EnvPrefix = "CURSORY"
	// configName は設定ファイルの拡張子を除いた名前。
	configName = "cursory"
	// configDirName はホームディレクトリ配下の設定ディレクトリ名。
	configDirName = ".cursory"
)

// Config はCLIの設定。
type Config struct {
	// APIBaseURL はバックエンドAPIのベースURL。
	APIBaseURL string `mapstructure:"api_base_url" json:"api_base_url" validate:"required,url"`
	// AppEnv は実行環境。development, production, test のいずれか。
	AppEnv string `mapstructure:"app_env" json:"app_env" validate:"required,oneof=development production test"`
	// EnableDevTools は開発用の診断出力を有効にするかどうか。
	EnableDevTools bool `mapstructure:"enable_dev_tools" json:"enable_dev_tools"`
	// Timeout は通常のリクエストのタイムアウト。
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" validate:"gt=0"`
	// GenerateTimeout はAI生成リクエストのタイムアウト。
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" json:"generate_timeout" validate:"gt=0"`
	// SessionFile は認証Cookieを保存するファイルのパス。
	SessionFile string `mapstructure:"session_file" json:"session_file" validate:"required"`
	// LogLevel はログレベル。debug, info, warn, error のいずれか。
	LogLevel string `mapstructure:"log_level" json:"log_level" validate:"required,oneof=debug info warn error"`
	// Trace はOpenTelemetryのトレースを標準エラー出力に書き出すかどうか。
	Trace bool `mapstructure:"trace" json:"trace"`
}

// Options は設定の読み込み方法を指定する。
type Options struct {
	// ConfigFile は設定ファイルのパス。空の場合は . と $HOME/.cursory から cursory.yaml を探す。
	ConfigFile string
	// EnvFile は .env ファイルのパス。空の場合はカレントディレクトリの .env を使う。
	EnvFile string
	// HomeDir はホームディレクトリ。空の場合は os.UserHomeDir を使う。
	HomeDir string
}

// messages は設定項目ごとのエラーメッセージ。
var messages = validation.Messages{
	"api_base_url.required": "api_base_url は必須です",
	"api_base_url.url":      "api_base_url は有効なURLである必要があります",
	"app_env.oneof":         "app_env は development, production, test のいずれかです",
	"timeout.gt":            "timeout は0より大きい必要があります",
	"generate_timeout.gt":   "generate_timeout は0より大きい必要があります",
	"session_file.required": "session_file は必須です",
	"log_level.oneof":       "log_level は debug, info, warn, error のいずれかです",
}

// Load は設定を読み込んで検証する。
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	home := opts.HomeDir
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("ホームディレクトリの取得に失敗: %w", err)
		}
		home = h
	}

	v := viper.New()
	setDefaults(v, home)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, configDirName))
	}

	// 環境変数: CURSORY_API_BASE_URL など
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗: %w", err)
	}
	cfg.normalize(home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults は既定値を設定する。AutomaticEnvは既定値のあるキーだけを環境変数から読むため、全キーに既定値を与える。
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("api_base_url", "http://localhost:3000")
	v.SetDefault("app_env", "development")
	v.SetDefault("enable_dev_tools", false)
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("generate_timeout", 120*time.Second)
	v.SetDefault("session_file", filepath.Join(home, configDirName, "session.json"))
	v.SetDefault("log_level", "info")
	v.SetDefault("trace", false)
}

// loadEnvFile は .env ファイルを読み込む。ファイルがなければ何もしない。
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return nil
}

// normalize は値の表記ゆれを揃える。
func (c *Config) normalize(home string) {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if rest, ok := strings.CutPrefix(c.SessionFile, "~/"); ok {
		c.SessionFile = filepath.Join(home, rest)
	}
}

// Validate は設定値を検証する。検証エラーは *validation.Error として返す。
func (c Config) Validate() error {
	return validation.Struct(c, messages)
}

// IsDevelopment は開発環境かどうかを返す。
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SlogLevel はログレベルをslog.Levelに変換する。
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
