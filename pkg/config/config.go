// Package config はサービスの設定をYAMLファイルと環境変数から読み込む。
//
// 環境変数はYAMLの値を上書きする。署名鍵の長さはここでは検査しない。
// 鍵長の検査はトークン発行時にtokenパッケージが行う。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config はサービス全体の設定。
type Config struct {
	// Server はHTTPサーバーの設定。
	Server ServerConfig `yaml:"server"`
	// Database はSQLiteデータベースの設定。
	Database DatabaseConfig `yaml:"database"`
	// APIKey は全リクエストに要求する共有シークレット。
	APIKey string `yaml:"api_key"`
	// JWT は識別トークンの設定。
	JWT JWTConfig `yaml:"jwt"`
	// RateLimit はレート制限の設定。
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
}

// DatabaseConfig はSQLiteデータベースの設定。
type DatabaseConfig struct {
	// Path はデータベースファイルのパス。
	Path string `yaml:"path"`
}

// JWTConfig は識別トークンの設定。
type JWTConfig struct {
	// Key はHMAC署名用の秘密鍵。32バイト以上を要求する。
	Key string `yaml:"key"`
	// Issuer はissクレームに設定する発行者名。
	Issuer string `yaml:"issuer"`
	// Audience はaudクレームに設定する対象者名。
	Audience string `yaml:"audience"`
	// ExpiresInMinutes はトークンの有効期間（分）。
	ExpiresInMinutes int `yaml:"expires_in_minutes"`
}

// TTL はトークンの有効期間をtime.Durationで返す。
func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpiresInMinutes) * time.Minute
}

// RateLimitConfig はレート制限の設定。
type RateLimitConfig struct {
	// MaxRequests は1ウィンドウあたりの上限リクエスト数。
	MaxRequests int `yaml:"max_requests"`
	// WindowSeconds はウィンドウの長さ（秒）。
	WindowSeconds int `yaml:"window_seconds"`
}

// Window はウィンドウ長をtime.Durationで返す。
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Default は開発用の既定設定を返す。
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Path: "/data/catalog.db"},
		JWT: JWTConfig{
			Issuer:           "catalog-api",
			Audience:         "catalog-clients",
			ExpiresInMinutes: 60,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   5,
			WindowSeconds: 10,
		},
	}
}

// Load は設定を読み込む。pathが空でなければYAMLファイルを読み、
// その後に環境変数で上書きし、最後に妥当性を検査する。
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイルのパースに失敗: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv は環境変数による上書きを適用する。
func (c *Config) applyEnv() {
	c.Server.Port = getEnvOr("PORT", c.Server.Port)
	c.Database.Path = getEnvOr("DATABASE_PATH", c.Database.Path)
	c.APIKey = getEnvOr("API_KEY", c.APIKey)
	c.JWT.Key = getEnvOr("JWT_KEY", c.JWT.Key)
	c.JWT.Issuer = getEnvOr("JWT_ISSUER", c.JWT.Issuer)
	c.JWT.Audience = getEnvOr("JWT_AUDIENCE", c.JWT.Audience)

	if v := os.Getenv("JWT_EXPIRES_IN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.JWT.ExpiresInMinutes = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.MaxRequests = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.WindowSeconds = n
		}
	}
}

// validate は設定の明らかな不備を検査する。
func (c Config) validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.portが設定されていません"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.pathが設定されていません"))
	}
	if c.JWT.ExpiresInMinutes <= 0 {
		errs = append(errs, errors.New("jwt.expires_in_minutesは1以上でなければなりません"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate_limit.max_requestsは1以上でなければなりません"))
	}
	if c.RateLimit.WindowSeconds <= 0 {
		errs = append(errs, errors.New("rate_limit.window_secondsは1以上でなければなりません"))
	}
	return errors.Join(errs...)
}

// getEnvOr は環境変数が設定されていればその値を、なければfallbackを返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
