package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile はテスト用のYAML設定ファイルを作成してパスを返す。
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}
	return path
}

// TestLoad はLoad関数を検証する。
// 環境変数を操作するサブテストがあるためt.Parallelは使用しない。
func TestLoad(t *testing.T) {
	t.Run("YAMLファイルから設定を読み込めること", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  port: "9090"
database:
  path: "/tmp/catalog-test.db"
api_key: "yaml-secret"
jwt:
  key: "yaml-signing-key-0123456789abcdef"
  issuer: "yaml-issuer"
  audience: "yaml-audience"
  expires_in_minutes: 30
rate_limit:
  max_requests: 7
  window_seconds: 20
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
		}
		if cfg.APIKey != "yaml-secret" {
			t.Errorf("APIKey = %q, want %q", cfg.APIKey, "yaml-secret")
		}
		if cfg.JWT.Issuer != "yaml-issuer" {
			t.Errorf("JWT.Issuer = %q, want %q", cfg.JWT.Issuer, "yaml-issuer")
		}
		if cfg.JWT.TTL() != 30*time.Minute {
			t.Errorf("JWT.TTL() = %v, want %v", cfg.JWT.TTL(), 30*time.Minute)
		}
		if cfg.RateLimit.MaxRequests != 7 {
			t.Errorf("RateLimit.MaxRequests = %d, want 7", cfg.RateLimit.MaxRequests)
		}
		if cfg.RateLimit.Window() != 20*time.Second {
			t.Errorf("RateLimit.Window() = %v, want %v", cfg.RateLimit.Window(), 20*time.Second)
		}
	})

	t.Run("パスが空の場合は既定値が使われること", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
		}
		if cfg.RateLimit.MaxRequests != 5 {
			t.Errorf("RateLimit.MaxRequests = %d, want 5", cfg.RateLimit.MaxRequests)
		}
	})

	t.Run("環境変数がYAMLの値を上書きすること", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  port: "9090"
database:
  path: "/tmp/catalog-test.db"
api_key: "yaml-secret"
jwt:
  expires_in_minutes: 30
rate_limit:
  max_requests: 7
  window_seconds: 20
`)
		t.Setenv("PORT", "7777")
		t.Setenv("API_KEY", "env-secret")
		t.Setenv("RATE_LIMIT_MAX_REQUESTS", "99")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Server.Port != "7777" {
			t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "7777")
		}
		if cfg.APIKey != "env-secret" {
			t.Errorf("APIKey = %q, want %q", cfg.APIKey, "env-secret")
		}
		if cfg.RateLimit.MaxRequests != 99 {
			t.Errorf("RateLimit.MaxRequests = %d, want 99", cfg.RateLimit.MaxRequests)
		}
	})

	t.Run("存在しないファイルパスの場合エラーを返すこと", func(t *testing.T) {
		if _, err := Load("/no/such/config.yaml"); err == nil {
			t.Fatal("存在しないファイルのLoad()がエラーを返すべき")
		}
	})

	t.Run("レート制限の設定が不正な場合エラーを返すこと", func(t *testing.T) {
		path := writeConfigFile(t, `
rate_limit:
  max_requests: 0
  window_seconds: 10
`)
		if _, err := Load(path); err == nil {
			t.Fatal("max_requests=0のLoad()がエラーを返すべき")
		}
	})

	t.Run("署名鍵が短くてもLoad自体は成功すること", func(t *testing.T) {
		// 鍵長の検査はトークン発行時に行う契約のため、ここでは失敗しない
		path := writeConfigFile(t, `
jwt:
  key: "short"
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.JWT.Key != "short" {
			t.Errorf("JWT.Key = %q, want %q", cfg.JWT.Key, "short")
		}
	})
}
