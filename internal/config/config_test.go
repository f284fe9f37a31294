package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Web.Port != 8080 {
		t.Errorf("expected web port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Store.Path != "data/digifuse.db" {
		t.Errorf("expected store path data/digifuse.db, got %s", cfg.Store.Path)
	}
	if cfg.TextGen.Timeout != 20*time.Second {
		t.Errorf("expected text timeout 20s, got %v", cfg.TextGen.Timeout)
	}
	if cfg.ImageGen.Timeout != 60*time.Second {
		t.Errorf("expected image timeout 60s, got %v", cfg.ImageGen.Timeout)
	}
	if cfg.ImageGen.KeyPrefix != "sk-" {
		t.Errorf("expected key prefix sk-, got %s", cfg.ImageGen.KeyPrefix)
	}
	if cfg.ImageGen.OutputFormat != "jpeg" {
		t.Errorf("expected output format jpeg, got %s", cfg.ImageGen.OutputFormat)
	}
	if cfg.Staging.Dir == "" {
		t.Error("expected a default staging dir")
	}
	if cfg.Staging.MaxAge != time.Hour {
		t.Errorf("expected staging max age 1h, got %v", cfg.Staging.MaxAge)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Errorf("expected rate limit burst 3, got %d", cfg.RateLimit.Burst)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("DIGIFUSE_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("STABILITY_API_KEY", "sk-stability")
	t.Setenv("DIGIMON_API_URL", "http://catalog.local/api")
	t.Setenv("DIGIFUSE_WEB_PORT", "9090")
	t.Setenv("DIGIFUSE_STAGING_DIR", "/tmp/fusions")
	t.Setenv("GOOGLE_CLIENT_ID", "client-123.apps.googleusercontent.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TextGen.APIKey != "gemini-key" {
		t.Errorf("expected gemini key, got %s", cfg.TextGen.APIKey)
	}
	if cfg.ImageGen.APIKey != "sk-stability" {
		t.Errorf("expected stability key, got %s", cfg.ImageGen.APIKey)
	}
	if cfg.Catalog.URL != "http://catalog.local/api" {
		t.Errorf("expected catalog url override, got %s", cfg.Catalog.URL)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Staging.Dir != "/tmp/fusions" {
		t.Errorf("expected staging dir /tmp/fusions, got %s", cfg.Staging.Dir)
	}
	if cfg.Auth.GoogleClientID != "client-123.apps.googleusercontent.com" {
		t.Errorf("expected google client id override, got %s", cfg.Auth.GoogleClientID)
	}
}

func TestLoadInvalidPortIgnored(t *testing.T) {
	t.Setenv("DIGIFUSE_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("DIGIFUSE_WEB_PORT", "not-a-port")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port to survive bad override, got %d", cfg.Web.Port)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
web:
  port: 3000
textgen:
  api_key: "${TEST_GEMINI_KEY}"
  model: "gemini-2.0-flash"
imagegen:
  timeout: 90s
staging:
  sweep_schedule: "@hourly"
  max_age: 30m
telegram:
  token: "yaml-token"
  allow_from: [123, 456]
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DIGIFUSE_CONFIG", cfgPath)
	t.Setenv("TEST_GEMINI_KEY", "expanded-key")
	// Clear any env overrides
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DIGIFUSE_TELEGRAM_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Port != 3000 {
		t.Errorf("expected web port 3000, got %d", cfg.Web.Port)
	}
	if cfg.TextGen.APIKey != "expanded-key" {
		t.Errorf("expected env-expanded key, got %s", cfg.TextGen.APIKey)
	}
	if cfg.TextGen.Model != "gemini-2.0-flash" {
		t.Errorf("expected model gemini-2.0-flash, got %s", cfg.TextGen.Model)
	}
	if cfg.ImageGen.Timeout != 90*time.Second {
		t.Errorf("expected image timeout 90s, got %v", cfg.ImageGen.Timeout)
	}
	if cfg.ImageGen.Endpoint == "" {
		t.Error("expected default endpoint to survive partial yaml")
	}
	if cfg.Staging.SweepSchedule != "@hourly" {
		t.Errorf("expected @hourly, got %s", cfg.Staging.SweepSchedule)
	}
	if cfg.Staging.MaxAge != 30*time.Minute {
		t.Errorf("expected max age 30m, got %v", cfg.Staging.MaxAge)
	}
	if cfg.Telegram.Token != "yaml-token" {
		t.Errorf("expected yaml-token, got %s", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AllowFrom) != 2 {
		t.Errorf("expected 2 allow_from entries, got %d", len(cfg.Telegram.AllowFrom))
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("web: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DIGIFUSE_CONFIG", cfgPath)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
