package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web       WebConfig       `yaml:"web"`
	Store     StoreConfig     `yaml:"store"`
	NATS      NATSConfig      `yaml:"nats"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	TextGen   TextGenConfig   `yaml:"textgen"`
	ImageGen  ImageGenConfig  `yaml:"imagegen"`
	Staging   StagingConfig   `yaml:"staging"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type WebConfig struct {
	Port          int    `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type CatalogConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TextGenConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type ImageGenConfig struct {
	APIKey       string        `yaml:"api_key"`
	Endpoint     string        `yaml:"endpoint"`
	KeyPrefix    string        `yaml:"key_prefix"`
	OutputFormat string        `yaml:"output_format"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
}

type StagingConfig struct {
	Dir           string        `yaml:"dir"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	MaxAge        time.Duration `yaml:"max_age"`
}

type AuthConfig struct {
	SessionTTL     time.Duration `yaml:"session_ttl"`
	GoogleClientID string        `yaml:"google_client_id"`
}

type RateLimitConfig struct {
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

type TelegramConfig struct {
	Token     string  `yaml:"token"`
	AllowFrom []int64 `yaml:"allow_from"`
}

func defaults() Config {
	return Config{
		Web: WebConfig{
			Port:          8080,
			AllowedOrigin: "*",
		},
		Store: StoreConfig{
			Path: "data/digifuse.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Catalog: CatalogConfig{
			URL:     "https://digimon-api.vercel.app/api/digimon",
			Timeout: 10 * time.Second,
		},
		TextGen: TextGenConfig{
			Model:   "gemini-1.5-flash",
			Timeout: 20 * time.Second,
		},
		ImageGen: ImageGenConfig{
			Endpoint:     "https://api.stability.ai/v2beta/stable-image/generate/sd3",
			KeyPrefix:    "sk-",
			OutputFormat: "jpeg",
			Timeout:      60 * time.Second,
			MaxBytes:     32 << 20,
		},
		Staging: StagingConfig{
			Dir:           filepath.Join(os.TempDir(), "digifuse"),
			SweepSchedule: "*/15 * * * *",
			MaxAge:        time.Hour,
		},
		Auth: AuthConfig{
			SessionTTL: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Interval: 10 * time.Second,
			Burst:    3,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("DIGIFUSE_CONFIG")
	if path == "" {
		path = "config/digifuse.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.TextGen.APIKey = v
	}
	if v := os.Getenv("STABILITY_API_KEY"); v != "" {
		cfg.ImageGen.APIKey = v
	}
	if v := os.Getenv("DIGIMON_API_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("DIGIFUSE_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("DIGIFUSE_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("DIGIFUSE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DIGIFUSE_STAGING_DIR"); v != "" {
		cfg.Staging.Dir = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("DIGIFUSE_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
}
