package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SinksFile string `mapstructure:"sinks_file"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	RedditMode              string        `mapstructure:"reddit_mode"`
	RedditClientID          string        `mapstructure:"reddit_client_id"`
	RedditClientSecret      string        `mapstructure:"reddit_client_secret"`
	RedditUsername          string        `mapstructure:"reddit_username"`
	RedditPassword          string        `mapstructure:"reddit_password"`
	RedditUserAgent         string        `mapstructure:"reddit_user_agent"`
	RedditRequestIntervalMs int64         `mapstructure:"reddit_request_interval_ms"`
	RedditRequestInterval   time.Duration `mapstructure:"-"`

	RateRetentionSeconds int64         `mapstructure:"rate_retention_seconds"`
	RateRetention        time.Duration `mapstructure:"-"`

	HistoryType string `mapstructure:"history_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`

	DefaultQuality string `mapstructure:"default_quality"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-media-relay")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sinks_file", "")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("reddit_mode", "public")
	v.SetDefault("reddit_client_id", "")
	v.SetDefault("reddit_client_secret", "")
	v.SetDefault("reddit_username", "")
	v.SetDefault("reddit_password", "")
	v.SetDefault("reddit_user_agent", "samvad-media-relay (post mirroring relay)")
	v.SetDefault("reddit_request_interval_ms", 1000)
	v.SetDefault("rate_retention_seconds", 900)
	v.SetDefault("history_type", "none")
	v.SetDefault("bbolt_path", "./data/history.db")
	v.SetDefault("default_quality", "superior")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.RedditRequestIntervalMs <= 0 {
		return nil, fmt.Errorf("invalid reddit_request_interval_ms (must be positive)")
	}
	cfg.RedditRequestInterval = time.Duration(cfg.RedditRequestIntervalMs) * time.Millisecond

	if cfg.RateRetentionSeconds <= 0 {
		return nil, fmt.Errorf("invalid rate_retention_seconds (must be positive)")
	}
	cfg.RateRetention = time.Duration(cfg.RateRetentionSeconds) * time.Second

	if cfg.RedditMode == "api" {
		if cfg.RedditClientID == "" || cfg.RedditClientSecret == "" {
			return nil, fmt.Errorf("reddit_mode=api requires reddit_client_id and reddit_client_secret")
		}
	}

	return &cfg, nil
}
