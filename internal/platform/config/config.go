// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	// RedisURL enables cross-instance cache invalidation when set.
	RedisURL  string `env:"REDIS_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// CacheSize bounds the in-memory question snapshot cache.
	CacheSize int `env:"QUESTION_CACHE_SIZE" default:"100"`

	// PushSendTimeout bounds one push delivery attempt to a member.
	PushSendTimeout time.Duration `env:"PUSH_SEND_TIMEOUT" default:"2s"`

	// Rate limit for mutating API calls, per client IP.
	WriteRatePerSecond float64 `env:"WRITE_RATE_PER_SECOND" default:"5"`
	WriteRateBurst     int     `env:"WRITE_RATE_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("QUESTION_CACHE_SIZE must be positive, got %d", cfg.CacheSize)
	}
	if cfg.PushSendTimeout <= 0 {
		return fmt.Errorf("PUSH_SEND_TIMEOUT must be positive, got %s", cfg.PushSendTimeout)
	}
	return nil
}
