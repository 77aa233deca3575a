package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Preview   PreviewConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// PreviewConfig holds preview runtime configuration.
type PreviewConfig struct {
	EntryPath         string        `envconfig:"PREVIEW_ENTRY" default:"index.html"`
	DebounceInterval  time.Duration `envconfig:"PREVIEW_DEBOUNCE" default:"300ms"`
	SandboxTimeout    time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	SandboxPoolSize   int           `envconfig:"SANDBOX_POOL_SIZE" default:"2"`
	EnableBackendMock bool          `envconfig:"PREVIEW_BACKEND_MOCK" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Preview: PreviewConfig{
			EntryPath:         "index.html",
			DebounceInterval:  300 * time.Millisecond,
			SandboxTimeout:    5 * time.Second,
			SandboxPoolSize:   2,
			EnableBackendMock: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
