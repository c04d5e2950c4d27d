// Package config loads and validates application configuration from
// environment variables. A .env file in the working directory is applied
// first, matching how the service is run in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Graph API settings.
	GraphBaseURL string
	AccessToken  string // credential used for every Graph call
	AdAccountID  string // default ad account (with or without act_ prefix)
	PageID       string // Facebook page for page-level reports
	InstagramID  string // Instagram business account for media reports

	// Request pacing and retry settings.
	HTTPTimeout time.Duration
	MinInterval time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	PageSize    int
	Workers     int

	// Redis response cache. Empty URL disables caching.
	RedisURL string
	CacheTTL time.Duration

	// Operational settings.
	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment with sensible defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:         envInt("INSIGHTS_PORT", 8080),
		ReadTimeout:  envDuration("INSIGHTS_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: envDuration("INSIGHTS_WRITE_TIMEOUT", 120*time.Second),
		GraphBaseURL: envStr("INSIGHTS_GRAPH_BASE_URL", ""),
		AccessToken:  envStr("META_ACCESS_TOKEN", ""),
		AdAccountID:  envStr("META_AD_ACCOUNT_ID", ""),
		PageID:       envStr("META_PAGE_ID", ""),
		InstagramID:  envStr("META_INSTAGRAM_ID", ""),
		HTTPTimeout:  envDuration("INSIGHTS_HTTP_TIMEOUT", 30*time.Second),
		MinInterval:  envDuration("INSIGHTS_MIN_INTERVAL", 200*time.Millisecond),
		MaxRetries:   envInt("INSIGHTS_MAX_RETRIES", 3),
		BaseBackoff:  envDuration("INSIGHTS_BASE_BACKOFF", time.Second),
		PageSize:     envInt("INSIGHTS_PAGE_SIZE", 500),
		Workers:      envInt("INSIGHTS_WORKERS", 2),
		RedisURL:     envStr("REDIS_URL", ""),
		CacheTTL:     envDuration("INSIGHTS_CACHE_TTL", 5*time.Minute),
		LogLevel:     envStr("INSIGHTS_LOG_LEVEL", "info"),
		LogPretty:    envBool("INSIGHTS_LOG_PRETTY", false),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("config: META_ACCESS_TOKEN is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: INSIGHTS_PORT must be in (0, 65535]")
	}
	if c.MinInterval <= 0 {
		return fmt.Errorf("config: INSIGHTS_MIN_INTERVAL must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: INSIGHTS_MAX_RETRIES must not be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: INSIGHTS_PAGE_SIZE must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: INSIGHTS_WORKERS must be at least 1")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
