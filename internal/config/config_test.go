package config

import (
	"testing"
	"time"
)

func TestEnvStr(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	if v := envStr("TEST_STR", "fallback"); v != "hello" {
		t.Fatalf("expected hello, got %s", v)
	}
	if v := envStr("TEST_STR_MISSING", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %s", v)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}

	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7 for malformed value, got %d", v)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "250ms")
	if v := envDuration("TEST_DUR", time.Second); v != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", v)
	}
	if v := envDuration("TEST_DUR_MISSING", time.Second); v != time.Second {
		t.Fatalf("expected fallback 1s, got %v", v)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !envBool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}

	t.Setenv("TEST_BOOL_BAD", "maybe")
	if envBool("TEST_BOOL_BAD", false) {
		t.Fatal("expected fallback false for malformed value")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("META_ACCESS_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without META_ACCESS_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("META_ACCESS_TOKEN", "token-abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MinInterval != 200*time.Millisecond {
		t.Errorf("MinInterval = %v, want 200ms", cfg.MinInterval)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.PageSize != 500 {
		t.Errorf("PageSize = %d, want 500", cfg.PageSize)
	}
}

func TestValidateBounds(t *testing.T) {
	base := Config{
		AccessToken: "t",
		Port:        8080,
		MinInterval: time.Millisecond,
		PageSize:    100,
		Workers:     2,
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"huge port", func(c *Config) { c.Port = 70000 }},
		{"zero interval", func(c *Config) { c.MinInterval = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero page size", func(c *Config) { c.PageSize = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
