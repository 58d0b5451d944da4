package config

import (
	"testing"
	"time"
)

func clearRateLimitEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RATE_LIMIT_ENABLED",
		"RATE_LIMIT_CAPACITY",
		"RATE_LIMIT_REFILL_INTERVAL",
		"RATE_LIMIT_TTL",
		"RATE_LIMIT_PREFIX",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	clearRateLimitEnv(t)
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled {
		t.Fatalf("rate limiting should default to enabled")
	}
	if cfg.Capacity != 60 {
		t.Fatalf("capacity = %d, want 60", cfg.Capacity)
	}
	if cfg.RefillInterval != time.Second {
		t.Fatalf("refill interval = %v, want 1s", cfg.RefillInterval)
	}
	if cfg.TTL != 10*time.Minute {
		t.Fatalf("ttl = %v, want 10m", cfg.TTL)
	}
	if cfg.Prefix != "rl" {
		t.Fatalf("prefix = %q, want rl", cfg.Prefix)
	}
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	clearRateLimitEnv(t)
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_CAPACITY", "5")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_PREFIX", "lease")
	cfg := LoadRateLimitConfig()
	if cfg.Enabled {
		t.Fatalf("rate limiting should be disabled")
	}
	if cfg.Capacity != 5 {
		t.Fatalf("capacity = %d, want 5", cfg.Capacity)
	}
	if cfg.RefillInterval != 2*time.Second {
		t.Fatalf("refill interval = %v, want 2s", cfg.RefillInterval)
	}
	if cfg.Prefix != "lease" {
		t.Fatalf("prefix = %q, want lease", cfg.Prefix)
	}
}

func TestLoadRateLimitConfigClampsValues(t *testing.T) {
	clearRateLimitEnv(t)
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 {
		t.Fatalf("capacity must be clamped to 1, got %d", cfg.Capacity)
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl must be raised to five refill intervals, got %v", cfg.TTL)
	}
}
