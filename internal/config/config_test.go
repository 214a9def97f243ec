package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TIERGATE_HTTP_ADDR", "TIERGATE_PG_DSN", "TIERGATE_WEBHOOK_SECRET",
		"TIERGATE_REQUIRE_ADMIN", "TIERGATE_RATE_BURST", "TIERGATE_RATE_PER_SEC",
		"TIERGATE_SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.HTTPAddr)
	}
	if cfg.RequireAdmin {
		t.Fatalf("require admin should default to off")
	}
	if cfg.RateBurst != 20 || cfg.RatePerSec != 10 {
		t.Fatalf("unexpected rate defaults: %d/%d", cfg.RateBurst, cfg.RatePerSec)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout: %v", cfg.ShutdownTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIERGATE_HTTP_ADDR", ":9191")
	t.Setenv("TIERGATE_REQUIRE_ADMIN", "true")
	t.Setenv("TIERGATE_RATE_BURST", "50")
	t.Setenv("TIERGATE_RATE_PER_SEC", "25")
	t.Setenv("TIERGATE_SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9191" || !cfg.RequireAdmin {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RateBurst != 50 || cfg.RatePerSec != 25 {
		t.Fatalf("rate overrides not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("timeout override not applied: %v", cfg.ShutdownTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TIERGATE_REQUIRE_ADMIN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad boolean")
	}
	t.Setenv("TIERGATE_REQUIRE_ADMIN", "")

	t.Setenv("TIERGATE_RATE_BURST", "-3")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative rate")
	}
}
