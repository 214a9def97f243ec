// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the API binary needs at startup. Every field
// maps to a TIERGATE_* environment variable.
type Config struct {
	HTTPAddr        string        // TIERGATE_HTTP_ADDR
	PGDSN           string        // TIERGATE_PG_DSN
	WebhookSecret   string        // TIERGATE_WEBHOOK_SECRET
	RequireAdmin    bool          // TIERGATE_REQUIRE_ADMIN
	RateBurst       int           // TIERGATE_RATE_BURST
	RatePerSec      int           // TIERGATE_RATE_PER_SEC
	ShutdownTimeout time.Duration // TIERGATE_SHUTDOWN_TIMEOUT
}

// Load reads the environment. Missing optional values fall back to a
// local-development posture.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        envString("TIERGATE_HTTP_ADDR", ":8080"),
		PGDSN:           os.Getenv("TIERGATE_PG_DSN"),
		WebhookSecret:   os.Getenv("TIERGATE_WEBHOOK_SECRET"),
		ShutdownTimeout: 10 * time.Second,
	}

	var err error
	if cfg.RequireAdmin, err = envBool("TIERGATE_REQUIRE_ADMIN", false); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = envInt("TIERGATE_RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = envInt("TIERGATE_RATE_PER_SEC", 10); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("TIERGATE_SHUTDOWN_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("TIERGATE_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: expected boolean, got %q", key, raw)
	}
	return v, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: expected integer, got %q", key, raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, v)
	}
	return v, nil
}
