// Package config loads runtime settings from the environment (optionally
// seeded from a .env file) and owns the process logger.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config holds the settings of the measurement engine. PocketBase keeps its
// own flags (--dir, --http) separately.
type Config struct {
	DefaultVATRate    decimal.Decimal
	LockBackend       string
	RedisAddress      string
	RedisPassword     string
	LockTTL           time.Duration
	RollupConcurrency int
	LogLevel          string
	LogFormat         string
	SeedDemoData      bool
}

// Load reads .env (if present) and the environment.
func Load() Config {
	godotenv.Load()

	cfg := Config{
		DefaultVATRate:    decimal.RequireFromString("9.00"),
		LockBackend:       LockBackendMemory,
		RedisAddress:      "localhost:6379",
		LockTTL:           30 * time.Second,
		RollupConcurrency: 4,
		LogLevel:          "info",
		LogFormat:         "json",
		SeedDemoData:      true,
	}

	if v := strings.TrimSpace(os.Getenv("DEFAULT_VAT_RATE")); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			cfg.DefaultVATRate = d
		} else {
			GetLogger().Warnf("config: ignoring invalid DEFAULT_VAT_RATE %q", v)
		}
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOCK_BACKEND"))); v == LockBackendRedis {
		cfg.LockBackend = LockBackendRedis
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDRESS")); v != "" {
		cfg.RedisAddress = v
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if n, err := cast.ToIntE(strings.TrimSpace(os.Getenv("LOCK_TTL_SECONDS"))); err == nil && n > 0 {
		cfg.LockTTL = time.Duration(n) * time.Second
	}
	if n, err := cast.ToIntE(strings.TrimSpace(os.Getenv("ROLLUP_CONCURRENCY"))); err == nil && n > 0 {
		cfg.RollupConcurrency = n
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("SEED_DEMO_DATA")); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			cfg.SeedDemoData = b
		}
	}
	return cfg
}
