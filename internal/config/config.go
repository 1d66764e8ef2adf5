// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the reservation service.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// JWTSecret is the HS256 key bearer tokens are signed with. Required.
	JWTSecret string

	// RedisURL enables the seat-info cache and the notification stream,
	// e.g. redis://localhost:6379/0. Optional.
	RedisURL string

	// HoldTTL is how long a hold keeps its seats. Defaults to 10m.
	HoldTTL time.Duration

	// ReclaimInterval is the period of the expired-hold sweep. Defaults to 1m.
	ReclaimInterval time.Duration

	// ReclaimBatchSize caps the rows deleted per sweep statement. Defaults to 500.
	ReclaimBatchSize int

	// SeatCacheTTL bounds how long a cached seat-info response is served.
	// Defaults to 2s.
	SeatCacheTTL time.Duration

	// NotifyStream is the Redis stream confirmations are published to.
	NotifyStream string

	// NotifyWorkers is the number of notification delivery goroutines.
	NotifyWorkers int

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// MigrateOnStart applies pending goose migrations before serving.
	MigrateOnStart bool
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set and any
// values that cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RedisURL:     os.Getenv("REDIS_URL"),
		NotifyStream: getEnv("NOTIFY_STREAM", "reservations.confirmed"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	p := &parser{}
	cfg.HoldTTL = p.duration("HOLD_TTL", 10*time.Minute)
	cfg.ReclaimInterval, cfg.ReclaimBatchSize = p.reclaim()
	cfg.SeatCacheTTL = p.duration("SEAT_CACHE_TTL", 2*time.Second)
	cfg.NotifyWorkers = p.positiveInt("NOTIFY_WORKERS", 4)
	cfg.MaxBodyBytes = int64(p.positiveInt("MAX_BODY_BYTES", 1<<20))
	cfg.MigrateOnStart = p.boolean("MIGRATE_ON_START", true)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Reclaim is the configuration of the standalone expired-hold sweeper.
// It reads the same variables as the API server's background sweep.
type Reclaim struct {
	// DatabaseURL is the Postgres connection string. May be empty when the
	// caller supplies it another way, e.g. a command-line flag.
	DatabaseURL string

	// Interval is the period between sweeps. Defaults to 1m.
	Interval time.Duration

	// BatchSize caps the rows deleted per statement. Defaults to 500.
	BatchSize int
}

// LoadReclaim reads the sweeper configuration from environment variables.
// Malformed values are rejected exactly as Load rejects them.
func LoadReclaim() (Reclaim, error) {
	p := &parser{}
	rc := Reclaim{DatabaseURL: os.Getenv("DATABASE_URL")}
	rc.Interval, rc.BatchSize = p.reclaim()

	if err := errors.Join(p.errs...); err != nil {
		return Reclaim{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return rc, nil
}

// parser collects every malformed variable so they are reported together.
type parser struct {
	errs []error
}

func (p *parser) reclaim() (time.Duration, int) {
	return p.duration("RECLAIM_INTERVAL", time.Minute), p.positiveInt("RECLAIM_BATCH_SIZE", 500)
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must be a positive duration, got %q", key, v))
		return fallback
	}
	return d
}

func (p *parser) positiveInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must be a positive integer, got %q", key, v))
		return fallback
	}
	return n
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: must be a boolean, got %q", key, v))
		return fallback
	}
	return b
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
