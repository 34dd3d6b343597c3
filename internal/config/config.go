// Package config loads process configuration from the environment,
// matching cmd/server/main.go's usage of config.Load() and the repo-wide
// Default*Config() idiom (logging.DefaultLoggerConfig,
// jobqueue.DefaultManagerConfig).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived setting the server needs to
// start: storage, cache, auth, and solve tuning defaults. The solve
// defaults are loaded but not applied: runs start from
// engine.DefaultConfig() plus their request body's overrides.
type Config struct {
	Port        string
	Environment string

	DatabaseURL string
	RedisURL    string

	JWTSecret          string
	CORSAllowedOrigins []string

	// Solve defaults (read from the environment; not passed to
	// internal/solver/engine.Config).
	DefaultMaxDuration   time.Duration
	DefaultConcurrency   int
	DefaultPopulationCap int

	RateLimitPerMinute int
}

// Load reads Config from the environment, falling back to a sane default
// for each variable when it is unset.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/vrpsolver?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DefaultMaxDuration:   getEnvDuration("SOLVE_DEFAULT_MAX_DURATION", 30*time.Second),
		DefaultConcurrency:   getEnvInt("SOLVE_DEFAULT_CONCURRENCY", 4),
		DefaultPopulationCap: getEnvInt("SOLVE_DEFAULT_POPULATION", 4),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
