// Package config loads the catalog service configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/wardenhq/warden/internal/envconf"
)

// Config holds the catalog service configuration.
type Config struct {
	// Server bind address (host:port)
	ServerAddr string

	// Database connection string (DSN). DATABASE_URL wins over the DB_*
	// parts when set.
	DatabaseURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Redis connection
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cache TTLs
	ConflictsTTL     time.Duration
	GroupAccessesTTL time.Duration
	AccessGroupsTTL  time.Duration

	// Log level ("debug", "info", "warn", "error")
	LogLevel string

	// Graceful shutdown deadline
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with fallback defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:       envconf.GetEnv("SERVER_ADDR", "localhost:8001"),
		DatabaseURL:      envconf.GetEnv("DATABASE_URL", ""),
		MaxDBConnections: envconf.GetEnvInt("MAX_DB_CONNECTIONS", 25),
		RedisAddr:        envconf.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    envconf.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          envconf.GetEnvInt("REDIS_DB", 0),
		ConflictsTTL:     envconf.GetEnvSeconds("CONFLICTS_CACHE_TTL", 10*time.Minute),
		GroupAccessesTTL: envconf.GetEnvSeconds("GROUP_ACCESSES_CACHE_TTL", 10*time.Minute),
		AccessGroupsTTL:  envconf.GetEnvSeconds("ACCESS_GROUPS_CACHE_TTL", 10*time.Minute),
		LogLevel:         envconf.GetEnv("LOG_LEVEL", "info"),
		ShutdownTimeout:  envconf.GetEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildPostgresDSN()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	return nil
}

func buildPostgresDSN() string {
	host := envconf.GetEnv("DB_HOST", "localhost")
	port := envconf.GetEnv("DB_PORT", "5432")
	user := envconf.GetEnv("DB_USER", "warden")
	password := envconf.GetEnv("DB_PASSWORD", "warden")
	name := envconf.GetEnv("DB_NAME", "catalog")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(user), url.QueryEscape(password), host, port, name)
}
