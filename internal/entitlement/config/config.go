// Package config loads the entitlement service configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/wardenhq/warden/internal/envconf"
	"github.com/wardenhq/warden/internal/wire"
)

// Config holds the entitlement service configuration.
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

	// Broker connection. AMQP_URL wins over the RABBITMQ_* parts when set.
	AMQPURL string

	// Queue names
	ValidationQueue string
	ResultQueue     string

	// Cache TTL for user:{id}:active_groups
	UserGroupsTTL time.Duration

	// Log level ("debug", "info", "warn", "error")
	LogLevel string

	// Graceful shutdown deadline
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with fallback defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:       envconf.GetEnv("SERVER_ADDR", "localhost:8002"),
		DatabaseURL:      envconf.GetEnv("DATABASE_URL", ""),
		MaxDBConnections: envconf.GetEnvInt("MAX_DB_CONNECTIONS", 25),
		RedisAddr:        envconf.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    envconf.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          envconf.GetEnvInt("REDIS_DB", 0),
		AMQPURL:          envconf.GetEnv("AMQP_URL", ""),
		ValidationQueue:  envconf.GetEnv("VALIDATION_QUEUE", wire.ValidationQueue),
		ResultQueue:      envconf.GetEnv("RESULT_QUEUE", wire.ResultQueue),
		UserGroupsTTL:    envconf.GetEnvSeconds("USER_GROUPS_CACHE_TTL", 10*time.Minute),
		LogLevel:         envconf.GetEnv("LOG_LEVEL", "info"),
		ShutdownTimeout:  envconf.GetEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildPostgresDSN()
	}
	if cfg.AMQPURL == "" {
		cfg.AMQPURL = buildAMQPURL()
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
	if c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if c.ValidationQueue == "" || c.ResultQueue == "" {
		return fmt.Errorf("queue names must not be empty")
	}
	return nil
}

func buildPostgresDSN() string {
	host := envconf.GetEnv("DB_HOST", "localhost")
	port := envconf.GetEnv("DB_PORT", "5432")
	user := envconf.GetEnv("DB_USER", "warden")
	password := envconf.GetEnv("DB_PASSWORD", "warden")
	name := envconf.GetEnv("DB_NAME", "entitlement")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(user), url.QueryEscape(password), host, port, name)
}

func buildAMQPURL() string {
	host := envconf.GetEnv("RABBITMQ_HOST", "localhost")
	port := envconf.GetEnv("RABBITMQ_PORT", "5672")
	user := envconf.GetEnv("RABBITMQ_USER", "guest")
	password := envconf.GetEnv("RABBITMQ_PASSWORD", "guest")
	vhost := envconf.GetEnv("RABBITMQ_VHOST", "/")
	path := ""
	if vhost != "/" && vhost != "" {
		path = url.PathEscape(vhost)
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		url.QueryEscape(user), url.QueryEscape(password), host, port, path)
}
