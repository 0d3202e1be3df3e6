// Package config loads the validation service configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/wardenhq/warden/internal/envconf"
	"github.com/wardenhq/warden/internal/wire"
)

// Config holds the validation service configuration.
type Config struct {
	// Server bind address for health and metrics (host:port)
	ServerAddr string

	// Redis connection
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Broker connection. AMQP_URL wins over the RABBITMQ_* parts when set.
	AMQPURL string

	// Queue names
	ValidationQueue string
	ResultQueue     string

	// Downstream base URLs
	CatalogURL     string
	EntitlementURL string

	// Outbound HTTP timeout
	HTTPTimeout time.Duration

	// Cache mirror TTLs
	ConflictsTTL    time.Duration
	AccessGroupsTTL time.Duration
	UserGroupsTTL   time.Duration

	// Log level ("debug", "info", "warn", "error")
	LogLevel string

	// Graceful shutdown deadline
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with fallback defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:      envconf.GetEnv("SERVER_ADDR", "localhost:8003"),
		RedisAddr:       envconf.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   envconf.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:         envconf.GetEnvInt("REDIS_DB", 0),
		AMQPURL:         envconf.GetEnv("AMQP_URL", ""),
		ValidationQueue: envconf.GetEnv("VALIDATION_QUEUE", wire.ValidationQueue),
		ResultQueue:     envconf.GetEnv("RESULT_QUEUE", wire.ResultQueue),
		CatalogURL:      envconf.GetEnv("CATALOG_URL", "http://localhost:8001"),
		EntitlementURL:  envconf.GetEnv("ENTITLEMENT_URL", "http://localhost:8002"),
		HTTPTimeout:     envconf.GetEnvSeconds("HTTP_TIMEOUT_SECONDS", 30*time.Second),
		ConflictsTTL:    envconf.GetEnvSeconds("CONFLICTS_CACHE_TTL", 10*time.Minute),
		AccessGroupsTTL: envconf.GetEnvSeconds("ACCESS_GROUPS_CACHE_TTL", 10*time.Minute),
		UserGroupsTTL:   envconf.GetEnvSeconds("USER_GROUPS_CACHE_TTL", 10*time.Minute),
		LogLevel:        envconf.GetEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: envconf.GetEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
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
	if c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	if c.CatalogURL == "" {
		return fmt.Errorf("CATALOG_URL is required")
	}
	if c.EntitlementURL == "" {
		return fmt.Errorf("ENTITLEMENT_URL is required")
	}
	if c.ValidationQueue == "" || c.ResultQueue == "" {
		return fmt.Errorf("queue names must not be empty")
	}
	return nil
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
