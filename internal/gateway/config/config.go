// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/envconf"
)

// Config holds the gateway configuration.
type Config struct {
	// Server bind address (host:port)
	ServerAddr string

	// Downstream base URLs
	CatalogURL     string
	EntitlementURL string

	// Outbound HTTP timeout
	HTTPTimeout time.Duration

	// Log level ("debug", "info", "warn", "error")
	LogLevel string

	// Graceful shutdown deadline
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with fallback defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:      envconf.GetEnv("SERVER_ADDR", "localhost:8000"),
		CatalogURL:      envconf.GetEnv("CATALOG_URL", "http://localhost:8001"),
		EntitlementURL:  envconf.GetEnv("ENTITLEMENT_URL", "http://localhost:8002"),
		HTTPTimeout:     envconf.GetEnvSeconds("HTTP_TIMEOUT_SECONDS", 30*time.Second),
		LogLevel:        envconf.GetEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: envconf.GetEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
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
	if c.CatalogURL == "" {
		return fmt.Errorf("CATALOG_URL is required")
	}
	if c.EntitlementURL == "" {
		return fmt.Errorf("ENTITLEMENT_URL is required")
	}
	return nil
}
