// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	LogLevel            string // debug, info, warn, error
	ListenAddr          string // Server listen address (e.g., ":8080")
	DatabasePath        string // SQLite database path
	MetricsListenAddr   string // Metrics listener address (e.g., "localhost:9090")
	BootstrapAdminEmail string // Optional: superadmin seeded at startup on a fresh database
	DevMode             bool   // Skip access-code checks; email header alone authenticates
}

// Load parses configuration from environment variables.
// All configuration options have sensible defaults for ease of deployment.
func Load() (*Config, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	listenAddr := os.Getenv("LISTEN_ADDR")
	databasePath := os.Getenv("DATABASE_PATH")
	metricsListenAddr := os.Getenv("METRICS_LISTEN_ADDR")
	bootstrapAdminEmail := os.Getenv("BOOTSTRAP_ADMIN_EMAIL")
	devMode := os.Getenv("DEV_MODE")

	// Set defaults for optional fields
	if logLevel == "" {
		logLevel = "info"
	}

	if listenAddr == "" {
		listenAddr = ":8080"
	}

	if databasePath == "" {
		databasePath = "/data/migration.db"
	}

	if metricsListenAddr == "" {
		metricsListenAddr = "localhost:9090"
	}

	cfg := &Config{
		LogLevel:            logLevel,
		ListenAddr:          listenAddr,
		DatabasePath:        databasePath,
		MetricsListenAddr:   metricsListenAddr,
		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(bootstrapAdminEmail)),
		DevMode:             devMode == "true" || devMode == "1",
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q (must be: debug, info, warn, error)", c.LogLevel)
	}
	if c.BootstrapAdminEmail != "" && !strings.Contains(c.BootstrapAdminEmail, "@") {
		return fmt.Errorf("invalid BOOTSTRAP_ADMIN_EMAIL %q", c.BootstrapAdminEmail)
	}
	return nil
}
