// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL      string `env:"DATABASE_URL"`
	DBDriver         string `env:"RENTALS_DB_DRIVER" envDefault:"postgres"`
	DBMaxOpenConns   int    `env:"RENTALS_DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBConnectRetries int    `env:"RENTALS_DB_CONNECT_RETRIES" envDefault:"5"`

	HTTPAddr string `env:"RENTALS_HTTP_ADDR" envDefault:":8080"`

	JWTSecret string `env:"RENTALS_JWT_SECRET"`
	JWTIssuer string `env:"RENTALS_JWT_ISSUER" envDefault:"rentals"`

	LogLevel string `env:"RENTALS_LOG_LEVEL" envDefault:"info"`

	AMQPURL      string `env:"RENTALS_AMQP_URL"`
	AMQPExchange string `env:"RENTALS_AMQP_EXCHANGE" envDefault:"rentals.events"`

	CalendarCacheTTL  time.Duration `env:"RENTALS_CALENDAR_CACHE_TTL" envDefault:"30s"`
	CalendarCacheSize int64         `env:"RENTALS_CALENDAR_CACHE_SIZE" envDefault:"1000"`
}

// Load reads an optional .env file and parses the environment into a
// Config. It does not validate; call Validate before opening resources.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	return cfg, nil
}

// Validate checks the database settings every command needs.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("RENTALS_DB_DRIVER %q is not supported (postgres, mysql, sqlite)", c.DBDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL not set in environment or .env file")
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("RENTALS_DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

// ValidateServer additionally checks settings the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("RENTALS_JWT_SECRET must be at least 16 characters")
	}
	return nil
}
