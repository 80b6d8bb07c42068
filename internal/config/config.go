package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// URL takes precedence over the individual components when set.
type DatabaseConfig struct {
	URL                string `env:"DATABASE_URL"`
	Host               string `env:"DB_HOST"`
	Port               string `env:"DB_PORT" envDefault:"5432"`
	User               string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME"`
	SSLMode            string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC" envDefault:"300"`
	AutoMigrate        bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// OpsConfig controls the operational HTTP endpoints (health, metrics)
// served by the serve command.
type OpsConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	// UsePostgres selects the database backend instead of the in-memory one.
	UsePostgres bool   `env:"USE_POSTGRES" envDefault:"false"`
	Timezone    string `env:"TIMEZONE" envDefault:"UTC"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"userrepo"`

	Database DatabaseConfig
	Log      LogConfig
	Ops      OpsConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence over the file.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *AppConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if !c.UsePostgres {
		return nil
	}
	d := c.Database
	if d.URL == "" && (d.Host == "" || d.User == "" || d.Name == "") {
		return errors.New("USE_POSTGRES requires DATABASE_URL or DB_HOST, DB_USER and DB_NAME")
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Backend names the selected storage backend.
func (c *AppConfig) Backend() string {
	if c.UsePostgres {
		return "postgres"
	}
	return "memory"
}
