package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the traceability core.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (passwords) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath points at the golang-migrate SQL directory.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL database configuration, including the
// pool limits passed through to pgxpool.
type DatabaseConfig struct {
	Host                string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port                int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User                string `yaml:"user" env:"PGUSER" env-default:"reqquli"`
	Password            string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database            string `yaml:"database" env:"PGDATABASE" env-default:"reqquli"`
	MaxConnections      int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	ConnLifetimeMinutes int    `yaml:"conn_lifetime_minutes" env:"PGCONN_LIFETIME_MINUTES" env-default:"60"`
	ConnIdleMinutes     int    `yaml:"conn_idle_minutes" env:"PGCONN_IDLE_MINUTES" env-default:"30"`
	SSLMode             string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL assembles the pgx connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// ConnLifetime returns the pool's max connection lifetime.
func (d DatabaseConfig) ConnLifetime() time.Duration {
	return time.Duration(d.ConnLifetimeMinutes) * time.Minute
}

// ConnIdleTime returns the pool's max connection idle time.
func (d DatabaseConfig) ConnIdleTime() time.Duration {
	return time.Duration(d.ConnIdleMinutes) * time.Minute
}

// Load reads configuration from config.yaml (if present) and the
// environment. Env vars win over file values.
func Load(version string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Version = version
	return cfg, nil
}
