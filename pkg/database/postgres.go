package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Pool defaults, used when the corresponding Config field is zero.
const (
	defaultMaxConnections  = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// Config holds database pool configuration. Zero-valued fields fall back
// to the package defaults above.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxConnections <= 0 {
		out.MaxConnections = defaultMaxConnections
	}
	if out.MaxConnLifetime <= 0 {
		out.MaxConnLifetime = defaultMaxConnLifetime
	}
	if out.MaxConnIdleTime <= 0 {
		out.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	return out
}

// NewConnection creates a new database connection pool and verifies it
// with a ping before returning.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	resolved := cfg.withDefaults()

	poolConfig, err := pgxpool.ParseConfig(resolved.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = resolved.MaxConnections
	poolConfig.MaxConnLifetime = resolved.MaxConnLifetime
	poolConfig.MaxConnIdleTime = resolved.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
