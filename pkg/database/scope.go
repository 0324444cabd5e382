package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations repositories use. It is satisfied
// by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx, so a repository call runs on
// whatever connection the current scope carries — a pooled connection
// outside a transaction, the transaction itself inside one.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope carries the database connection for the current request.
type Scope struct {
	Conn Querier
}

type contextKey string

const scopeKey contextKey = "dbScope"

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(*Scope)
	return scope, ok
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// TxRunner executes a function inside a single database transaction.
// Services depend on this interface so unit tests can substitute a
// pass-through fake.
type TxRunner interface {
	// InTx begins a transaction, installs it as the scope of the derived
	// context, and runs fn. fn returning an error rolls the transaction
	// back; otherwise it is committed. No partial effects survive a
	// failure.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InTx implements TxRunner on the pool.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := SetScope(ctx, &Scope{Conn: tx})
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithPool returns a context whose scope runs directly on the pool. Used by
// read paths and by callers outside the HTTP request cycle (tests, main).
func (db *DB) WithPool(ctx context.Context) context.Context {
	return SetScope(ctx, &Scope{Conn: db.Pool})
}

var _ TxRunner = (*DB)(nil)
