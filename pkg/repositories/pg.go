// Package repositories contains the pgx data access layer. Every
// repository reads its connection from the database scope in context, so a
// call made inside services' InTx runs on the enclosing transaction.
package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pg unique_violation
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation. Trace edge uniqueness and title uniqueness rely on this to
// stay race-safe under concurrent inserts.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
