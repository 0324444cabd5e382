// Package apperrors defines the error taxonomy shared by all services.
// Callers classify failures with errors.Is against the sentinel values;
// the wrapped message is safe to surface to the end user.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed, missing, or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrBadRequest marks well-formed input that is wrong for the current
	// state, e.g. approving a test run that is not complete.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized marks a wrong password on a protected mutation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks an absent or soft-deleted entity or edge.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks duplicate titles, duplicate trace edges, and
	// re-approval of an already approved record.
	ErrConflict = errors.New("conflict")
)

// Validation wraps ErrValidation with a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// BadRequest wraps ErrBadRequest with a caller-facing message.
func BadRequest(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrBadRequest)...)
}

// Unauthorized wraps ErrUnauthorized with a caller-facing message.
func Unauthorized(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}

// NotFound wraps ErrNotFound with a caller-facing message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Conflict wraps ErrConflict with a caller-facing message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}
