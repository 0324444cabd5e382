package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
)

// PasswordVerifier is the auth collaborator the core consumes. The default
// implementation lives in pkg/auth; tests substitute fakes.
type PasswordVerifier interface {
	// Verify reports whether plaintext is the correct password for the
	// user. It returns an error only on infrastructure failure, never for
	// a wrong password.
	Verify(ctx context.Context, userID uuid.UUID, plaintext string) (bool, error)
}

// requirePassword enforces the re-authentication rule shared by every
// protected mutation: a missing password is a bad request, a wrong one is
// unauthorized. Verification completes before any transaction begins so no
// locks are held while the hash comparison runs.
func requirePassword(ctx context.Context, verifier PasswordVerifier, actor uuid.UUID, password string) error {
	if password == "" {
		return apperrors.BadRequest("password required")
	}
	ok, err := verifier.Verify(ctx, actor, password)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Unauthorized("invalid password")
	}
	return nil
}
