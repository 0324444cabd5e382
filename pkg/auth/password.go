// Package auth supplies the principal and password collaborators the core
// consumes. Session issuance is not this module's concern; the verifier
// only answers "is this password correct for this user".
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/repositories"
)

// PasswordVerifier checks a plaintext password against the stored bcrypt
// hash of a user.
type PasswordVerifier struct {
	users repositories.UserRepository
}

// NewPasswordVerifier creates a verifier over the user store.
func NewPasswordVerifier(users repositories.UserRepository) *PasswordVerifier {
	return &PasswordVerifier{users: users}
}

// Verify reports whether plaintext matches the user's stored hash. An
// unknown user verifies false rather than erroring, so callers cannot
// distinguish a missing account from a wrong password.
func (v *PasswordVerifier) Verify(ctx context.Context, userID uuid.UUID, plaintext string) (bool, error) {
	user, err := v.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load user for password check: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare password hash: %w", err)
	}
	return true, nil
}

// HashPassword produces the bcrypt hash stored for a new user.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
