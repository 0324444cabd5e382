package testhelpers

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Muhonne/reqquli-sub000/pkg/auth"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
	"github.com/Muhonne/reqquli-sub000/pkg/repositories"
)

// TestUserPassword is the plaintext password every fixture user is created
// with, so re-authentication paths can be exercised.
const TestUserPassword = "correct horse battery staple"

// CreateTestUser inserts a user with a unique name and a known password.
func CreateTestUser(t *testing.T, db *TestDB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestUserPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		UserName:     fmt.Sprintf("tester-%s", uuid.New().String()[:8]),
		FullName:     "Test User",
		PasswordHash: hash,
	}

	ctx := db.DB.WithPool(context.Background())
	if err := repositories.NewUserRepository().Create(ctx, user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}
