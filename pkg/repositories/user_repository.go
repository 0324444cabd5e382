package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

// UserRepository stores principals. The core never writes lifecycle data
// here; it only reads the password hash for re-authentication checks.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
}

type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO users (id, user_name, full_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.UserName, user.FullName, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("user name %s is taken", user.UserName)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	return r.get(ctx, `WHERE LOWER(user_name) = LOWER($1)`, userName)
}

func (r *userRepository) get(ctx context.Context, where string, arg any) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	user := &models.User{}
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, user_name, full_name, password_hash, created_at
		FROM users `+where, arg).Scan(
		&user.ID, &user.UserName, &user.FullName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

var _ UserRepository = (*userRepository)(nil)
