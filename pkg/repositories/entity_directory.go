package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

// EntityDirectory resolves an opaque identifier to the collection that
// stores it and returns a display summary of the entity. This is the one
// place that maps a resolved kind to its backing table; everything that
// needs to know what an edge endpoint is goes through here.
type EntityDirectory interface {
	// Resolve returns a summary of the entity behind the id. Unknown
	// prefixes are a validation error; a missing row is ErrNotFound.
	// Soft-deleted entities resolve with Deleted=true so that callers can
	// distinguish "never existed" from "tombstoned".
	Resolve(ctx context.Context, id string) (*models.EntityRef, error)
}

type entityDirectory struct{}

// NewEntityDirectory creates a directory over the five entity tables.
func NewEntityDirectory() EntityDirectory {
	return &entityDirectory{}
}

func (d *entityDirectory) Resolve(ctx context.Context, id string) (*models.EntityRef, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	id = models.NormalizeID(id)
	kind := models.ResolveKind(id)

	var query string
	switch kind {
	case models.KindUserRequirement:
		query = `SELECT title, status, deleted_at IS NOT NULL FROM user_requirements WHERE id = $1`
	case models.KindSystemRequirement:
		query = `SELECT title, status, deleted_at IS NOT NULL FROM system_requirements WHERE id = $1`
	case models.KindRisk:
		query = `SELECT title, status, deleted_at IS NOT NULL FROM risks WHERE id = $1`
	case models.KindTestCase:
		query = `SELECT title, status, deleted_at IS NOT NULL FROM test_cases WHERE id = $1`
	case models.KindTestResult:
		// Test results carry no lifecycle; their result stands in for
		// status and they are never soft-deleted.
		query = `SELECT title, result, FALSE FROM test_results WHERE id = $1`
	default:
		return nil, apperrors.Validation("unrecognized entity id %q", id)
	}

	ref := &models.EntityRef{ID: id, Kind: kind}
	err := scope.Conn.QueryRow(ctx, query, id).Scan(&ref.Title, &ref.Status, &ref.Deleted)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("%s not found", id)
		}
		return nil, fmt.Errorf("failed to resolve %s: %w", id, err)
	}
	return ref, nil
}

var _ EntityDirectory = (*entityDirectory)(nil)
