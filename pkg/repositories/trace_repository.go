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

// TraceRepository stores directed edges between entity identifiers. The
// table has no type columns; endpoint kinds are derived from the id prefix
// on read. Uniqueness over (from_id, to_id) is enforced by the database so
// concurrent duplicate inserts have exactly one winner.
type TraceRepository interface {
	// Insert stores a user-created edge. A duplicate pair returns
	// ErrConflict.
	Insert(ctx context.Context, t *models.Trace) error

	// InsertDerived stores a system-generated edge. Duplicates are a
	// silent no-op so that re-approval retries never fail.
	InsertDerived(ctx context.Context, t *models.Trace) error

	// Get returns the edge for the ordered pair, or ErrNotFound.
	Get(ctx context.Context, fromID, toID string) (*models.Trace, error)

	// Delete removes the edge for the ordered pair, or ErrNotFound.
	Delete(ctx context.Context, fromID, toID string) error

	ListAll(ctx context.Context) ([]*models.Trace, error)

	// ListFrom returns edges leaving the entity (downstream).
	ListFrom(ctx context.Context, id string) ([]*models.Trace, error)

	// ListTo returns edges pointing at the entity (upstream).
	ListTo(ctx context.Context, id string) ([]*models.Trace, error)
}

type traceRepository struct{}

// NewTraceRepository creates a new trace repository.
func NewTraceRepository() TraceRepository {
	return &traceRepository{}
}

const traceSelect = `
	SELECT id, from_id, to_id, created_by, created_at, is_system_generated
	FROM traces`

func (r *traceRepository) Insert(ctx context.Context, t *models.Trace) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()

	query := `
		INSERT INTO traces (id, from_id, to_id, created_by, created_at, is_system_generated)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := scope.Conn.Exec(ctx, query,
		t.ID, t.FromID, t.ToID, t.CreatedBy, t.CreatedAt, t.IsSystemGenerated)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("trace from %s to %s already exists", t.FromID, t.ToID)
		}
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	return nil
}

func (r *traceRepository) InsertDerived(ctx context.Context, t *models.Trace) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	t.IsSystemGenerated = true

	query := `
		INSERT INTO traces (id, from_id, to_id, created_by, created_at, is_system_generated)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (from_id, to_id) DO NOTHING`

	_, err := scope.Conn.Exec(ctx, query,
		t.ID, t.FromID, t.ToID, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert derived trace: %w", err)
	}
	return nil
}

func (r *traceRepository) Get(ctx context.Context, fromID, toID string) (*models.Trace, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	t := &models.Trace{}
	err := scope.Conn.QueryRow(ctx, traceSelect+` WHERE from_id = $1 AND to_id = $2`,
		models.NormalizeID(fromID), models.NormalizeID(toID)).Scan(
		&t.ID, &t.FromID, &t.ToID, &t.CreatedBy, &t.CreatedAt, &t.IsSystemGenerated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("trace from %s to %s not found", fromID, toID)
		}
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	return t, nil
}

func (r *traceRepository) Delete(ctx context.Context, fromID, toID string) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`DELETE FROM traces WHERE from_id = $1 AND to_id = $2`,
		models.NormalizeID(fromID), models.NormalizeID(toID))
	if err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("trace from %s to %s not found", fromID, toID)
	}
	return nil
}

func (r *traceRepository) ListAll(ctx context.Context) ([]*models.Trace, error) {
	return r.list(ctx, traceSelect+` ORDER BY created_at`)
}

func (r *traceRepository) ListFrom(ctx context.Context, id string) ([]*models.Trace, error) {
	return r.list(ctx, traceSelect+` WHERE from_id = $1 ORDER BY created_at`, models.NormalizeID(id))
}

func (r *traceRepository) ListTo(ctx context.Context, id string) ([]*models.Trace, error) {
	return r.list(ctx, traceSelect+` WHERE to_id = $1 ORDER BY created_at`, models.NormalizeID(id))
}

func (r *traceRepository) list(ctx context.Context, query string, args ...any) ([]*models.Trace, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []*models.Trace
	for rows.Next() {
		t := &models.Trace{}
		if err := rows.Scan(&t.ID, &t.FromID, &t.ToID, &t.CreatedBy, &t.CreatedAt, &t.IsSystemGenerated); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating traces: %w", err)
	}
	return traces, nil
}

var _ TraceRepository = (*traceRepository)(nil)
