package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

// LifecycleRepository is the storage contract the lifecycle service is
// generic over. One implementation exists per lifecycle-bearing kind; the
// service picks the right one by resolved entity kind.
type LifecycleRepository interface {
	// NextID draws the next identifier from the kind's sequence, e.g.
	// "UR-15". Sequences are gap-tolerant: an id drawn inside a rolled
	// back transaction is simply skipped.
	NextID(ctx context.Context) (string, error)

	// Get returns the entity, excluding soft-deleted rows.
	Get(ctx context.Context, id string) (models.LifecycleEntity, error)

	// List returns all non-deleted entities ordered by creation.
	List(ctx context.Context) ([]models.LifecycleEntity, error)

	Insert(ctx context.Context, e models.LifecycleEntity) error
	Update(ctx context.Context, e models.LifecycleEntity) error

	// TitleExists checks case-insensitive title uniqueness within the
	// kind, ignoring soft-deleted rows and the given id.
	TitleExists(ctx context.Context, title, excludeID string) (bool, error)
}

// lifecycleColumns are the columns shared by every lifecycle-bearing table,
// in scan order after the kind-specific ones.
const lifecycleColumns = `status, revision, approved_at, approved_by, approval_notes,
		created_at, created_by, modified_at, deleted_at`

// requirementRepository serves the two requirement kinds, which share a
// column layout and differ only in table, sequence, and prefix.
type requirementRepository struct {
	table    string
	sequence string
	kind     models.EntityKind
}

// NewUserRequirementRepository creates the repository backing "UR-" ids.
func NewUserRequirementRepository() LifecycleRepository {
	return &requirementRepository{
		table:    "user_requirements",
		sequence: "user_requirement_seq",
		kind:     models.KindUserRequirement,
	}
}

// NewSystemRequirementRepository creates the repository backing "SR-" ids.
func NewSystemRequirementRepository() LifecycleRepository {
	return &requirementRepository{
		table:    "system_requirements",
		sequence: "system_requirement_seq",
		kind:     models.KindSystemRequirement,
	}
}

func (r *requirementRepository) NextID(ctx context.Context) (string, error) {
	return nextSequenceID(ctx, r.sequence, r.kind)
}

func (r *requirementRepository) Get(ctx context.Context, id string) (models.LifecycleEntity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := fmt.Sprintf(`
		SELECT id, title, description, %s
		FROM %s
		WHERE id = $1 AND deleted_at IS NULL`, lifecycleColumns, r.table)

	entity := r.newEntity()
	lc := entity.Lifecycle()
	var id2, title, description string
	err := scope.Conn.QueryRow(ctx, query, models.NormalizeID(id)).Scan(
		&id2, &title, &description,
		&lc.Status, &lc.Revision, &lc.ApprovedAt, &lc.ApprovedBy, &lc.ApprovalNote,
		&lc.CreatedAt, &lc.CreatedBy, &lc.ModifiedAt, &lc.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("%s not found", id)
		}
		return nil, fmt.Errorf("failed to get %s: %w", r.table, err)
	}

	r.populate(entity, id2, title, description)
	return entity, nil
}

func (r *requirementRepository) List(ctx context.Context) ([]models.LifecycleEntity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := fmt.Sprintf(`
		SELECT id, title, description, %s
		FROM %s
		WHERE deleted_at IS NULL
		ORDER BY created_at`, lifecycleColumns, r.table)

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}
	defer rows.Close()

	var entities []models.LifecycleEntity
	for rows.Next() {
		entity := r.newEntity()
		lc := entity.Lifecycle()
		var id, title, description string
		if err := rows.Scan(
			&id, &title, &description,
			&lc.Status, &lc.Revision, &lc.ApprovedAt, &lc.ApprovedBy, &lc.ApprovalNote,
			&lc.CreatedAt, &lc.CreatedBy, &lc.ModifiedAt, &lc.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		r.populate(entity, id, title, description)
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", r.table, err)
	}

	return entities, nil
}

func (r *requirementRepository) Insert(ctx context.Context, e models.LifecycleEntity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	lc := e.Lifecycle()
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, title, description, status, revision, approved_at, approved_by,
			approval_notes, created_at, created_by, modified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, r.table)

	_, err := scope.Conn.Exec(ctx, query,
		e.EntityID(), e.EntityTitle(), e.EntityDescription(),
		lc.Status, lc.Revision, lc.ApprovedAt, lc.ApprovedBy, lc.ApprovalNote,
		lc.CreatedAt, lc.CreatedBy, lc.ModifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("a %s with this title already exists", r.kind)
		}
		return fmt.Errorf("failed to insert into %s: %w", r.table, err)
	}
	return nil
}

func (r *requirementRepository) Update(ctx context.Context, e models.LifecycleEntity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	lc := e.Lifecycle()
	lc.ModifiedAt = time.Now()

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $2, description = $3, status = $4, revision = $5,
		    approved_at = $6, approved_by = $7, approval_notes = $8,
		    modified_at = $9, deleted_at = $10
		WHERE id = $1`, r.table)

	result, err := scope.Conn.Exec(ctx, query,
		e.EntityID(), e.EntityTitle(), e.EntityDescription(),
		lc.Status, lc.Revision, lc.ApprovedAt, lc.ApprovedBy, lc.ApprovalNote,
		lc.ModifiedAt, lc.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", r.table, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("%s not found", e.EntityID())
	}
	return nil
}

func (r *requirementRepository) TitleExists(ctx context.Context, title, excludeID string) (bool, error) {
	return titleExists(ctx, r.table, title, excludeID)
}

func (r *requirementRepository) newEntity() models.LifecycleEntity {
	if r.kind == models.KindUserRequirement {
		return &models.UserRequirement{}
	}
	return &models.SystemRequirement{}
}

func (r *requirementRepository) populate(e models.LifecycleEntity, id, title, description string) {
	switch v := e.(type) {
	case *models.UserRequirement:
		v.ID = id
		v.Title = title
		v.Description = description
	case *models.SystemRequirement:
		v.ID = id
		v.Title = title
		v.Description = description
	}
}

// nextSequenceID draws from a named sequence and formats the kind's id.
func nextSequenceID(ctx context.Context, sequence string, kind models.EntityKind) (string, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return "", fmt.Errorf("no database scope in context")
	}

	var n int64
	if err := scope.Conn.QueryRow(ctx, fmt.Sprintf("SELECT nextval('%s')", sequence)).Scan(&n); err != nil {
		return "", fmt.Errorf("failed to draw from %s: %w", sequence, err)
	}
	return fmt.Sprintf("%s-%d", kind.Prefix(), n), nil
}

// titleExists checks case-insensitive title uniqueness in a table.
func titleExists(ctx context.Context, table, title, excludeID string) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE LOWER(title) = LOWER($1) AND deleted_at IS NULL AND id <> $2
		)`, table)

	var exists bool
	if err := scope.Conn.QueryRow(ctx, query, title, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check title in %s: %w", table, err)
	}
	return exists, nil
}

var _ LifecycleRepository = (*requirementRepository)(nil)
