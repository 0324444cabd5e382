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

// riskRepository backs "RISK-" ids. Same lifecycle shape as the
// requirement tables plus the scoring columns.
type riskRepository struct{}

// NewRiskRepository creates the repository backing "RISK-" ids.
func NewRiskRepository() LifecycleRepository {
	return &riskRepository{}
}

const riskSelect = `
	SELECT id, title, description, severity, probability_p1, probability_p2,
	       p_total, p_total_calculation_method, ` + lifecycleColumns + `
	FROM risks`

func (r *riskRepository) NextID(ctx context.Context) (string, error) {
	return nextSequenceID(ctx, "risk_seq", models.KindRisk)
}

func (r *riskRepository) Get(ctx context.Context, id string) (models.LifecycleEntity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	risk := &models.Risk{}
	lc := risk.Lifecycle()
	err := scope.Conn.QueryRow(ctx, riskSelect+` WHERE id = $1 AND deleted_at IS NULL`,
		models.NormalizeID(id)).Scan(
		&risk.ID, &risk.Title, &risk.Description,
		&risk.Severity, &risk.ProbabilityP1, &risk.ProbabilityP2,
		&risk.PTotal, &risk.PTotalCalculationMethod,
		&lc.Status, &lc.Revision, &lc.ApprovedAt, &lc.ApprovedBy, &lc.ApprovalNote,
		&lc.CreatedAt, &lc.CreatedBy, &lc.ModifiedAt, &lc.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("%s not found", id)
		}
		return nil, fmt.Errorf("failed to get risk: %w", err)
	}
	return risk, nil
}

func (r *riskRepository) List(ctx context.Context) ([]models.LifecycleEntity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, riskSelect+` WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list risks: %w", err)
	}
	defer rows.Close()

	var entities []models.LifecycleEntity
	for rows.Next() {
		risk := &models.Risk{}
		lc := risk.Lifecycle()
		if err := rows.Scan(
			&risk.ID, &risk.Title, &risk.Description,
			&risk.Severity, &risk.ProbabilityP1, &risk.ProbabilityP2,
			&risk.PTotal, &risk.PTotalCalculationMethod,
			&lc.Status, &lc.Revision, &lc.ApprovedAt, &lc.ApprovedBy, &lc.ApprovalNote,
			&lc.CreatedAt, &lc.CreatedBy, &lc.ModifiedAt, &lc.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan risk row: %w", err)
		}
		entities = append(entities, risk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk rows: %w", err)
	}
	return entities, nil
}

func (r *riskRepository) Insert(ctx context.Context, e models.LifecycleEntity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	risk, ok := e.(*models.Risk)
	if !ok {
		return fmt.Errorf("risk repository cannot store %T", e)
	}

	lc := risk.Lifecycle()
	query := `
		INSERT INTO risks (
			id, title, description, severity, probability_p1, probability_p2,
			p_total, p_total_calculation_method, status, revision, approved_at,
			approved_by, approval_notes, created_at, created_by, modified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := scope.Conn.Exec(ctx, query,
		risk.ID, risk.Title, risk.Description,
		risk.Severity, risk.ProbabilityP1, risk.ProbabilityP2,
		risk.PTotal, risk.PTotalCalculationMethod,
		lc.Status, lc.Revision, lc.ApprovedAt, lc.ApprovedBy, lc.ApprovalNote,
		lc.CreatedAt, lc.CreatedBy, lc.ModifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("a risk with this title already exists")
		}
		return fmt.Errorf("failed to insert risk: %w", err)
	}
	return nil
}

func (r *riskRepository) Update(ctx context.Context, e models.LifecycleEntity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	risk, ok := e.(*models.Risk)
	if !ok {
		return fmt.Errorf("risk repository cannot store %T", e)
	}

	lc := risk.Lifecycle()
	lc.ModifiedAt = time.Now()

	query := `
		UPDATE risks
		SET title = $2, description = $3, severity = $4, probability_p1 = $5,
		    probability_p2 = $6, p_total = $7, p_total_calculation_method = $8,
		    status = $9, revision = $10, approved_at = $11, approved_by = $12,
		    approval_notes = $13, modified_at = $14, deleted_at = $15
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		risk.ID, risk.Title, risk.Description,
		risk.Severity, risk.ProbabilityP1, risk.ProbabilityP2,
		risk.PTotal, risk.PTotalCalculationMethod,
		lc.Status, lc.Revision, lc.ApprovedAt, lc.ApprovedBy, lc.ApprovalNote,
		lc.ModifiedAt, lc.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update risk: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("%s not found", risk.ID)
	}
	return nil
}

func (r *riskRepository) TitleExists(ctx context.Context, title, excludeID string) (bool, error) {
	return titleExists(ctx, "risks", title, excludeID)
}

var _ LifecycleRepository = (*riskRepository)(nil)
