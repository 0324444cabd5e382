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

// TestCaseRepository extends the lifecycle contract with typed access to
// the stored step definitions the execution pipeline reads.
type TestCaseRepository interface {
	LifecycleRepository

	// GetTestCase is Get with the concrete type, steps included.
	GetTestCase(ctx context.Context, id string) (*models.TestCase, error)
}

type testCaseRepository struct{}

// NewTestCaseRepository creates the repository backing "TC-" ids.
func NewTestCaseRepository() TestCaseRepository {
	return &testCaseRepository{}
}

func (r *testCaseRepository) NextID(ctx context.Context) (string, error) {
	return nextSequenceID(ctx, "test_case_seq", models.KindTestCase)
}

func (r *testCaseRepository) Get(ctx context.Context, id string) (models.LifecycleEntity, error) {
	return r.GetTestCase(ctx, id)
}

func (r *testCaseRepository) GetTestCase(ctx context.Context, id string) (*models.TestCase, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	tc := &models.TestCase{}
	lc := tc.Lifecycle()
	query := `
		SELECT id, title, description, ` + lifecycleColumns + `
		FROM test_cases
		WHERE id = $1 AND deleted_at IS NULL`

	err := scope.Conn.QueryRow(ctx, query, models.NormalizeID(id)).Scan(
		&tc.ID, &tc.Title, &tc.Description,
		&lc.Status, &lc.Revision, &lc.ApprovedAt, &lc.ApprovedBy, &lc.ApprovalNote,
		&lc.CreatedAt, &lc.CreatedBy, &lc.ModifiedAt, &lc.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("%s not found", id)
		}
		return nil, fmt.Errorf("failed to get test case: %w", err)
	}

	steps, err := r.loadSteps(ctx, tc.ID)
	if err != nil {
		return nil, err
	}
	tc.Steps = steps
	return tc, nil
}

func (r *testCaseRepository) List(ctx context.Context) ([]models.LifecycleEntity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, title, description, ` + lifecycleColumns + `
		FROM test_cases
		WHERE deleted_at IS NULL
		ORDER BY created_at`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	var entities []models.LifecycleEntity
	for rows.Next() {
		tc := &models.TestCase{}
		lc := tc.Lifecycle()
		if err := rows.Scan(
			&tc.ID, &tc.Title, &tc.Description,
			&lc.Status, &lc.Revision, &lc.ApprovedAt, &lc.ApprovedBy, &lc.ApprovalNote,
			&lc.CreatedAt, &lc.CreatedBy, &lc.ModifiedAt, &lc.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan test case row: %w", err)
		}
		entities = append(entities, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test case rows: %w", err)
	}

	for _, e := range entities {
		tc := e.(*models.TestCase)
		steps, err := r.loadSteps(ctx, tc.ID)
		if err != nil {
			return nil, err
		}
		tc.Steps = steps
	}
	return entities, nil
}

func (r *testCaseRepository) Insert(ctx context.Context, e models.LifecycleEntity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tc, ok := e.(*models.TestCase)
	if !ok {
		return fmt.Errorf("test case repository cannot store %T", e)
	}

	lc := tc.Lifecycle()
	query := `
		INSERT INTO test_cases (
			id, title, description, status, revision, approved_at, approved_by,
			approval_notes, created_at, created_by, modified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Conn.Exec(ctx, query,
		tc.ID, tc.Title, tc.Description,
		lc.Status, lc.Revision, lc.ApprovedAt, lc.ApprovedBy, lc.ApprovalNote,
		lc.CreatedAt, lc.CreatedBy, lc.ModifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("a test case with this title already exists")
		}
		return fmt.Errorf("failed to insert test case: %w", err)
	}

	return r.saveSteps(ctx, tc)
}

func (r *testCaseRepository) Update(ctx context.Context, e models.LifecycleEntity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tc, ok := e.(*models.TestCase)
	if !ok {
		return fmt.Errorf("test case repository cannot store %T", e)
	}

	lc := tc.Lifecycle()
	lc.ModifiedAt = time.Now()

	query := `
		UPDATE test_cases
		SET title = $2, description = $3, status = $4, revision = $5,
		    approved_at = $6, approved_by = $7, approval_notes = $8,
		    modified_at = $9, deleted_at = $10
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query,
		tc.ID, tc.Title, tc.Description,
		lc.Status, lc.Revision, lc.ApprovedAt, lc.ApprovedBy, lc.ApprovalNote,
		lc.ModifiedAt, lc.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update test case: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("%s not found", tc.ID)
	}

	// Steps are content: replace wholesale on every update.
	if _, err := scope.Conn.Exec(ctx, `DELETE FROM test_steps WHERE test_case_id = $1`, tc.ID); err != nil {
		return fmt.Errorf("failed to clear test steps: %w", err)
	}
	return r.saveSteps(ctx, tc)
}

func (r *testCaseRepository) TitleExists(ctx context.Context, title, excludeID string) (bool, error) {
	return titleExists(ctx, "test_cases", title, excludeID)
}

func (r *testCaseRepository) loadSteps(ctx context.Context, testCaseID string) ([]models.TestStep, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT step_number, action, expected_result
		FROM test_steps
		WHERE test_case_id = $1
		ORDER BY step_number`, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test steps: %w", err)
	}
	defer rows.Close()

	var steps []models.TestStep
	for rows.Next() {
		var s models.TestStep
		if err := rows.Scan(&s.StepNumber, &s.Action, &s.ExpectedResult); err != nil {
			return nil, fmt.Errorf("failed to scan test step: %w", err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test steps: %w", err)
	}
	return steps, nil
}

func (r *testCaseRepository) saveSteps(ctx context.Context, tc *models.TestCase) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	for _, s := range tc.Steps {
		_, err := scope.Conn.Exec(ctx, `
			INSERT INTO test_steps (test_case_id, step_number, action, expected_result)
			VALUES ($1, $2, $3, $4)`,
			tc.ID, s.StepNumber, s.Action, s.ExpectedResult)
		if err != nil {
			return fmt.Errorf("failed to insert test step: %w", err)
		}
	}
	return nil
}

var _ TestCaseRepository = (*testCaseRepository)(nil)
