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

// TestRunRepository stores test runs, their per-case rows, and the
// individual step results.
type TestRunRepository interface {
	Insert(ctx context.Context, run *models.TestRun) error
	Get(ctx context.Context, id uuid.UUID) (*models.TestRun, error)
	List(ctx context.Context) ([]*models.TestRun, error)
	UpdateRun(ctx context.Context, run *models.TestRun) error

	GetCase(ctx context.Context, runID, caseID uuid.UUID) (*models.TestRunCase, error)
	ListCases(ctx context.Context, runID uuid.UUID) ([]*models.TestRunCase, error)
	UpdateCase(ctx context.Context, c *models.TestRunCase) error

	// UpsertStepResult writes the outcome for (run case, step number);
	// the last write per step wins.
	UpsertStepResult(ctx context.Context, sr *models.TestStepResult) error
	ListStepResults(ctx context.Context, runCaseID uuid.UUID) ([]*models.TestStepResult, error)
	// ClearStepResults discards all recorded steps of a run case; used
	// when a case re-enters execution.
	ClearStepResults(ctx context.Context, runCaseID uuid.UUID) error
}

type testRunRepository struct{}

// NewTestRunRepository creates a new test run repository.
func NewTestRunRepository() TestRunRepository {
	return &testRunRepository{}
}

func (r *testRunRepository) Insert(ctx context.Context, run *models.TestRun) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO test_runs (id, name, description, status, overall_result, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Name, run.Description, run.Status, run.OverallResult,
		run.CreatedBy, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert test run: %w", err)
	}

	for _, c := range run.Cases {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.TestRunID = run.ID
		_, err := scope.Conn.Exec(ctx, `
			INSERT INTO test_run_cases (id, test_run_id, test_case_id, status, result)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.TestRunID, c.TestCaseID, c.Status, c.Result)
		if err != nil {
			return fmt.Errorf("failed to insert test run case: %w", err)
		}
	}
	return nil
}

func (r *testRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.TestRun, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	run := &models.TestRun{}
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, name, description, status, overall_result, created_by, created_at, approved_by, approved_at
		FROM test_runs
		WHERE id = $1`, id).Scan(
		&run.ID, &run.Name, &run.Description, &run.Status, &run.OverallResult,
		&run.CreatedBy, &run.CreatedAt, &run.ApprovedBy, &run.ApprovedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("test run %s not found", id)
		}
		return nil, fmt.Errorf("failed to get test run: %w", err)
	}

	cases, err := r.ListCases(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		steps, err := r.ListStepResults(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.StepResults = steps
	}
	run.Cases = cases
	return run, nil
}

func (r *testRunRepository) List(ctx context.Context) ([]*models.TestRun, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, name, description, status, overall_result, created_by, created_at, approved_by, approved_at
		FROM test_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list test runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TestRun
	for rows.Next() {
		run := &models.TestRun{}
		if err := rows.Scan(
			&run.ID, &run.Name, &run.Description, &run.Status, &run.OverallResult,
			&run.CreatedBy, &run.CreatedAt, &run.ApprovedBy, &run.ApprovedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan test run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test runs: %w", err)
	}
	return runs, nil
}

func (r *testRunRepository) UpdateRun(ctx context.Context, run *models.TestRun) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE test_runs
		SET name = $2, description = $3, status = $4, overall_result = $5,
		    approved_by = $6, approved_at = $7
		WHERE id = $1`,
		run.ID, run.Name, run.Description, run.Status, run.OverallResult,
		run.ApprovedBy, run.ApprovedAt)
	if err != nil {
		return fmt.Errorf("failed to update test run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("test run %s not found", run.ID)
	}
	return nil
}

func (r *testRunRepository) GetCase(ctx context.Context, runID, caseID uuid.UUID) (*models.TestRunCase, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	c := &models.TestRunCase{}
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, test_run_id, test_case_id, status, result, executed_by, executed_at
		FROM test_run_cases
		WHERE test_run_id = $1 AND id = $2`, runID, caseID).Scan(
		&c.ID, &c.TestRunID, &c.TestCaseID, &c.Status, &c.Result, &c.ExecutedBy, &c.ExecutedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("test run case %s not found", caseID)
		}
		return nil, fmt.Errorf("failed to get test run case: %w", err)
	}
	return c, nil
}

func (r *testRunRepository) ListCases(ctx context.Context, runID uuid.UUID) ([]*models.TestRunCase, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, test_run_id, test_case_id, status, result, executed_by, executed_at
		FROM test_run_cases
		WHERE test_run_id = $1
		ORDER BY test_case_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list test run cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.TestRunCase
	for rows.Next() {
		c := &models.TestRunCase{}
		if err := rows.Scan(
			&c.ID, &c.TestRunID, &c.TestCaseID, &c.Status, &c.Result, &c.ExecutedBy, &c.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan test run case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test run cases: %w", err)
	}
	return cases, nil
}

func (r *testRunRepository) UpdateCase(ctx context.Context, c *models.TestRunCase) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE test_run_cases
		SET status = $2, result = $3, executed_by = $4, executed_at = $5
		WHERE id = $1`,
		c.ID, c.Status, c.Result, c.ExecutedBy, c.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to update test run case: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("test run case %s not found", c.ID)
	}
	return nil
}

func (r *testRunRepository) UpsertStepResult(ctx context.Context, sr *models.TestStepResult) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	sr.RecordedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO test_step_results (
			id, test_run_case_id, step_number, status, expected_result, actual_result,
			evidence_ref, recorded_by, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (test_run_case_id, step_number) DO UPDATE
		SET status = EXCLUDED.status,
		    expected_result = EXCLUDED.expected_result,
		    actual_result = EXCLUDED.actual_result,
		    evidence_ref = EXCLUDED.evidence_ref,
		    recorded_by = EXCLUDED.recorded_by,
		    recorded_at = EXCLUDED.recorded_at`,
		sr.ID, sr.TestRunCaseID, sr.StepNumber, sr.Status, sr.ExpectedResult,
		sr.ActualResult, sr.EvidenceRef, sr.RecordedBy, sr.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert step result: %w", err)
	}
	return nil
}

func (r *testRunRepository) ListStepResults(ctx context.Context, runCaseID uuid.UUID) ([]*models.TestStepResult, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, test_run_case_id, step_number, status, expected_result, actual_result,
		       evidence_ref, recorded_by, recorded_at
		FROM test_step_results
		WHERE test_run_case_id = $1
		ORDER BY step_number`, runCaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step results: %w", err)
	}
	defer rows.Close()

	var results []*models.TestStepResult
	for rows.Next() {
		sr := &models.TestStepResult{}
		if err := rows.Scan(
			&sr.ID, &sr.TestRunCaseID, &sr.StepNumber, &sr.Status, &sr.ExpectedResult,
			&sr.ActualResult, &sr.EvidenceRef, &sr.RecordedBy, &sr.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step results: %w", err)
	}
	return results, nil
}

func (r *testRunRepository) ClearStepResults(ctx context.Context, runCaseID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	_, err := scope.Conn.Exec(ctx,
		`DELETE FROM test_step_results WHERE test_run_case_id = $1`, runCaseID)
	if err != nil {
		return fmt.Errorf("failed to clear step results: %w", err)
	}
	return nil
}

var _ TestRunRepository = (*testRunRepository)(nil)
