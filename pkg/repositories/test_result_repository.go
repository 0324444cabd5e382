package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

// TestResultRepository stores the derived, immutable evidence entities.
// There is no update or delete: test results are write-once.
type TestResultRepository interface {
	NextID(ctx context.Context) (string, error)
	Insert(ctx context.Context, tr *models.TestResult) error
	Get(ctx context.Context, id string) (*models.TestResult, error)
	List(ctx context.Context) ([]*models.TestResult, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.TestResult, error)
}

type testResultRepository struct{}

// NewTestResultRepository creates the repository backing "TRES-" ids.
func NewTestResultRepository() TestResultRepository {
	return &testResultRepository{}
}

const testResultSelect = `
	SELECT id, title, result, test_case_id, test_run_id, executed_by, executed_at, created_at
	FROM test_results`

func (r *testResultRepository) NextID(ctx context.Context) (string, error) {
	return nextSequenceID(ctx, "test_result_seq", models.KindTestResult)
}

func (r *testResultRepository) Insert(ctx context.Context, tr *models.TestResult) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO test_results (
			id, title, result, test_case_id, test_run_id, executed_by, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := scope.Conn.Exec(ctx, query,
		tr.ID, tr.Title, tr.Result, tr.TestCaseID, tr.TestRunID,
		tr.ExecutedBy, tr.ExecutedAt, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert test result: %w", err)
	}
	return nil
}

func (r *testResultRepository) Get(ctx context.Context, id string) (*models.TestResult, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	tr := &models.TestResult{}
	err := scope.Conn.QueryRow(ctx, testResultSelect+` WHERE id = $1`, models.NormalizeID(id)).Scan(
		&tr.ID, &tr.Title, &tr.Result, &tr.TestCaseID, &tr.TestRunID,
		&tr.ExecutedBy, &tr.ExecutedAt, &tr.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFound("%s not found", id)
		}
		return nil, fmt.Errorf("failed to get test result: %w", err)
	}
	return tr, nil
}

func (r *testResultRepository) List(ctx context.Context) ([]*models.TestResult, error) {
	return r.list(ctx, testResultSelect+` ORDER BY created_at`)
}

func (r *testResultRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.TestResult, error) {
	return r.list(ctx, testResultSelect+` WHERE test_run_id = $1 ORDER BY created_at`, runID)
}

func (r *testResultRepository) list(ctx context.Context, query string, args ...any) ([]*models.TestResult, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list test results: %w", err)
	}
	defer rows.Close()

	var results []*models.TestResult
	for rows.Next() {
		tr := &models.TestResult{}
		if err := rows.Scan(
			&tr.ID, &tr.Title, &tr.Result, &tr.TestCaseID, &tr.TestRunID,
			&tr.ExecutedBy, &tr.ExecutedAt, &tr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan test result: %w", err)
		}
		results = append(results, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test results: %w", err)
	}
	return results, nil
}

var _ TestResultRepository = (*testResultRepository)(nil)
