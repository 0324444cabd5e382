package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/metrics"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
	"github.com/Muhonne/reqquli-sub000/pkg/repositories"
)

// TestRunService owns the test run → run case → step result hierarchy and
// its aggregation rules. Run approval is the single place where two
// components commit inside one transaction: minting the test result
// entities and writing their derived trace edges must land atomically —
// evidence must never exist without provenance, or vice versa.
type TestRunService interface {
	// CreateRun starts a run over the given test cases, all of which must
	// currently be approved and not deleted.
	CreateRun(ctx context.Context, name, description string, testCaseIDs []string, actor uuid.UUID) (*models.TestRun, error)

	GetRun(ctx context.Context, id uuid.UUID) (*models.TestRun, error)
	ListRuns(ctx context.Context) ([]*models.TestRun, error)

	// BeginCase explicitly (re-)enters execution of a run case,
	// discarding any previously recorded step results.
	BeginCase(ctx context.Context, runID, caseID uuid.UUID, actor uuid.UUID) (*models.TestRunCase, error)

	// RecordStep upserts one step outcome and re-evaluates case and run
	// completion, all inside one transaction.
	RecordStep(ctx context.Context, runID, caseID uuid.UUID, stepNumber int, status models.ResultValue, actualResult, evidenceRef string, actor uuid.UUID) (*models.TestRunCase, error)

	// ApproveRun locks a complete run: one test result entity and one
	// system-generated trace edge per complete case, or none at all.
	ApproveRun(ctx context.Context, runID uuid.UUID, actor uuid.UUID, password string) (*models.TestRun, error)
}

type testRunService struct {
	runs      repositories.TestRunRepository
	testCases repositories.TestCaseRepository
	results   repositories.TestResultRepository
	traces    TraceService
	verifier  PasswordVerifier
	audit     AuditService
	tx        database.TxRunner
	logger    *zap.Logger
}

// NewTestRunService creates the execution pipeline service.
func NewTestRunService(
	runs repositories.TestRunRepository,
	testCases repositories.TestCaseRepository,
	results repositories.TestResultRepository,
	traces TraceService,
	verifier PasswordVerifier,
	audit AuditService,
	tx database.TxRunner,
	logger *zap.Logger,
) TestRunService {
	return &testRunService{
		runs:      runs,
		testCases: testCases,
		results:   results,
		traces:    traces,
		verifier:  verifier,
		audit:     audit,
		tx:        tx,
		logger:    logger.Named("testrun"),
	}
}

func (s *testRunService) CreateRun(ctx context.Context, name, description string, testCaseIDs []string, actor uuid.UUID) (*models.TestRun, error) {
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if len(testCaseIDs) == 0 {
		return nil, apperrors.Validation("at least one test case is required")
	}

	seen := make(map[string]bool, len(testCaseIDs))
	normalized := make([]string, 0, len(testCaseIDs))
	for _, id := range testCaseIDs {
		id = models.NormalizeID(id)
		if models.ResolveKind(id) != models.KindTestCase {
			return nil, apperrors.Validation("%q is not a test case id", id)
		}
		if seen[id] {
			return nil, apperrors.Validation("test case %s listed twice", id)
		}
		seen[id] = true
		normalized = append(normalized, id)
	}

	run := &models.TestRun{
		Name:          name,
		Description:   description,
		Status:        models.RunNotStarted,
		OverallResult: models.ResultPending,
		CreatedBy:     actor,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, id := range normalized {
			tc, err := s.testCases.GetTestCase(ctx, id)
			if err != nil {
				return err
			}
			if tc.Status != models.StatusApproved {
				return apperrors.BadRequest("test case %s is not approved", id)
			}
			run.Cases = append(run.Cases, &models.TestRunCase{
				TestCaseID: id,
				Status:     models.CaseNotStarted,
				Result:     models.ResultPending,
			})
		}

		if err := s.runs.Insert(ctx, run); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeCreate, "testRun.created",
			"testRun", run.ID.String(), actor, map[string]any{
				"name":      name,
				"testCases": normalized,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Test run created",
		zap.String("run_id", run.ID.String()),
		zap.Int("cases", len(run.Cases)))
	return run, nil
}

func (s *testRunService) GetRun(ctx context.Context, id uuid.UUID) (*models.TestRun, error) {
	return s.runs.Get(ctx, id)
}

func (s *testRunService) ListRuns(ctx context.Context) ([]*models.TestRun, error) {
	return s.runs.List(ctx)
}

func (s *testRunService) BeginCase(ctx context.Context, runID, caseID uuid.UUID, actor uuid.UUID) (*models.TestRunCase, error) {
	var out *models.TestRunCase
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		run, err := s.runs.Get(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status == models.RunApproved {
			return apperrors.BadRequest("cannot modify approved test run")
		}

		runCase, err := s.runs.GetCase(ctx, runID, caseID)
		if err != nil {
			return err
		}

		// A re-run discards everything recorded before.
		if err := s.runs.ClearStepResults(ctx, runCase.ID); err != nil {
			return err
		}

		now := time.Now()
		runCase.Status = models.CaseInProgress
		runCase.Result = models.ResultPending
		runCase.ExecutedBy = &actor
		runCase.ExecutedAt = &now
		if err := s.runs.UpdateCase(ctx, runCase); err != nil {
			return err
		}

		if err := s.recomputeRun(ctx, run); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeExecute, "testRunCase.started",
			"testRunCase", runCase.ID.String(), actor, map[string]any{
				"testCaseId": runCase.TestCaseID,
			})
		out = runCase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *testRunService) RecordStep(ctx context.Context, runID, caseID uuid.UUID, stepNumber int, status models.ResultValue, actualResult, evidenceRef string, actor uuid.UUID) (*models.TestRunCase, error) {
	if status != models.ResultPass && status != models.ResultFail {
		return nil, apperrors.Validation("step status must be pass or fail")
	}

	var out *models.TestRunCase
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		run, err := s.runs.Get(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status == models.RunApproved {
			return apperrors.BadRequest("cannot modify approved test run")
		}

		runCase, err := s.runs.GetCase(ctx, runID, caseID)
		if err != nil {
			return err
		}

		testCase, err := s.testCases.GetTestCase(ctx, runCase.TestCaseID)
		if err != nil {
			return err
		}
		step := testCase.Step(stepNumber)
		if step == nil {
			return apperrors.Validation("test case %s has no step %d", testCase.ID, stepNumber)
		}

		// First execution moves the case into in_progress and discards
		// any results left over from a previous attempt.
		if runCase.Status == models.CaseNotStarted {
			if err := s.runs.ClearStepResults(ctx, runCase.ID); err != nil {
				return err
			}
			runCase.Status = models.CaseInProgress
		}

		// Snapshot the expected result: step definitions are replaced
		// wholesale when the test case is edited, the evidence is not.
		if err := s.runs.UpsertStepResult(ctx, &models.TestStepResult{
			TestRunCaseID:  runCase.ID,
			StepNumber:     stepNumber,
			Status:         status,
			ExpectedResult: step.ExpectedResult,
			ActualResult:   actualResult,
			EvidenceRef:    evidenceRef,
			RecordedBy:     actor,
		}); err != nil {
			return err
		}

		if err := s.recomputeCase(ctx, runCase, testCase, actor); err != nil {
			return err
		}
		if err := s.recomputeRun(ctx, run); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeExecute, "testStep.recorded",
			"testRunCase", runCase.ID.String(), actor, map[string]any{
				"stepNumber": stepNumber,
				"status":     status,
			})
		out = runCase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *testRunService) ApproveRun(ctx context.Context, runID uuid.UUID, actor uuid.UUID, password string) (*models.TestRun, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == models.RunApproved {
		return nil, apperrors.BadRequest("test run is already approved")
	}
	if run.Status != models.RunComplete {
		return nil, apperrors.BadRequest("test run is not complete")
	}
	if err := requirePassword(ctx, s.verifier, actor, password); err != nil {
		return nil, err
	}

	var approved *models.TestRun
	var minted []models.ResultValue
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		minted = minted[:0]

		run, err := s.runs.Get(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status == models.RunApproved {
			return apperrors.BadRequest("test run is already approved")
		}
		if run.Status != models.RunComplete {
			return apperrors.BadRequest("test run is not complete")
		}

		// Every case must still be complete; a newly incomplete case
		// aborts the whole approval rather than being skipped.
		for _, runCase := range run.Cases {
			if runCase.Status != models.CaseComplete {
				return apperrors.BadRequest("test run case for %s is not complete", runCase.TestCaseID)
			}

			testCase, err := s.testCases.GetTestCase(ctx, runCase.TestCaseID)
			if err != nil {
				return err
			}

			id, err := s.results.NextID(ctx)
			if err != nil {
				return err
			}

			result := &models.TestResult{
				ID:         id,
				Title:      testCase.Title,
				Result:     runCase.Result,
				TestCaseID: runCase.TestCaseID,
				TestRunID:  run.ID,
				ExecutedBy: *runCase.ExecutedBy,
				ExecutedAt: *runCase.ExecutedAt,
				CreatedAt:  time.Now(),
			}
			if err := s.results.Insert(ctx, result); err != nil {
				return err
			}

			if err := s.traces.CreateDerived(ctx, runCase.TestCaseID, id, actor); err != nil {
				return err
			}
			minted = append(minted, runCase.Result)
		}

		now := time.Now()
		run.Status = models.RunApproved
		run.ApprovedBy = &actor
		run.ApprovedAt = &now
		if err := s.runs.UpdateRun(ctx, run); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeApprove, "testRun.approved",
			"testRun", run.ID.String(), actor, map[string]any{
				"overallResult": run.OverallResult,
				"results":       len(run.Cases),
			})
		approved = run
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, result := range minted {
		metrics.TestResultsMinted.WithLabelValues(string(result)).Inc()
	}
	s.logger.Info("Test run approved",
		zap.String("run_id", approved.ID.String()),
		zap.String("overall_result", string(approved.OverallResult)),
		zap.Int("results_minted", len(minted)))
	return approved, nil
}

// recomputeCase re-evaluates one run case after a step write: the case is
// complete once every defined step has an outcome, and fails if any step
// failed.
func (s *testRunService) recomputeCase(ctx context.Context, runCase *models.TestRunCase, testCase *models.TestCase, actor uuid.UUID) error {
	recorded, err := s.runs.ListStepResults(ctx, runCase.ID)
	if err != nil {
		return err
	}

	byStep := make(map[int]models.ResultValue, len(recorded))
	for _, sr := range recorded {
		byStep[sr.StepNumber] = sr.Status
	}

	complete := true
	failed := false
	for _, step := range testCase.Steps {
		outcome, ok := byStep[step.StepNumber]
		if !ok {
			complete = false
			break
		}
		if outcome == models.ResultFail {
			failed = true
		}
	}

	now := time.Now()
	runCase.ExecutedBy = &actor
	runCase.ExecutedAt = &now
	if complete {
		runCase.Status = models.CaseComplete
		if failed {
			runCase.Result = models.ResultFail
		} else {
			runCase.Result = models.ResultPass
		}
	} else {
		runCase.Status = models.CaseInProgress
		runCase.Result = models.ResultPending
	}
	return s.runs.UpdateCase(ctx, runCase)
}

// recomputeRun re-evaluates run status from its cases: in_progress on the
// first case transition, complete once every case is complete, overall
// fail if any case failed.
func (s *testRunService) recomputeRun(ctx context.Context, run *models.TestRun) error {
	cases, err := s.runs.ListCases(ctx, run.ID)
	if err != nil {
		return err
	}

	allComplete := len(cases) > 0
	anyTouched := false
	anyFailed := false
	for _, c := range cases {
		if c.Status != models.CaseComplete {
			allComplete = false
		}
		if c.Status != models.CaseNotStarted {
			anyTouched = true
		}
		if c.Result == models.ResultFail {
			anyFailed = true
		}
	}

	switch {
	case allComplete:
		run.Status = models.RunComplete
		if anyFailed {
			run.OverallResult = models.ResultFail
		} else {
			run.OverallResult = models.ResultPass
		}
	case anyTouched:
		run.Status = models.RunInProgress
		run.OverallResult = models.ResultPending
	default:
		run.Status = models.RunNotStarted
		run.OverallResult = models.ResultPending
	}
	return s.runs.UpdateRun(ctx, run)
}

var _ TestRunService = (*testRunService)(nil)
