package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

type runFixture struct {
	runs      *mockRunRepo
	testCases *mockTestCaseRepo
	results   *mockResultRepo
	traces    *mockTraceRepo
	audit     *fakeAudit
	svc       TestRunService
}

func newRunFixture() *runFixture {
	f := &runFixture{
		runs:      newMockRunRepo(),
		testCases: newMockTestCaseRepo(),
		results:   newMockResultRepo(),
		traces:    newMockTraceRepo(),
		audit:     &fakeAudit{},
	}
	traceSvc := NewTraceService(f.traces, newMockDirectory(), f.audit, &fakeTx{}, zap.NewNop())
	f.svc = NewTestRunService(
		f.runs, f.testCases, f.results, traceSvc,
		&fakeVerifier{correct: testPassword}, f.audit, &fakeTx{}, zap.NewNop(),
	)
	return f
}

// seedTestCase stores an approved test case with the given number of steps.
func (f *runFixture) seedTestCase(id string, steps int, approved bool) *models.TestCase {
	tc := &models.TestCase{
		ID:          id,
		Title:       "Steps for " + id,
		Description: "Seeded test case",
	}
	for i := 1; i <= steps; i++ {
		tc.Steps = append(tc.Steps, models.TestStep{
			StepNumber:     i,
			Action:         fmt.Sprintf("do thing %d", i),
			ExpectedResult: fmt.Sprintf("thing %d happens", i),
		})
	}
	if approved {
		tc.MarkApproved(uuid.New(), tc.CreatedAt, "")
	}
	f.testCases.entities[id] = tc
	return tc
}

// passAllSteps records a passing outcome for every step of a run case.
func (f *runFixture) passAllSteps(t *testing.T, runID, caseID uuid.UUID, tc *models.TestCase, actor uuid.UUID) {
	t.Helper()
	for _, step := range tc.Steps {
		_, err := f.svc.RecordStep(context.Background(), runID, caseID,
			step.StepNumber, models.ResultPass, "as expected", "", actor)
		require.NoError(t, err)
	}
}

func TestTestRunService_CreateRun_Validation(t *testing.T) {
	f := newRunFixture()
	f.seedTestCase("TC-1", 2, true)
	f.seedTestCase("TC-2", 1, false)
	actor := uuid.New()
	ctx := context.Background()

	_, err := f.svc.CreateRun(ctx, "", "", []string{"TC-1"}, actor)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.CreateRun(ctx, "Release 1.0", "", nil, actor)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.CreateRun(ctx, "Release 1.0", "", []string{"UR-1"}, actor)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.CreateRun(ctx, "Release 1.0", "", []string{"TC-1", "tc-1"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "listed twice")

	// A draft test case cannot enter a run.
	_, err = f.svc.CreateRun(ctx, "Release 1.0", "", []string{"TC-2"}, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "not approved")

	_, err = f.svc.CreateRun(ctx, "Release 1.0", "", []string{"TC-99"}, actor)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTestRunService_CreateRun(t *testing.T) {
	f := newRunFixture()
	f.seedTestCase("TC-1", 2, true)
	f.seedTestCase("TC-2", 1, true)
	actor := uuid.New()

	run, err := f.svc.CreateRun(context.Background(), "Release 1.0", "full regression",
		[]string{"tc-1", "TC-2"}, actor)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, models.RunNotStarted, run.Status)
	assert.Equal(t, models.ResultPending, run.OverallResult)
	require.Len(t, run.Cases, 2)
	for _, c := range run.Cases {
		assert.Equal(t, models.CaseNotStarted, c.Status)
		assert.Equal(t, models.ResultPending, c.Result)
	}
}

func TestTestRunService_RecordStep_Validation(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 2, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	caseID := run.Cases[0].ID

	_, err = f.svc.RecordStep(ctx, run.ID, caseID, 1, models.ResultPending, "", "", actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "pass or fail")

	_, err = f.svc.RecordStep(ctx, run.ID, caseID, 7, models.ResultPass, "", "", actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "no step 7")
}

func TestTestRunService_RecordStep_Aggregation(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 2, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	caseID := run.Cases[0].ID

	// One of two steps recorded: case and run are in progress.
	runCase, err := f.svc.RecordStep(ctx, run.ID, caseID, 1, models.ResultPass, "ok", "", actor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseInProgress, runCase.Status)
	assert.Equal(t, models.ResultPending, runCase.Result)

	current, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunInProgress, current.Status)

	// Final step recorded: case completes, run completes.
	runCase, err = f.svc.RecordStep(ctx, run.ID, caseID, 2, models.ResultPass, "ok", "", actor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseComplete, runCase.Status)
	assert.Equal(t, models.ResultPass, runCase.Result)

	current, err = f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunComplete, current.Status)
	assert.Equal(t, models.ResultPass, current.OverallResult)
}

func TestTestRunService_RecordStep_FailurePropagates(t *testing.T) {
	f := newRunFixture()
	tc1 := f.seedTestCase("TC-1", 1, true)
	tc2 := f.seedTestCase("TC-2", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc1.ID, tc2.ID}, actor)
	require.NoError(t, err)

	_, err = f.svc.RecordStep(ctx, run.ID, run.Cases[0].ID, 1, models.ResultFail, "broke", "", actor)
	require.NoError(t, err)
	_, err = f.svc.RecordStep(ctx, run.ID, run.Cases[1].ID, 1, models.ResultPass, "ok", "", actor)
	require.NoError(t, err)

	// One failing case fails the whole run.
	current, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunComplete, current.Status)
	assert.Equal(t, models.ResultFail, current.OverallResult)
}

func TestTestRunService_RecordStep_LastWriteWins(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	caseID := run.Cases[0].ID

	runCase, err := f.svc.RecordStep(ctx, run.ID, caseID, 1, models.ResultFail, "broke", "", actor)
	require.NoError(t, err)
	assert.Equal(t, models.ResultFail, runCase.Result)

	// Re-recording the same step overwrites the outcome.
	runCase, err = f.svc.RecordStep(ctx, run.ID, caseID, 1, models.ResultPass, "fixed", "", actor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseComplete, runCase.Status)
	assert.Equal(t, models.ResultPass, runCase.Result)

	steps, err := f.runs.ListStepResults(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "fixed", steps[0].ActualResult)
}

func TestTestRunService_BeginCase_DiscardsPreviousResults(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 2, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	caseID := run.Cases[0].ID
	f.passAllSteps(t, run.ID, caseID, tc, actor)

	runCase, err := f.svc.BeginCase(ctx, run.ID, caseID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.CaseInProgress, runCase.Status)
	assert.Equal(t, models.ResultPending, runCase.Result)

	steps, err := f.runs.ListStepResults(ctx, caseID)
	require.NoError(t, err)
	assert.Empty(t, steps)

	// The run drops back out of complete too.
	current, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunInProgress, current.Status)
}

func TestTestRunService_ApproveRun(t *testing.T) {
	f := newRunFixture()
	tc1 := f.seedTestCase("TC-1", 2, true)
	tc2 := f.seedTestCase("TC-2", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc1.ID, tc2.ID}, actor)
	require.NoError(t, err)
	f.passAllSteps(t, run.ID, run.Cases[0].ID, tc1, actor)
	_, err = f.svc.RecordStep(ctx, run.ID, run.Cases[1].ID, 1, models.ResultFail, "broke", "", actor)
	require.NoError(t, err)

	approved, err := f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.NoError(t, err)
	assert.Equal(t, models.RunApproved, approved.Status)
	assert.Equal(t, models.ResultFail, approved.OverallResult)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, actor, *approved.ApprovedBy)

	// One test result per case, carrying the test case title and the
	// case's outcome.
	results, err := f.results.ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	byCase := map[string]*models.TestResult{}
	for _, tr := range results {
		byCase[tr.TestCaseID] = tr
	}
	assert.Equal(t, models.ResultPass, byCase["TC-1"].Result)
	assert.Equal(t, tc1.Title, byCase["TC-1"].Title)
	assert.Equal(t, models.ResultFail, byCase["TC-2"].Result)

	// One system-generated trace edge per minted result.
	for caseID, tr := range byCase {
		edge, err := f.traces.Get(ctx, caseID, tr.ID)
		require.NoError(t, err, "expected derived edge %s -> %s", caseID, tr.ID)
		assert.True(t, edge.IsSystemGenerated)
	}
}

func TestTestRunService_ApproveRun_StateAndPasswordRules(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)

	// Not complete yet.
	_, err = f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "not complete")

	f.passAllSteps(t, run.ID, run.Cases[0].ID, tc, actor)

	_, err = f.svc.ApproveRun(ctx, run.ID, actor, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	_, err = f.svc.ApproveRun(ctx, run.ID, actor, "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Empty(t, f.results.results, "failed approval must not mint results")

	_, err = f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.NoError(t, err)

	_, err = f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "already approved")
}

func TestTestRunService_ApproveRun_MintFailureAborts(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	f.passAllSteps(t, run.ID, run.Cases[0].ID, tc, actor)

	f.results.insertErr = errors.New("disk full")
	_, err = f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.Error(t, err)

	// The run never reached approved, so the approval can be retried.
	current, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunComplete, current.Status)
	assert.Nil(t, current.ApprovedBy)

	f.results.insertErr = nil
	_, err = f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.NoError(t, err)
}

func TestTestRunService_ModifyApprovedRunRejected(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	caseID := run.Cases[0].ID
	f.passAllSteps(t, run.ID, caseID, tc, actor)

	_, err = f.svc.ApproveRun(ctx, run.ID, actor, testPassword)
	require.NoError(t, err)

	_, err = f.svc.RecordStep(ctx, run.ID, caseID, 1, models.ResultFail, "", "", actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "cannot modify approved test run")

	_, err = f.svc.BeginCase(ctx, run.ID, caseID, actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
}

func TestTestRunService_RecordStep_SnapshotsExpectedResult(t *testing.T) {
	f := newRunFixture()
	tc := f.seedTestCase("TC-1", 1, true)
	actor := uuid.New()
	ctx := context.Background()

	run, err := f.svc.CreateRun(ctx, "Run", "", []string{tc.ID}, actor)
	require.NoError(t, err)
	caseID := run.Cases[0].ID

	_, err = f.svc.RecordStep(ctx, run.ID, caseID, 1, models.ResultPass, "thing 1 happened", "", actor)
	require.NoError(t, err)

	// Editing the test case afterwards must not rewrite recorded evidence.
	tc.Steps[0].ExpectedResult = "something else entirely"

	got, err := f.svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Cases[0].StepResults, 1)
	assert.Equal(t, "thing 1 happens", got.Cases[0].StepResults[0].ExpectedResult)
	assert.Equal(t, "thing 1 happened", got.Cases[0].StepResults[0].ActualResult)
}
