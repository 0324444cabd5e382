package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

// fakeTx is a pass-through TxRunner: no real transaction, fn runs on the
// caller's context. beginErr simulates a failure to open the transaction.
type fakeTx struct {
	beginErr error
	calls    int
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.calls++
	return fn(ctx)
}

// fakeVerifier accepts exactly one password.
type fakeVerifier struct {
	correct string
	err     error
}

func (f *fakeVerifier) Verify(_ context.Context, _ uuid.UUID, plaintext string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return plaintext == f.correct, nil
}

type recordedEvent struct {
	eventType     string
	eventName     string
	aggregateType string
	aggregateID   string
}

// fakeAudit captures recorded events.
type fakeAudit struct {
	events []recordedEvent
}

func (f *fakeAudit) Record(_ context.Context, eventType, eventName, aggregateType, aggregateID string, _ uuid.UUID, _ map[string]any) {
	f.events = append(f.events, recordedEvent{eventType, eventName, aggregateType, aggregateID})
}

func (f *fakeAudit) GetByAggregate(context.Context, string, string) ([]*models.AuditEvent, error) {
	return nil, nil
}

// mockEntityRepo is an in-memory LifecycleRepository for one kind.
type mockEntityRepo struct {
	kind     models.EntityKind
	seq      int
	entities map[string]models.LifecycleEntity

	nextIDErr error
	insertErr error
	updateErr error
}

func newMockEntityRepo(kind models.EntityKind) *mockEntityRepo {
	return &mockEntityRepo{kind: kind, entities: map[string]models.LifecycleEntity{}}
}

func (m *mockEntityRepo) NextID(context.Context) (string, error) {
	if m.nextIDErr != nil {
		return "", m.nextIDErr
	}
	m.seq++
	return fmt.Sprintf("%s-%d", m.kind.Prefix(), m.seq), nil
}

func (m *mockEntityRepo) Get(_ context.Context, id string) (models.LifecycleEntity, error) {
	e, ok := m.entities[models.NormalizeID(id)]
	if !ok || e.Lifecycle().DeletedAt != nil {
		return nil, apperrors.NotFound("%s not found", id)
	}
	return e, nil
}

func (m *mockEntityRepo) List(context.Context) ([]models.LifecycleEntity, error) {
	ids := make([]string, 0, len(m.entities))
	for id, e := range m.entities {
		if e.Lifecycle().DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]models.LifecycleEntity, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.entities[id])
	}
	return out, nil
}

func (m *mockEntityRepo) Insert(_ context.Context, e models.LifecycleEntity) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.entities[e.EntityID()] = e
	return nil
}

func (m *mockEntityRepo) Update(_ context.Context, e models.LifecycleEntity) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.entities[e.EntityID()]; !ok {
		return apperrors.NotFound("%s not found", e.EntityID())
	}
	m.entities[e.EntityID()] = e
	return nil
}

func (m *mockEntityRepo) TitleExists(_ context.Context, title, excludeID string) (bool, error) {
	for id, e := range m.entities {
		if id == excludeID || e.Lifecycle().DeletedAt != nil {
			continue
		}
		if strings.EqualFold(e.EntityTitle(), title) {
			return true, nil
		}
	}
	return false, nil
}

// mockTestCaseRepo adds typed access on top of mockEntityRepo.
type mockTestCaseRepo struct {
	*mockEntityRepo
}

func newMockTestCaseRepo() *mockTestCaseRepo {
	return &mockTestCaseRepo{mockEntityRepo: newMockEntityRepo(models.KindTestCase)}
}

func (m *mockTestCaseRepo) GetTestCase(ctx context.Context, id string) (*models.TestCase, error) {
	e, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.(*models.TestCase), nil
}

// mockTraceRepo is an in-memory TraceRepository keyed by the ordered pair.
type mockTraceRepo struct {
	edges map[string]*models.Trace
}

func newMockTraceRepo() *mockTraceRepo {
	return &mockTraceRepo{edges: map[string]*models.Trace{}}
}

func edgeKey(fromID, toID string) string { return fromID + "->" + toID }

func (m *mockTraceRepo) Insert(_ context.Context, t *models.Trace) error {
	key := edgeKey(t.FromID, t.ToID)
	if _, ok := m.edges[key]; ok {
		return apperrors.Conflict("trace from %s to %s already exists", t.FromID, t.ToID)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	m.edges[key] = t
	return nil
}

func (m *mockTraceRepo) InsertDerived(_ context.Context, t *models.Trace) error {
	key := edgeKey(t.FromID, t.ToID)
	if _, ok := m.edges[key]; ok {
		return nil
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	t.IsSystemGenerated = true
	m.edges[key] = t
	return nil
}

func (m *mockTraceRepo) Get(_ context.Context, fromID, toID string) (*models.Trace, error) {
	t, ok := m.edges[edgeKey(models.NormalizeID(fromID), models.NormalizeID(toID))]
	if !ok {
		return nil, apperrors.NotFound("trace from %s to %s not found", fromID, toID)
	}
	return t, nil
}

func (m *mockTraceRepo) Delete(_ context.Context, fromID, toID string) error {
	key := edgeKey(models.NormalizeID(fromID), models.NormalizeID(toID))
	if _, ok := m.edges[key]; !ok {
		return apperrors.NotFound("trace from %s to %s not found", fromID, toID)
	}
	delete(m.edges, key)
	return nil
}

func (m *mockTraceRepo) ListAll(context.Context) ([]*models.Trace, error) {
	keys := make([]string, 0, len(m.edges))
	for k := range m.edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.Trace, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.edges[k])
	}
	return out, nil
}

func (m *mockTraceRepo) ListFrom(ctx context.Context, id string) ([]*models.Trace, error) {
	all, _ := m.ListAll(ctx)
	var out []*models.Trace
	for _, t := range all {
		if t.FromID == models.NormalizeID(id) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTraceRepo) ListTo(ctx context.Context, id string) ([]*models.Trace, error) {
	all, _ := m.ListAll(ctx)
	var out []*models.Trace
	for _, t := range all {
		if t.ToID == models.NormalizeID(id) {
			out = append(out, t)
		}
	}
	return out, nil
}

// mockDirectory resolves from a fixed set of refs.
type mockDirectory struct {
	refs map[string]*models.EntityRef
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{refs: map[string]*models.EntityRef{}}
}

func (m *mockDirectory) add(id string, title string, deleted bool) {
	id = models.NormalizeID(id)
	m.refs[id] = &models.EntityRef{
		ID:      id,
		Kind:    models.ResolveKind(id),
		Title:   title,
		Status:  string(models.StatusApproved),
		Deleted: deleted,
	}
}

func (m *mockDirectory) Resolve(_ context.Context, id string) (*models.EntityRef, error) {
	id = models.NormalizeID(id)
	if models.ResolveKind(id) == models.KindUnknown {
		return nil, apperrors.Validation("unrecognized entity id %q", id)
	}
	ref, ok := m.refs[id]
	if !ok {
		return nil, apperrors.NotFound("%s not found", id)
	}
	return ref, nil
}

// mockRunRepo is an in-memory TestRunRepository.
type mockRunRepo struct {
	runs  map[uuid.UUID]*models.TestRun
	cases map[uuid.UUID]*models.TestRunCase
	steps map[uuid.UUID]map[int]*models.TestStepResult
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{
		runs:  map[uuid.UUID]*models.TestRun{},
		cases: map[uuid.UUID]*models.TestRunCase{},
		steps: map[uuid.UUID]map[int]*models.TestStepResult{},
	}
}

func (m *mockRunRepo) Insert(_ context.Context, run *models.TestRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now()
	m.runs[run.ID] = run
	for _, c := range run.Cases {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.TestRunID = run.ID
		m.cases[c.ID] = c
	}
	return nil
}

func (m *mockRunRepo) Get(ctx context.Context, id uuid.UUID) (*models.TestRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, apperrors.NotFound("test run %s not found", id)
	}
	cases, _ := m.ListCases(ctx, id)
	for _, c := range cases {
		c.StepResults, _ = m.ListStepResults(ctx, c.ID)
	}
	run.Cases = cases
	return run, nil
}

func (m *mockRunRepo) List(context.Context) ([]*models.TestRun, error) {
	out := make([]*models.TestRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	return out, nil
}

func (m *mockRunRepo) UpdateRun(_ context.Context, run *models.TestRun) error {
	if _, ok := m.runs[run.ID]; !ok {
		return apperrors.NotFound("test run %s not found", run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *mockRunRepo) GetCase(_ context.Context, runID, caseID uuid.UUID) (*models.TestRunCase, error) {
	c, ok := m.cases[caseID]
	if !ok || c.TestRunID != runID {
		return nil, apperrors.NotFound("test run case %s not found", caseID)
	}
	return c, nil
}

func (m *mockRunRepo) ListCases(_ context.Context, runID uuid.UUID) ([]*models.TestRunCase, error) {
	var out []*models.TestRunCase
	for _, c := range m.cases {
		if c.TestRunID == runID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestCaseID < out[j].TestCaseID })
	return out, nil
}

func (m *mockRunRepo) UpdateCase(_ context.Context, c *models.TestRunCase) error {
	if _, ok := m.cases[c.ID]; !ok {
		return apperrors.NotFound("test run case %s not found", c.ID)
	}
	m.cases[c.ID] = c
	return nil
}

func (m *mockRunRepo) UpsertStepResult(_ context.Context, sr *models.TestStepResult) error {
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	sr.RecordedAt = time.Now()
	if m.steps[sr.TestRunCaseID] == nil {
		m.steps[sr.TestRunCaseID] = map[int]*models.TestStepResult{}
	}
	m.steps[sr.TestRunCaseID][sr.StepNumber] = sr
	return nil
}

func (m *mockRunRepo) ListStepResults(_ context.Context, runCaseID uuid.UUID) ([]*models.TestStepResult, error) {
	byStep := m.steps[runCaseID]
	numbers := make([]int, 0, len(byStep))
	for n := range byStep {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	out := make([]*models.TestStepResult, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, byStep[n])
	}
	return out, nil
}

func (m *mockRunRepo) ClearStepResults(_ context.Context, runCaseID uuid.UUID) error {
	delete(m.steps, runCaseID)
	return nil
}

// mockResultRepo is an in-memory TestResultRepository.
type mockResultRepo struct {
	seq     int
	results map[string]*models.TestResult

	insertErr error
}

func newMockResultRepo() *mockResultRepo {
	return &mockResultRepo{results: map[string]*models.TestResult{}}
}

func (m *mockResultRepo) NextID(context.Context) (string, error) {
	m.seq++
	return fmt.Sprintf("TRES-%d", m.seq), nil
}

func (m *mockResultRepo) Insert(_ context.Context, tr *models.TestResult) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.results[tr.ID] = tr
	return nil
}

func (m *mockResultRepo) Get(_ context.Context, id string) (*models.TestResult, error) {
	tr, ok := m.results[models.NormalizeID(id)]
	if !ok {
		return nil, apperrors.NotFound("%s not found", id)
	}
	return tr, nil
}

func (m *mockResultRepo) List(context.Context) ([]*models.TestResult, error) {
	ids := make([]string, 0, len(m.results))
	for id := range m.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.TestResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.results[id])
	}
	return out, nil
}

func (m *mockResultRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.TestResult, error) {
	all, _ := m.List(ctx)
	var out []*models.TestResult
	for _, tr := range all {
		if tr.TestRunID == runID {
			out = append(out, tr)
		}
	}
	return out, nil
}
