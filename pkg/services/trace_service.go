package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muhonne/reqquli-sub000/pkg/apperrors"
	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/metrics"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
	"github.com/Muhonne/reqquli-sub000/pkg/repositories"
)

// TraceService owns the directed trace graph between entities. Endpoint
// kinds are always derived from identifier prefixes through the entity
// directory; the service never persists a type.
//
// It reads lifecycle fields (to check existence and tombstones) but never
// writes them — the lifecycle service is the sole writer of those columns.
type TraceService interface {
	// ListAll returns every edge whose endpoints both still resolve to a
	// live entity. Edges touching soft-deleted entities are filtered out,
	// not removed.
	ListAll(ctx context.Context) ([]models.TraceView, error)

	// ListForEntity splits the edges around one live entity into upstream
	// (pointing at it) and downstream (leaving it).
	ListForEntity(ctx context.Context, id string) (*models.EntityTraces, error)

	// Create records a user-created edge. Endpoints must exist, must not
	// be soft-deleted, and must not resolve to a test result — derived
	// edges are pipeline-only. Duplicate pairs surface as Conflict.
	Create(ctx context.Context, fromID, toID string, actor uuid.UUID) (*models.Trace, error)

	// Delete unlinks a user-created edge. System-generated edges are not
	// deletable through this surface.
	Delete(ctx context.Context, fromID, toID string, actor uuid.UUID) error

	// CreateDerived records a system-generated edge on behalf of the test
	// execution pipeline. Idempotent on duplicates so approval retries
	// cannot fail. Must run inside the pipeline's transaction scope.
	CreateDerived(ctx context.Context, fromID, toID string, actor uuid.UUID) error
}

type traceService struct {
	traces    repositories.TraceRepository
	directory repositories.EntityDirectory
	audit     AuditService
	tx        database.TxRunner
	logger    *zap.Logger
}

// NewTraceService creates a new trace service.
func NewTraceService(
	traces repositories.TraceRepository,
	directory repositories.EntityDirectory,
	audit AuditService,
	tx database.TxRunner,
	logger *zap.Logger,
) TraceService {
	return &traceService{
		traces:    traces,
		directory: directory,
		audit:     audit,
		tx:        tx,
		logger:    logger.Named("trace"),
	}
}

func (s *traceService) ListAll(ctx context.Context) ([]models.TraceView, error) {
	edges, err := s.traces.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	refs := map[string]*models.EntityRef{}
	views := make([]models.TraceView, 0, len(edges))
	for _, edge := range edges {
		from, err := s.resolveCached(ctx, refs, edge.FromID)
		if err != nil {
			return nil, err
		}
		to, err := s.resolveCached(ctx, refs, edge.ToID)
		if err != nil {
			return nil, err
		}
		if from == nil || to == nil || from.Deleted || to.Deleted {
			continue
		}
		views = append(views, models.TraceView{Trace: *edge, From: *from, To: *to})
	}
	return views, nil
}

func (s *traceService) ListForEntity(ctx context.Context, id string) (*models.EntityTraces, error) {
	ref, err := s.directory.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Deleted {
		return nil, apperrors.NotFound("%s not found", id)
	}

	upstream, err := s.traces.ListTo(ctx, id)
	if err != nil {
		return nil, err
	}
	downstream, err := s.traces.ListFrom(ctx, id)
	if err != nil {
		return nil, err
	}

	refs := map[string]*models.EntityRef{ref.ID: ref}
	result := &models.EntityTraces{
		Upstream:   []models.TraceView{},
		Downstream: []models.TraceView{},
	}
	for _, edge := range upstream {
		other, err := s.resolveCached(ctx, refs, edge.FromID)
		if err != nil {
			return nil, err
		}
		if other == nil || other.Deleted {
			continue
		}
		result.Upstream = append(result.Upstream, models.TraceView{Trace: *edge, From: *other, To: *ref})
	}
	for _, edge := range downstream {
		other, err := s.resolveCached(ctx, refs, edge.ToID)
		if err != nil {
			return nil, err
		}
		if other == nil || other.Deleted {
			continue
		}
		result.Downstream = append(result.Downstream, models.TraceView{Trace: *edge, From: *ref, To: *other})
	}
	return result, nil
}

func (s *traceService) Create(ctx context.Context, fromID, toID string, actor uuid.UUID) (*models.Trace, error) {
	fromID = models.NormalizeID(fromID)
	toID = models.NormalizeID(toID)

	if fromID == toID {
		return nil, apperrors.Validation("an entity cannot trace to itself")
	}
	if models.ResolveKind(fromID) == models.KindTestResult || models.ResolveKind(toID) == models.KindTestResult {
		return nil, apperrors.BadRequest("test result traces are created by test run approval only")
	}

	from, err := s.directory.Resolve(ctx, fromID)
	if err != nil {
		return nil, endpointErr("from", fromID, err)
	}
	if from.Deleted {
		return nil, apperrors.NotFound("from entity %s not found", fromID)
	}
	to, err := s.directory.Resolve(ctx, toID)
	if err != nil {
		return nil, endpointErr("to", toID, err)
	}
	if to.Deleted {
		return nil, apperrors.NotFound("to entity %s not found", toID)
	}

	trace := &models.Trace{
		FromID:            fromID,
		ToID:              toID,
		CreatedBy:         actor,
		IsSystemGenerated: false,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.traces.Insert(ctx, trace); err != nil {
			return err
		}
		s.audit.Record(ctx, models.EventTypeCreate, "trace.created",
			"trace", fromID+"->"+toID, actor, map[string]any{
				"fromType": trace.FromKind(),
				"toType":   trace.ToKind(),
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TraceEdges.WithLabelValues("user").Inc()
	s.logger.Info("Trace created",
		zap.String("from", fromID), zap.String("to", toID))
	return trace, nil
}

func (s *traceService) Delete(ctx context.Context, fromID, toID string, actor uuid.UUID) error {
	trace, err := s.traces.Get(ctx, fromID, toID)
	if err != nil {
		return err
	}
	if trace.IsSystemGenerated {
		return apperrors.BadRequest("system-generated traces cannot be deleted")
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.traces.Delete(ctx, fromID, toID); err != nil {
			return err
		}
		s.audit.Record(ctx, models.EventTypeDelete, "trace.deleted",
			"trace", models.NormalizeID(fromID)+"->"+models.NormalizeID(toID), actor, nil)
		return nil
	})
}

func (s *traceService) CreateDerived(ctx context.Context, fromID, toID string, actor uuid.UUID) error {
	trace := &models.Trace{
		FromID:    models.NormalizeID(fromID),
		ToID:      models.NormalizeID(toID),
		CreatedBy: actor,
	}
	if err := s.traces.InsertDerived(ctx, trace); err != nil {
		return err
	}
	metrics.TraceEdges.WithLabelValues("system").Inc()
	return nil
}

// resolveCached resolves an endpoint, memoizing within one call and
// treating a vanished endpoint as nil rather than an error so one dangling
// edge cannot break a listing.
func (s *traceService) resolveCached(ctx context.Context, cache map[string]*models.EntityRef, id string) (*models.EntityRef, error) {
	if ref, ok := cache[id]; ok {
		return ref, nil
	}
	ref, err := s.directory.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrValidation) {
			cache[id] = nil
			return nil, nil
		}
		return nil, err
	}
	cache[id] = ref
	return ref, nil
}

// endpointErr names the failing side of an edge on resolution failures.
func endpointErr(side, id string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound("%s entity %s not found", side, id)
	}
	return err
}
