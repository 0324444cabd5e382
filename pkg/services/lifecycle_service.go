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

// EntityInput carries the caller-editable content of a lifecycle-bearing
// entity. Kind-specific fields are ignored for kinds they don't apply to.
type EntityInput struct {
	Title       string
	Description string

	// Risk scoring (required for KindRisk)
	Severity                int
	ProbabilityP1           int
	ProbabilityP2           int
	PTotalCalculationMethod string

	// Step definitions (required for KindTestCase)
	Steps []models.TestStep
}

// UpdateOptions controls the lifecycle side of an update.
type UpdateOptions struct {
	// Approve requests an explicit transition into approved (first
	// approval or re-approval). Without it, updating an approved entity
	// resets it to draft.
	Approve       bool
	ApprovalNotes string
	// Password re-authenticates the actor. Mandatory when the entity is
	// currently approved or Approve is set.
	Password string
}

// LifecycleService owns the draft/approved state machine and revision
// counter shared by user requirements, system requirements, risks, and
// test cases. It is the only writer of lifecycle fields.
type LifecycleService interface {
	Create(ctx context.Context, kind models.EntityKind, in EntityInput, actor uuid.UUID, opts UpdateOptions) (models.LifecycleEntity, error)
	Get(ctx context.Context, id string) (models.LifecycleEntity, error)
	List(ctx context.Context, kind models.EntityKind) ([]models.LifecycleEntity, error)
	Update(ctx context.Context, id string, in EntityInput, actor uuid.UUID, opts UpdateOptions) (models.LifecycleEntity, error)
	// Approve is update restricted to the status transition. Rejects an
	// already approved entity.
	Approve(ctx context.Context, id string, actor uuid.UUID, password, notes string) (models.LifecycleEntity, error)
	// SoftDelete tombstones the entity. Password required only while the
	// entity is approved.
	SoftDelete(ctx context.Context, id string, actor uuid.UUID, password string) error
}

type lifecycleService struct {
	repos    map[models.EntityKind]repositories.LifecycleRepository
	verifier PasswordVerifier
	audit    AuditService
	tx       database.TxRunner
	logger   *zap.Logger
}

// NewLifecycleService wires the four lifecycle-bearing collections.
func NewLifecycleService(
	userReqRepo repositories.LifecycleRepository,
	sysReqRepo repositories.LifecycleRepository,
	riskRepo repositories.LifecycleRepository,
	testCaseRepo repositories.LifecycleRepository,
	verifier PasswordVerifier,
	audit AuditService,
	tx database.TxRunner,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		repos: map[models.EntityKind]repositories.LifecycleRepository{
			models.KindUserRequirement:   userReqRepo,
			models.KindSystemRequirement: sysReqRepo,
			models.KindRisk:              riskRepo,
			models.KindTestCase:          testCaseRepo,
		},
		verifier: verifier,
		audit:    audit,
		tx:       tx,
		logger:   logger.Named("lifecycle"),
	}
}

// repoFor resolves the backing collection for an identifier.
func (s *lifecycleService) repoFor(id string) (repositories.LifecycleRepository, error) {
	kind := models.ResolveKind(id)
	repo, ok := s.repos[kind]
	if !ok {
		return nil, apperrors.Validation("%q is not a lifecycle-bearing entity id", id)
	}
	return repo, nil
}

func (s *lifecycleService) Create(ctx context.Context, kind models.EntityKind, in EntityInput, actor uuid.UUID, opts UpdateOptions) (models.LifecycleEntity, error) {
	repo, ok := s.repos[kind]
	if !ok {
		return nil, apperrors.Validation("cannot create entities of kind %q", kind)
	}

	entity := newEntity(kind)
	applyInput(entity, in)
	if err := entity.Validate(); err != nil {
		return nil, err
	}

	// Password check and validation complete before the transaction opens.
	if opts.Approve {
		if err := requirePassword(ctx, s.verifier, actor, opts.Password); err != nil {
			return nil, err
		}
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		taken, err := repo.TitleExists(ctx, entity.EntityTitle(), "")
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict("a %s titled %q already exists", kind, entity.EntityTitle())
		}

		id, err := repo.NextID(ctx)
		if err != nil {
			return err
		}
		setEntityID(entity, id)

		now := time.Now()
		lc := entity.Lifecycle()
		lc.Status = models.StatusDraft
		lc.Revision = 0
		lc.CreatedAt = now
		lc.CreatedBy = actor
		lc.ModifiedAt = now
		if opts.Approve {
			lc.MarkApproved(actor, now, opts.ApprovalNotes)
		}

		if err := repo.Insert(ctx, entity); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeCreate, string(kind)+".created",
			string(kind), entity.EntityID(), actor, map[string]any{
				"title":  entity.EntityTitle(),
				"status": lc.Status,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entity.Lifecycle().Status == models.StatusApproved {
		metrics.EntityApprovals.WithLabelValues(string(kind)).Inc()
	}

	s.logger.Info("Entity created",
		zap.String("id", entity.EntityID()),
		zap.String("kind", string(kind)),
		zap.String("status", string(entity.Lifecycle().Status)))
	return entity, nil
}

func (s *lifecycleService) Get(ctx context.Context, id string) (models.LifecycleEntity, error) {
	repo, err := s.repoFor(id)
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, id)
}

func (s *lifecycleService) List(ctx context.Context, kind models.EntityKind) ([]models.LifecycleEntity, error) {
	repo, ok := s.repos[kind]
	if !ok {
		return nil, apperrors.Validation("cannot list entities of kind %q", kind)
	}
	return repo.List(ctx)
}

func (s *lifecycleService) Update(ctx context.Context, id string, in EntityInput, actor uuid.UUID, opts UpdateOptions) (models.LifecycleEntity, error) {
	repo, err := s.repoFor(id)
	if err != nil {
		return nil, err
	}

	current, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Mutating an approved record, or approving one, demands
	// re-authentication. Done before the transaction begins.
	if current.Lifecycle().Status == models.StatusApproved || opts.Approve {
		if err := requirePassword(ctx, s.verifier, actor, opts.Password); err != nil {
			return nil, err
		}
	}

	var updated models.LifecycleEntity
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		entity, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}

		applyInput(entity, in)
		if err := entity.Validate(); err != nil {
			return err
		}

		taken, err := repo.TitleExists(ctx, entity.EntityTitle(), entity.EntityID())
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict("a %s titled %q already exists", entity.EntityKind(), entity.EntityTitle())
		}

		lc := entity.Lifecycle()
		wasApproved := lc.Status == models.StatusApproved
		switch {
		case opts.Approve:
			lc.MarkApproved(actor, time.Now(), opts.ApprovalNotes)
		case wasApproved:
			// Edit invalidates approval: back to draft, revision kept.
			lc.MarkDraft()
		}

		if err := repo.Update(ctx, entity); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeUpdate, string(entity.EntityKind())+".updated",
			string(entity.EntityKind()), entity.EntityID(), actor, map[string]any{
				"status":   lc.Status,
				"revision": lc.Revision,
			})
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.Approve {
		metrics.EntityApprovals.WithLabelValues(string(updated.EntityKind())).Inc()
	}
	return updated, nil
}

func (s *lifecycleService) Approve(ctx context.Context, id string, actor uuid.UUID, password, notes string) (models.LifecycleEntity, error) {
	repo, err := s.repoFor(id)
	if err != nil {
		return nil, err
	}

	current, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Lifecycle().Status == models.StatusApproved {
		return nil, apperrors.BadRequest("%s is already approved", id)
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}
	if err := requirePassword(ctx, s.verifier, actor, password); err != nil {
		return nil, err
	}

	var approved models.LifecycleEntity
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		entity, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		lc := entity.Lifecycle()
		if lc.Status == models.StatusApproved {
			return apperrors.BadRequest("%s is already approved", id)
		}

		lc.MarkApproved(actor, time.Now(), notes)
		if err := repo.Update(ctx, entity); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeApprove, string(entity.EntityKind())+".approved",
			string(entity.EntityKind()), entity.EntityID(), actor, map[string]any{
				"revision": lc.Revision,
			})
		approved = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EntityApprovals.WithLabelValues(string(approved.EntityKind())).Inc()
	s.logger.Info("Entity approved",
		zap.String("id", approved.EntityID()),
		zap.Int("revision", approved.Lifecycle().Revision))
	return approved, nil
}

func (s *lifecycleService) SoftDelete(ctx context.Context, id string, actor uuid.UUID, password string) error {
	repo, err := s.repoFor(id)
	if err != nil {
		return err
	}

	current, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	// Same rule as edit: deleting an approved record needs the password.
	if current.Lifecycle().Status == models.StatusApproved {
		if err := requirePassword(ctx, s.verifier, actor, password); err != nil {
			return err
		}
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		entity, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now()
		entity.Lifecycle().DeletedAt = &now
		if err := repo.Update(ctx, entity); err != nil {
			return err
		}

		s.audit.Record(ctx, models.EventTypeDelete, string(entity.EntityKind())+".deleted",
			string(entity.EntityKind()), entity.EntityID(), actor, nil)
		return nil
	})
}

// newEntity constructs the concrete type for a lifecycle-bearing kind.
func newEntity(kind models.EntityKind) models.LifecycleEntity {
	switch kind {
	case models.KindUserRequirement:
		return &models.UserRequirement{}
	case models.KindSystemRequirement:
		return &models.SystemRequirement{}
	case models.KindRisk:
		return &models.Risk{}
	default:
		return &models.TestCase{}
	}
}

// applyInput copies caller-editable content onto the entity. The risk
// score is recomputed here, never on read.
func applyInput(e models.LifecycleEntity, in EntityInput) {
	e.SetEntityTitle(in.Title)
	e.SetEntityDescription(in.Description)

	switch v := e.(type) {
	case *models.Risk:
		v.Severity = in.Severity
		v.ProbabilityP1 = in.ProbabilityP1
		v.ProbabilityP2 = in.ProbabilityP2
		v.PTotalCalculationMethod = in.PTotalCalculationMethod
		v.Recalculate()
	case *models.TestCase:
		v.Steps = in.Steps
	}
}

func setEntityID(e models.LifecycleEntity, id string) {
	switch v := e.(type) {
	case *models.UserRequirement:
		v.ID = id
	case *models.SystemRequirement:
		v.ID = id
	case *models.Risk:
		v.ID = id
	case *models.TestCase:
		v.ID = id
	}
}

var _ LifecycleService = (*lifecycleService)(nil)
