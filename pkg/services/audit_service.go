package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muhonne/reqquli-sub000/pkg/models"
	"github.com/Muhonne/reqquli-sub000/pkg/repositories"
)

// AuditService records events to the audit trail. Recording is fire and
// forget: failures are logged and swallowed so an audit outage can never
// roll back the mutation that produced the event. Called inside the
// mutation's transaction scope, the event commits or aborts with it.
type AuditService interface {
	Record(ctx context.Context, eventType, eventName, aggregateType, aggregateID string, actor uuid.UUID, payload map[string]any)
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*models.AuditEvent, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit"),
	}
}

func (s *auditService) Record(ctx context.Context, eventType, eventName, aggregateType, aggregateID string, actor uuid.UUID, payload map[string]any) {
	event := &models.AuditEvent{
		EventType:     eventType,
		EventName:     eventName,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		ActorID:       actor,
		Payload:       payload,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to record audit event",
			zap.String("event_type", eventType),
			zap.String("event_name", eventName),
			zap.String("aggregate_type", aggregateType),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
		return
	}

	s.logger.Info("Audit event recorded",
		zap.String("event_type", eventType),
		zap.String("event_name", eventName),
		zap.String("aggregate_type", aggregateType),
		zap.String("aggregate_id", aggregateID),
		zap.String("actor_id", actor.String()))
}

func (s *auditService) GetByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*models.AuditEvent, error) {
	return s.repo.GetByAggregate(ctx, aggregateType, aggregateID)
}

var _ AuditService = (*auditService)(nil)
