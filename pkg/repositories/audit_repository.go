package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Muhonne/reqquli-sub000/pkg/database"
	"github.com/Muhonne/reqquli-sub000/pkg/models"
)

// AuditRepository appends to the audit trail.
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error

	// GetByAggregate returns events for one entity, newest first.
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*models.AuditEvent, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

func (r *auditRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	var payloadJSON []byte
	var err error
	if len(event.Payload) > 0 {
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO audit_events (
			id, event_type, event_name, aggregate_type, aggregate_id, actor_id, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.EventType, event.EventName, event.AggregateType,
		event.AggregateID, event.ActorID, payloadJSON, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]*models.AuditEvent, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, event_type, event_name, aggregate_type, aggregate_id, actor_id, payload, created_at
		FROM audit_events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY created_at DESC`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		event := &models.AuditEvent{}
		var payloadJSON []byte
		if err := rows.Scan(
			&event.ID, &event.EventType, &event.EventName, &event.AggregateType,
			&event.AggregateID, &event.ActorID, &payloadJSON, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

var _ AuditRepository = (*auditRepository)(nil)
