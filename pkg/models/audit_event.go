package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types.
const (
	EventTypeCreate  = "create"
	EventTypeUpdate  = "update"
	EventTypeDelete  = "delete"
	EventTypeApprove = "approve"
	EventTypeExecute = "execute"
)

// AuditEvent is one row of the append-only audit trail. Recording is
// best-effort: a failed insert is logged and swallowed, never propagated
// into the mutation that triggered it.
type AuditEvent struct {
	ID            uuid.UUID      `json:"id"`
	EventType     string         `json:"eventType"`
	EventName     string         `json:"eventName"`
	AggregateType string         `json:"aggregateType"`
	AggregateID   string         `json:"aggregateId"`
	ActorID       uuid.UUID      `json:"actorId"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
