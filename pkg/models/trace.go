package models

import (
	"time"

	"github.com/google/uuid"
)

// Trace is a directed edge between two entity identifiers. The edge stores
// no type columns; FromType/ToType are always re-derived from the
// identifier prefixes at read time via ResolveKind.
type Trace struct {
	ID                uuid.UUID `json:"id"`
	FromID            string    `json:"fromId"`
	ToID              string    `json:"toId"`
	CreatedBy         uuid.UUID `json:"createdBy"`
	CreatedAt         time.Time `json:"createdAt"`
	IsSystemGenerated bool      `json:"isSystemGenerated"`
}

// FromKind resolves the kind of the source endpoint.
func (t *Trace) FromKind() EntityKind { return ResolveKind(t.FromID) }

// ToKind resolves the kind of the target endpoint.
func (t *Trace) ToKind() EntityKind { return ResolveKind(t.ToID) }

// EntityRef is a resolved, human-readable summary of a trace endpoint.
type EntityRef struct {
	ID      string     `json:"id"`
	Kind    EntityKind `json:"type"`
	Title   string     `json:"title"`
	Status  string     `json:"status"`
	Deleted bool       `json:"-"`
}

// TraceView is an edge with both endpoints resolved for display.
type TraceView struct {
	Trace
	From EntityRef `json:"from"`
	To   EntityRef `json:"to"`
}

// EntityTraces groups the edges around one entity: upstream edges point at
// it, downstream edges leave it.
type EntityTraces struct {
	Upstream   []TraceView `json:"upstream"`
	Downstream []TraceView `json:"downstream"`
}
