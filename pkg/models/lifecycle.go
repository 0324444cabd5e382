package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a lifecycle-bearing entity.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
)

// IsValidStatus checks if the given status is a recognized lifecycle state.
func IsValidStatus(s Status) bool {
	return s == StatusDraft || s == StatusApproved
}

// MaxTitleLength caps entity titles.
const MaxTitleLength = 200

// LifecycleFields carries the draft/approved state machine shared by user
// requirements, system requirements, risks, and test cases.
//
// Invariants maintained by the lifecycle service:
//   - status = approved  ⇔ approvedAt and approvedBy are both set
//   - revision increments by exactly 1 on every transition into approved
//     and is untouched by edits made while in draft
type LifecycleFields struct {
	Status       Status     `json:"status"`
	Revision     int        `json:"revision"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy   *uuid.UUID `json:"approvedBy,omitempty"`
	ApprovalNote string     `json:"approvalNotes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CreatedBy    uuid.UUID  `json:"createdBy"`
	ModifiedAt   time.Time  `json:"lastModified"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// MarkApproved transitions the entity into approved and bumps the revision.
func (l *LifecycleFields) MarkApproved(actor uuid.UUID, at time.Time, notes string) {
	l.Status = StatusApproved
	l.Revision++
	l.ApprovedAt = &at
	l.ApprovedBy = &actor
	l.ApprovalNote = notes
}

// MarkDraft clears the approval without touching the revision. This is the
// "edit invalidates approval" transition.
func (l *LifecycleFields) MarkDraft() {
	l.Status = StatusDraft
	l.ApprovedAt = nil
	l.ApprovedBy = nil
	l.ApprovalNote = ""
}

// LifecycleEntity is the capability interface the lifecycle service is
// generic over. Each of the four lifecycle-bearing kinds implements it.
type LifecycleEntity interface {
	EntityID() string
	EntityKind() EntityKind
	EntityTitle() string
	SetEntityTitle(title string)
	EntityDescription() string
	SetEntityDescription(desc string)
	Lifecycle() *LifecycleFields
	// Validate checks kind-specific field constraints. Title and
	// description rules are common and validated here too.
	Validate() error
}

// validateTitleDescription enforces the constraints shared by every
// lifecycle-bearing kind.
func validateTitleDescription(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return errRequired("title")
	}
	if len(title) > MaxTitleLength {
		return errTooLong("title", MaxTitleLength)
	}
	if strings.TrimSpace(description) == "" {
		return errRequired("description")
	}
	return nil
}
