// Package audit defines the append-only trail of stage transitions and
// admission decisions. Audit loss is a compliance concern distinct from
// notification loss: append failures are surfaced, never swallowed.
package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose. It drives
// retention policy and downstream routing on the Kafka side.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance:
	// accreditation transitions, role grants. Tamper-proof storage, long
	// retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. Shorter retention, may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is one immutable audit record. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// EntityID identifies the lifecycle instance or role request the record
	// concerns.
	EntityID string
	// Actor is who caused the event; "system" for auto-approvals.
	Actor  string
	Action string
	// FromStage/ToStage are set for lifecycle transitions.
	FromStage string
	ToStage   string
	// Decision/Reason are set for admission records.
	Decision string
	Reason   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ClientIP/Device identify where the request came from, as captured by
	// the client-metadata middleware. Empty for non-HTTP actors.
	ClientIP string
	Device   string
	Notes    string
}

// Action names every auditable action in the engine.
type Action string

const (
	// Lifecycle actions
	ActionStageAdvanced    Action = "stage_advanced"
	ActionLifecycleCreated Action = "lifecycle_created"

	// Admission actions
	ActionAdmissionSubmitted    Action = "admission_submitted"
	ActionAdmissionAutoApproved Action = "admission_auto_approved"
	ActionAdmissionApproved     Action = "admission_approved"
	ActionAdmissionRejected     Action = "admission_rejected"
)

// actionCategories maps each action to its category. Everything that moves an
// entity or a role is compliance; creation bookkeeping is operations.
var actionCategories = map[Action]EventCategory{
	ActionStageAdvanced:         CategoryCompliance,
	ActionAdmissionSubmitted:    CategoryCompliance,
	ActionAdmissionAutoApproved: CategoryCompliance,
	ActionAdmissionApproved:     CategoryCompliance,
	ActionAdmissionRejected:     CategoryCompliance,

	ActionLifecycleCreated: CategoryOperations,
}

// Category returns the EventCategory for this action. Unknown actions default
// to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
