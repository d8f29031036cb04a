// Package models defines role requests and domain allow-lists.
package models

import (
	"time"

	id "civicflow/pkg/domain"
)

// RequestStatus is the admission state of a role request.
type RequestStatus string

const (
	// StatusPending requests sit in the manual review queue.
	StatusPending RequestStatus = "pending"
	// StatusAutoApproved is reachable only at creation, never from pending.
	StatusAutoApproved RequestStatus = "auto_approved"
	StatusApproved     RequestStatus = "approved"
	StatusRejected     RequestStatus = "rejected"
)

// Terminal reports whether the status admits no further decisions.
func (s RequestStatus) Terminal() bool {
	return s != StatusPending
}

// ParseStatus validates a status string.
func ParseStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(s) {
	case StatusPending, StatusAutoApproved, StatusApproved, StatusRejected:
		return RequestStatus(s), true
	}
	return "", false
}

// DecidedBySystem marks decisions made by the admission engine itself.
const DecidedBySystem = "system"

// RoleRequest is one user's request for a platform role. Mutated only by the
// decision service; the requester never touches it after submission.
type RoleRequest struct {
	ID             id.RequestID
	UserID         id.UserID
	UserEmail      string
	Role           id.Role
	OrganizationID id.OrganizationID
	Justification  string
	Status         RequestStatus
	// Reason records the reviewer's rationale on manual decisions and the
	// matched domain on auto-approval (the snapshot a later revocation
	// process would need).
	Reason    string
	CreatedAt time.Time
	DecidedAt *time.Time
	// DecidedBy is a user ID string for manual decisions or DecidedBySystem.
	DecidedBy string
}

// AllowList is an organization's set of pre-approved email domains. Read-only
// input to the matcher; owned by organization administration.
type AllowList struct {
	OrganizationID id.OrganizationID
	Domains        []string
}
