// Package domain holds shared domain primitives: typed identifiers and the
// role catalog. Types here enforce validity at parse time so the rest of the
// codebase never handles raw strings for identity-bearing values.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// UserID identifies a platform user (the actor behind every transition and
// role request).
type UserID uuid.UUID

// NewUserID returns a fresh random UserID.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("parse user id: %w", err)
	}
	return UserID(u), nil
}

func (u UserID) String() string { return uuid.UUID(u).String() }

// IsNil reports whether the ID is the zero UUID.
func (u UserID) IsNil() bool { return uuid.UUID(u) == uuid.Nil }

// EntityID identifies a long-lived platform entity (facility, test zone,
// accreditation record). The entity itself lives in the external entity
// store; the engine only tracks its lifecycle instance.
type EntityID uuid.UUID

func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

func ParseEntityID(s string) (EntityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntityID{}, fmt.Errorf("parse entity id: %w", err)
	}
	return EntityID(u), nil
}

func (e EntityID) String() string { return uuid.UUID(e).String() }

func (e EntityID) IsNil() bool { return uuid.UUID(e) == uuid.Nil }

// RequestID identifies a role request.
type RequestID uuid.UUID

func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RequestID{}, fmt.Errorf("parse request id: %w", err)
	}
	return RequestID(u), nil
}

func (r RequestID) String() string { return uuid.UUID(r).String() }

func (r RequestID) IsNil() bool { return uuid.UUID(r) == uuid.Nil }

// OrganizationID identifies the organization that owns a domain allow-list.
type OrganizationID uuid.UUID

func NewOrganizationID() OrganizationID {
	return OrganizationID(uuid.New())
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return OrganizationID{}, fmt.Errorf("parse organization id: %w", err)
	}
	return OrganizationID(u), nil
}

func (o OrganizationID) String() string { return uuid.UUID(o).String() }

func (o OrganizationID) IsNil() bool { return uuid.UUID(o) == uuid.Nil }

// EntityKind names a lifecycle-managed entity category. Valid kinds are
// whatever the lifecycle definition registry has a definition for.
type EntityKind string

func (k EntityKind) String() string { return string(k) }
