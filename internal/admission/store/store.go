// Package store persists role requests and reads domain allow-lists.
//
// Stores report facts through pkg/platform/sentinel errors; the service maps
// them to caller-facing domain errors.
package store

import (
	"context"
	"time"

	"civicflow/internal/admission/models"
	id "civicflow/pkg/domain"
)

// RequestStore persists role requests.
type RequestStore interface {
	// Create persists a new request. sentinel.ErrAlreadyUsed when the ID
	// exists.
	Create(ctx context.Context, request *models.RoleRequest) error

	// Get returns a request. sentinel.ErrNotFound when absent.
	Get(ctx context.Context, requestID id.RequestID) (*models.RoleRequest, error)

	// ListByStatus returns requests with the given status, oldest first.
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleRequest, error)

	// Decide moves a pending request to a terminal status. The write is
	// conditional on the request still being pending:
	// sentinel.ErrInvalidState when it is already decided,
	// sentinel.ErrNotFound when absent.
	Decide(ctx context.Context, requestID id.RequestID, status models.RequestStatus, decidedBy, reason string, decidedAt time.Time) (*models.RoleRequest, error)

	// InTx runs fn inside one store transaction when the backend supports it.
	// Writes made through the context passed to fn, including audit appends
	// that join via pkg/platform/tx, commit together; an error from fn rolls
	// them all back. Backends without transactions run fn directly.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AllowListStore reads organization domain allow-lists. The authoritative
// list is maintained by organization administration; the engine only reads.
type AllowListStore interface {
	// DomainsFor returns the allow-listed domains for an organization. An
	// organization without an allow-list yields an empty slice, not an error.
	DomainsFor(ctx context.Context, orgID id.OrganizationID) ([]string, error)
}
