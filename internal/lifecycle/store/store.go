// Package store persists lifecycle instances. Two implementations: InMemory
// for unit tests and single-node runs, Postgres for real deployments. Both
// enforce the optimistic-concurrency contract: AdvanceStage only succeeds
// when the caller's observed version is still current.
package store

import (
	"context"

	"civicflow/internal/lifecycle/models"
	id "civicflow/pkg/domain"
)

// InstanceStore is the persistence boundary for lifecycle instances.
type InstanceStore interface {
	// Create stores a new instance. Returns sentinel.ErrAlreadyUsed when the
	// entity already has one: instances are 1:1 with entities.
	Create(ctx context.Context, instance *models.Instance) error

	// Get returns the instance and its full transition history.
	// Returns sentinel.ErrNotFound when absent.
	Get(ctx context.Context, entityID id.EntityID) (*models.Instance, error)

	// AdvanceStage conditionally moves the instance to toStage, appending the
	// transition and bumping the version. Returns sentinel.ErrVersionConflict
	// when expectedVersion is stale, sentinel.ErrNotFound when absent.
	AdvanceStage(ctx context.Context, entityID id.EntityID, expectedVersion int, toStage string, transition models.Transition) (*models.Instance, error)

	// InTx runs fn inside one store transaction when the backend supports it.
	// Writes made through the context passed to fn, including audit appends
	// that join via pkg/platform/tx, commit together; an error from fn rolls
	// them all back. Backends without transactions run fn directly.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
