package audit

import (
	"context"
	"time"
)

// Store is the persistence boundary for audit records. Append must be
// atomic per record and must return an error on any loss; silent drops are
// not acceptable here.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit stamps and appends one audit event. The category is always derived
// from the action so callers cannot misfile records.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Category = Action(event.Action).Category()
	return p.store.Append(ctx, event)
}

// ListByEntity returns the trail for one entity or request, newest first.
func (p *Publisher) ListByEntity(ctx context.Context, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entityID)
}

// ListRecent returns the N most recent events across all entities.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}
