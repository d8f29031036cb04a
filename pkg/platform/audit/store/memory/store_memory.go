// Package memory provides the in-memory audit store used in unit tests and
// single-node deployments without Postgres.
package memory

import (
	"context"
	"sync"

	audit "civicflow/pkg/platform/audit"
)

// Store keeps audit events in memory, append-only.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListByEntity(_ context.Context, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EntityID == entityID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *Store) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]audit.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Len reports the number of appended events. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
