package store

import (
	"context"
	"sync"

	"civicflow/internal/lifecycle/models"
	id "civicflow/pkg/domain"
	"civicflow/pkg/platform/sentinel"
)

// InMemory keeps lifecycle instances in a map. It favors clarity over
// performance and is safe for concurrent use.
type InMemory struct {
	mu        sync.RWMutex
	instances map[id.EntityID]*models.Instance
}

func NewInMemory() *InMemory {
	return &InMemory{instances: make(map[id.EntityID]*models.Instance)}
}

func (s *InMemory) Create(_ context.Context, instance *models.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[instance.EntityID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.instances[instance.EntityID] = clone(instance)
	return nil
}

func (s *InMemory) Get(_ context.Context, entityID id.EntityID) (*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(instance), nil
}

func (s *InMemory) AdvanceStage(_ context.Context, entityID id.EntityID, expectedVersion int, toStage string, transition models.Transition) (*models.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.instances[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if instance.Version != expectedVersion {
		return nil, sentinel.ErrVersionConflict
	}

	instance.CurrentStage = toStage
	instance.Version++
	instance.History = append(instance.History, transition)
	instance.UpdatedAt = transition.OccurredAt
	return clone(instance), nil
}

// InTx has no transaction to offer in memory; fn runs directly and its writes
// are applied immediately.
func (s *InMemory) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// clone guards against callers mutating shared state through returned
// pointers.
func clone(in *models.Instance) *models.Instance {
	out := *in
	out.History = make([]models.Transition, len(in.History))
	copy(out.History, in.History)
	return &out
}
