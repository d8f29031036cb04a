package models

import (
	"fmt"
	"sync"

	id "civicflow/pkg/domain"
)

// Registry holds the lifecycle definition for each entity kind. Definitions
// are data: adding an entity kind means one Register call, not new control
// flow.
type Registry struct {
	mu          sync.RWMutex
	definitions map[id.EntityKind]Definition
}

func NewRegistry() *Registry {
	return &Registry{definitions: make(map[id.EntityKind]Definition)}
}

// Register validates and stores a definition. Re-registering a kind replaces
// its definition; callers do this only at startup.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", def.Kind, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.Kind] = def
	return nil
}

// Get returns the definition for a kind.
func (r *Registry) Get(kind id.EntityKind) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[kind]
	return def, ok
}

// Kinds returns every registered entity kind.
func (r *Registry) Kinds() []id.EntityKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]id.EntityKind, 0, len(r.definitions))
	for kind := range r.definitions {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Platform entity kinds.
const (
	KindFacility      id.EntityKind = "facility"
	KindTestZone      id.EntityKind = "test_zone"
	KindAccreditation id.EntityKind = "accreditation"
)

// DefaultRegistry returns a registry seeded with the platform's entity kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	defaults := []Definition{
		{
			Kind: KindFacility,
			Stages: []Stage{
				{Name: "setup"},
				{Name: "accreditation_pending"},
				{Name: "operational", Terminal: true},
			},
		},
		{
			Kind: KindTestZone,
			Stages: []Stage{
				{Name: "draft"},
				{Name: "review"},
				{Name: "active"},
				{Name: "decommissioned", Terminal: true},
			},
		},
		{
			Kind: KindAccreditation,
			Stages: []Stage{
				{Name: "submitted"},
				{Name: "under_review"},
				{Name: "accredited", Terminal: true},
			},
		},
	}
	for _, def := range defaults {
		// Defaults are validated by their own tests; a failure here is a
		// programming error.
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}
