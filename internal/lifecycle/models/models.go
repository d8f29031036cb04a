// Package models defines lifecycle stages, definitions, and instances.
package models

import (
	"time"

	id "civicflow/pkg/domain"
)

// Stage is one named step in an entity's linear lifecycle.
type Stage struct {
	Name string
	// Terminal stages have no outgoing transitions.
	Terminal bool
}

// Definition is the ordered stage list for an entity kind. The first stage is
// the initial one; ordering is the only transition rule the engine supports.
type Definition struct {
	Kind   id.EntityKind
	Stages []Stage
}

// Initial returns the definition's first stage.
func (d Definition) Initial() Stage {
	return d.Stages[0]
}

// Find returns the stage with the given name and its index, or ok=false when
// the name is not part of this definition.
func (d Definition) Find(name string) (Stage, int, bool) {
	for i, stage := range d.Stages {
		if stage.Name == name {
			return stage, i, true
		}
	}
	return Stage{}, 0, false
}

// Next returns the stage immediately following the named one. ok=false when
// the named stage is last (callers check Terminal before asking).
func (d Definition) Next(name string) (Stage, bool) {
	_, i, found := d.Find(name)
	if !found || i+1 >= len(d.Stages) {
		return Stage{}, false
	}
	return d.Stages[i+1], true
}

// Validate checks definition invariants: at least one stage, unique names,
// terminal only allowed past the first stage, and the last stage terminal.
func (d Definition) Validate() error {
	if len(d.Stages) == 0 {
		return ErrEmptyDefinition
	}
	seen := make(map[string]struct{}, len(d.Stages))
	for i, stage := range d.Stages {
		if stage.Name == "" {
			return ErrUnnamedStage
		}
		if _, dup := seen[stage.Name]; dup {
			return ErrDuplicateStage
		}
		seen[stage.Name] = struct{}{}
		if stage.Terminal && i != len(d.Stages)-1 {
			return ErrTerminalNotLast
		}
	}
	if !d.Stages[len(d.Stages)-1].Terminal {
		return ErrLastNotTerminal
	}
	return nil
}

// Transition is one immutable audit record of a stage change.
type Transition struct {
	FromStage  string
	ToStage    string
	Actor      id.UserID
	OccurredAt time.Time
	Notes      string
}

// Instance tracks where one entity sits in its lifecycle. Owned 1:1 by the
// entity it describes; mutated only through the state machine's Advance.
type Instance struct {
	EntityID     id.EntityID
	Kind         id.EntityKind
	CurrentStage string
	// Version guards the conditional write: every successful advance
	// increments it, and a stale writer loses.
	Version   int
	History   []Transition
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInstance creates an instance at the definition's initial stage.
func NewInstance(entityID id.EntityID, def Definition, now time.Time) *Instance {
	return &Instance{
		EntityID:     entityID,
		Kind:         def.Kind,
		CurrentStage: def.Initial().Name,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
