package handler

import (
	"time"

	"civicflow/internal/lifecycle/models"
	"civicflow/internal/lifecycle/service"
)

// TransitionResponse is one history entry.
type TransitionResponse struct {
	FromStage  string    `json:"from_stage"`
	ToStage    string    `json:"to_stage"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
	Notes      string    `json:"notes,omitempty"`
}

// InstanceResponse is the HTTP shape of a lifecycle instance.
type InstanceResponse struct {
	EntityID     string               `json:"entity_id"`
	Kind         string               `json:"kind"`
	CurrentStage string               `json:"current_stage"`
	Version      int                  `json:"version"`
	History      []TransitionResponse `json:"history"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// AdvanceResponse is the HTTP response for POST /lifecycle/{entityID}/advance.
type AdvanceResponse struct {
	Outcome         string            `json:"outcome"`
	CompletionRatio float64           `json:"completion_ratio"`
	GatePassed      bool              `json:"gate_passed"`
	MissingRequired []string          `json:"missing_required,omitempty"`
	Instance        *InstanceResponse `json:"instance"`
}

// FromInstance converts a domain instance to its HTTP shape.
func FromInstance(instance *models.Instance) *InstanceResponse {
	history := make([]TransitionResponse, 0, len(instance.History))
	for _, t := range instance.History {
		history = append(history, TransitionResponse{
			FromStage:  t.FromStage,
			ToStage:    t.ToStage,
			Actor:      t.Actor.String(),
			OccurredAt: t.OccurredAt,
			Notes:      t.Notes,
		})
	}
	return &InstanceResponse{
		EntityID:     instance.EntityID.String(),
		Kind:         string(instance.Kind),
		CurrentStage: instance.CurrentStage,
		Version:      instance.Version,
		History:      history,
		CreatedAt:    instance.CreatedAt,
		UpdatedAt:    instance.UpdatedAt,
	}
}

// FromAdvanceResult converts a domain advance result to its HTTP shape.
func FromAdvanceResult(result *service.AdvanceResult) *AdvanceResponse {
	return &AdvanceResponse{
		Outcome:         string(result.Outcome),
		CompletionRatio: result.Checklist.CompletionRatio,
		GatePassed:      result.Checklist.GatePassed,
		MissingRequired: result.MissingRequired,
		Instance:        FromInstance(result.Instance),
	}
}
