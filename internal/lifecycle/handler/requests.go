package handler

import (
	"strings"

	"civicflow/internal/checklist"
	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
)

const maxNotesLength = 2000

// CreateRequest is the HTTP request body for POST /lifecycle.
type CreateRequest struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`

	parsedEntityID id.EntityID
}

// Validate validates and parses the request.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.EntityID = strings.TrimSpace(r.EntityID)
	if r.EntityID == "" {
		return dErrors.New(dErrors.CodeValidation, "entity_id is required")
	}
	entityID, err := id.ParseEntityID(r.EntityID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "entity_id must be a valid UUID")
	}
	r.parsedEntityID = entityID

	r.Kind = strings.TrimSpace(r.Kind)
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	return nil
}

// ParsedEntityID returns the validated entity ID.
func (r *CreateRequest) ParsedEntityID() id.EntityID {
	return r.parsedEntityID
}

// ChecklistItem is one caller-supplied checklist entry.
type ChecklistItem struct {
	Key       string `json:"key"`
	Required  bool   `json:"required"`
	Satisfied bool   `json:"satisfied"`
}

// AdvanceRequest is the HTTP request body for POST /lifecycle/{entityID}/advance.
type AdvanceRequest struct {
	Checklist []ChecklistItem `json:"checklist"`
	Notes     string          `json:"notes"`
}

// Validate applies size limits; checklist semantics (duplicate keys and the
// gate itself) are the evaluator's job.
func (r *AdvanceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.Newf(dErrors.CodeValidation, "notes must be at most %d characters", maxNotesLength)
	}
	return nil
}

// ToChecklist converts the wire items to the domain checklist.
func (r *AdvanceRequest) ToChecklist() checklist.Checklist {
	items := make([]checklist.Item, 0, len(r.Checklist))
	for _, item := range r.Checklist {
		items = append(items, checklist.Item{
			Key:       item.Key,
			Required:  item.Required,
			Satisfied: item.Satisfied,
		})
	}
	return checklist.Checklist{Items: items}
}
