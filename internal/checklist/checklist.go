// Package checklist computes completion and gating for stage checklists.
// Evaluation is a pure function: item values are caller-supplied, never
// inferred, and nothing here touches storage.
package checklist

import (
	"errors"
	"fmt"
)

// ErrInvalidChecklist marks a malformed checklist (duplicate keys, empty
// keys). This is a programmer error on the caller's side; it is never
// retried and never silently repaired.
var ErrInvalidChecklist = errors.New("invalid checklist")

// Item is one named boolean requirement within a checklist.
type Item struct {
	Key       string `json:"key"`
	Required  bool   `json:"required"`
	Satisfied bool   `json:"satisfied"`
}

// Checklist is the ordered set of items for one (entity, stage) pair.
type Checklist struct {
	Items []Item `json:"items"`
}

// Result holds the derived values the UI and the state machine consume.
type Result struct {
	// CompletionRatio is satisfied/total in [0,1]. Empty checklist yields 0.
	CompletionRatio float64 `json:"completion_ratio"`
	// GatePassed is true when every required item is satisfied. An empty
	// checklist passes: nothing required blocks nothing. Callers needing a
	// non-empty checklist enforce that separately.
	GatePassed bool `json:"gate_passed"`
	// MissingRequired lists the keys of unsatisfied required items, in
	// checklist order, for UI feedback.
	MissingRequired []string `json:"missing_required,omitempty"`
}

// Evaluate computes the completion ratio and advance gate for a checklist.
func Evaluate(c Checklist) (Result, error) {
	seen := make(map[string]struct{}, len(c.Items))
	satisfied := 0
	var missing []string

	for _, item := range c.Items {
		if item.Key == "" {
			return Result{}, fmt.Errorf("%w: item with empty key", ErrInvalidChecklist)
		}
		if _, dup := seen[item.Key]; dup {
			return Result{}, fmt.Errorf("%w: duplicate key %q", ErrInvalidChecklist, item.Key)
		}
		seen[item.Key] = struct{}{}

		if item.Satisfied {
			satisfied++
		} else if item.Required {
			missing = append(missing, item.Key)
		}
	}

	result := Result{GatePassed: len(missing) == 0, MissingRequired: missing}
	if len(c.Items) > 0 {
		result.CompletionRatio = float64(satisfied) / float64(len(c.Items))
	}
	return result, nil
}
