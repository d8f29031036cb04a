// Package handler exposes the audit trail to admin surfaces.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "civicflow/pkg/domain-errors"
	audit "civicflow/pkg/platform/audit"
	"civicflow/pkg/platform/httputil"
	"civicflow/pkg/requestcontext"
)

const defaultLimit = 50

// Trail is the read side of the audit publisher.
type Trail interface {
	ListByEntity(ctx context.Context, entityID string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler serves audit listings.
type Handler struct {
	trail  Trail
	logger *slog.Logger
}

func New(trail Trail, logger *slog.Logger) *Handler {
	return &Handler{trail: trail, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.HandleList)
}

// EventResponse is the HTTP shape of one audit record.
type EventResponse struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	EntityID  string    `json:"entity_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	FromStage string    `json:"from_stage,omitempty"`
	ToStage   string    `json:"to_stage,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Device    string    `json:"device,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// ListResponse is the HTTP response for GET /audit/events.
type ListResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleList handles GET /audit/events. With entity_id set it returns that
// entity's trail; otherwise the most recent events up to limit.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var (
		events []audit.Event
		err    error
	)
	if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
		events, err = h.trail.ListByEntity(ctx, entityID)
	} else {
		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, parseErr := strconv.Atoi(raw)
			if parseErr != nil || parsed < 1 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = parsed
		}
		events, err = h.trail.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "audit listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, EventResponse{
			Category:  string(event.Category),
			Timestamp: event.Timestamp,
			EntityID:  event.EntityID,
			Actor:     event.Actor,
			Action:    event.Action,
			FromStage: event.FromStage,
			ToStage:   event.ToStage,
			Decision:  event.Decision,
			Reason:    event.Reason,
			ClientIP:  event.ClientIP,
			Device:    event.Device,
			Notes:     event.Notes,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Events: out})
}
