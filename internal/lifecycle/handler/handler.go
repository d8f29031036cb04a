// Package handler exposes the lifecycle engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civicflow/internal/checklist"
	"civicflow/internal/lifecycle/models"
	"civicflow/internal/lifecycle/service"
	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
	"civicflow/pkg/platform/httputil"
	"civicflow/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	CreateInstance(ctx context.Context, entityID id.EntityID, kind id.EntityKind) (*models.Instance, error)
	Get(ctx context.Context, entityID id.EntityID) (*models.Instance, error)
	Advance(ctx context.Context, entityID id.EntityID, list checklist.Checklist, notes string) (*service.AdvanceResult, error)
}

// Handler wires lifecycle endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a lifecycle handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts lifecycle endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/lifecycle", h.HandleCreate)
	r.Get("/lifecycle/{entityID}", h.HandleGet)
	r.Post("/lifecycle/{entityID}/advance", h.HandleAdvance)
}

// HandleCreate handles POST /lifecycle requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	instance, err := h.service.CreateInstance(ctx, req.ParsedEntityID(), id.EntityKind(req.Kind))
	if err != nil {
		h.logger.ErrorContext(ctx, "lifecycle create failed",
			"request_id", requestID,
			"entity_id", req.EntityID,
			"kind", req.Kind,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromInstance(instance))
}

// HandleGet handles GET /lifecycle/{entityID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "entity id must be a valid UUID"))
		return
	}

	instance, err := h.service.Get(ctx, entityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromInstance(instance))
}

// HandleAdvance handles POST /lifecycle/{entityID}/advance requests.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "entity id must be a valid UUID"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[AdvanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Advance(ctx, entityID, req.ToChecklist(), req.Notes)
	if err != nil {
		h.logger.ErrorContext(ctx, "lifecycle advance failed",
			"request_id", requestID,
			"entity_id", entityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "lifecycle advance handled",
		"request_id", requestID,
		"entity_id", entityID,
		"outcome", result.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// A blocked checklist is a 200 with outcome detail, not an error.
	httputil.WriteJSON(w, http.StatusOK, FromAdvanceResult(result))
}
