// Package handler exposes the admission decision service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"civicflow/internal/admission/models"
	"civicflow/internal/admission/service"
	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
	"civicflow/pkg/platform/httputil"
	"civicflow/pkg/requestcontext"
)

// Service defines the admission operations the handler needs.
type Service interface {
	Submit(ctx context.Context, params service.SubmitParams) (*models.RoleRequest, error)
	Decide(ctx context.Context, requestID id.RequestID, approve bool, reason string) (*models.RoleRequest, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.RoleRequest, error)
}

// Handler wires admission endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an admission handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts admission endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admission/requests", h.HandleSubmit)
	r.Get("/admission/requests", h.HandleList)
	r.Post("/admission/requests/{requestID}/decision", h.HandleDecide)
}

// HandleSubmit handles POST /admission/requests. The requester is the
// authenticated actor.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.service.Submit(ctx, service.SubmitParams{
		UserID:         actor,
		UserEmail:      req.UserEmail,
		Role:           req.ParsedRole(),
		OrganizationID: req.ParsedOrganizationID(),
		Justification:  req.Justification,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "role request submission failed",
			"request_id", requestID,
			"user_id", actor,
			"role", req.Role,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "role request submitted",
		"request_id", requestID,
		"role_request_id", request.ID,
		"status", request.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, FromRequest(request))
}

// HandleList handles GET /admission/requests?status=pending. Defaults to the
// pending review queue.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	raw := r.URL.Query().Get("status")
	status := models.StatusPending
	if raw != "" {
		parsed, ok := models.ParseStatus(raw)
		if !ok {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw))
			return
		}
		status = parsed
	}

	requests, err := h.service.ListByStatus(ctx, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRequests(requests))
}

// HandleDecide handles POST /admission/requests/{requestID}/decision.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.RequestID(ctx)

	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "request id must be a valid UUID"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.service.Decide(ctx, requestID, req.Approve(), req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "role request decision failed",
			"request_id", correlationID,
			"role_request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRequest(request))
}
