// Package handler exposes standalone checklist evaluation over HTTP so
// clients can preview gate state without attempting an advance.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"civicflow/internal/checklist"
	dErrors "civicflow/pkg/domain-errors"
	"civicflow/pkg/platform/httputil"
	"civicflow/pkg/requestcontext"
)

// Handler wires the checklist evaluator to HTTP.
type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Register mounts checklist endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checklist/evaluate", h.HandleEvaluate)
}

// EvaluateRequest is the HTTP request body for POST /checklist/evaluate.
type EvaluateRequest struct {
	Items []ItemRequest `json:"items"`
}

// ItemRequest is one checklist entry on the wire.
type ItemRequest struct {
	Key       string `json:"key"`
	Required  bool   `json:"required"`
	Satisfied bool   `json:"satisfied"`
}

// EvaluateResponse is the HTTP response for POST /checklist/evaluate.
type EvaluateResponse struct {
	CompletionRatio float64  `json:"completion_ratio"`
	GatePassed      bool     `json:"gate_passed"`
	MissingRequired []string `json:"missing_required,omitempty"`
}

// HandleEvaluate handles POST /checklist/evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	items := make([]checklist.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checklist.Item{
			Key:       item.Key,
			Required:  item.Required,
			Satisfied: item.Satisfied,
		})
	}

	result, err := checklist.Evaluate(checklist.Checklist{Items: items})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid checklist"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, EvaluateResponse{
		CompletionRatio: result.CompletionRatio,
		GatePassed:      result.GatePassed,
		MissingRequired: result.MissingRequired,
	})
}
