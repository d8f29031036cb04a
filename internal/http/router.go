// Package http assembles the engine's router: middleware chain, module
// handlers, health, and metrics.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civicflow/internal/platform/metrics"
	"civicflow/internal/platform/middleware"
	"civicflow/pkg/platform/httputil"
)

// Registerer is implemented by every module handler.
type Registerer interface {
	Register(r chi.Router)
}

// HealthChecker reports backend reachability for /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router needs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.TokenValidator

	Handlers []Registerer

	// Health checks by backend name; nil checkers are skipped so memory-only
	// deployments stay healthy.
	Checks map[string]HealthChecker
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.ActorFromToken(deps.Validator, deps.Logger))

	for _, handler := range deps.Handlers {
		handler.Register(r)
	}

	r.Get("/healthz", healthz(deps.Checks))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthz(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		backends := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(ctx); err != nil {
				backends[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			backends[name] = "ok"
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status":   http.StatusText(status),
			"backends": backends,
		})
	}
}
