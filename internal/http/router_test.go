package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"civicflow/internal/platform/metrics"
	"civicflow/internal/token"
)

type fakeChecker struct {
	err error
}

func (c *fakeChecker) Health(context.Context) error {
	return c.err
}

func newDeps(checks map[string]HealthChecker) Deps {
	return Deps{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   nil,
		Validator: token.NewService("test-key"),
		Checks:    checks,
	}
}

func TestHealthz(t *testing.T) {
	t.Run("healthy backends", func(t *testing.T) {
		router := NewRouter(newDeps(map[string]HealthChecker{
			"postgres": &fakeChecker{},
			"redis":    nil, // unconfigured backend is skipped
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var body struct {
			Backends map[string]string `json:"backends"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Backends["postgres"] != "ok" {
			t.Fatalf("expected postgres ok, got %+v", body.Backends)
		}
		if _, present := body.Backends["redis"]; present {
			t.Fatalf("expected nil checker to be skipped")
		}
	})

	t.Run("unhealthy backend", func(t *testing.T) {
		router := NewRouter(newDeps(map[string]HealthChecker{
			"postgres": &fakeChecker{err: errors.New("connection refused")},
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(newDeps(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

// Metrics must be usable as middleware even when nil so tests and memory-only
// builds skip registration.
func TestNilMetricsMiddleware(t *testing.T) {
	var m *metrics.Metrics
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through with nil metrics, got %d", rec.Code)
	}
}
