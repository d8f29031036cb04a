package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"civicflow/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	New(slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func evaluate(t *testing.T, router http.Handler, payload any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/checklist/evaluate", payload)
	return testutil.DoRequest(router, req)
}

func TestHandleEvaluate(t *testing.T) {
	router := newRouter(t)

	t.Run("mixed checklist", func(t *testing.T) {
		rec := evaluate(t, router, map[string]any{
			"items": []map[string]any{
				{"key": "zoning", "required": true, "satisfied": true},
				{"key": "safety", "required": true, "satisfied": false},
				{"key": "signage", "required": false, "satisfied": false},
			},
		})
		testutil.AssertStatus(t, rec, http.StatusOK)

		resp := testutil.UnmarshalResponse[EvaluateResponse](t, rec)
		assert.False(t, resp.GatePassed, "unsatisfied required item blocks the gate")
		assert.Equal(t, []string{"safety"}, resp.MissingRequired)
	})

	t.Run("empty checklist passes with zero ratio", func(t *testing.T) {
		rec := evaluate(t, router, map[string]any{"items": []map[string]any{}})
		testutil.AssertStatus(t, rec, http.StatusOK)

		resp := testutil.UnmarshalResponse[EvaluateResponse](t, rec)
		assert.True(t, resp.GatePassed)
		assert.Zero(t, resp.CompletionRatio)
	})

	t.Run("duplicate keys rejected", func(t *testing.T) {
		rec := evaluate(t, router, map[string]any{
			"items": []map[string]any{
				{"key": "zoning", "required": true, "satisfied": true},
				{"key": "zoning", "required": false, "satisfied": true},
			},
		})
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}
