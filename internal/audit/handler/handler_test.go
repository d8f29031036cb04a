package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civicflow/pkg/domain"
	audit "civicflow/pkg/platform/audit"
	memstore "civicflow/pkg/platform/audit/store/memory"
	"civicflow/pkg/testutil"
)

func newRouter(t *testing.T, trail Trail) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	New(trail, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithActorID(testutil.NewJSONRequest(t, http.MethodGet, path, nil), id.NewUserID())
	return testutil.DoRequest(router, req)
}

func TestHandleList(t *testing.T) {
	store := memstore.New()
	publisher := audit.NewPublisher(store)
	ctx := context.Background()

	entityID := id.NewEntityID().String()
	require.NoError(t, publisher.Emit(ctx, audit.Event{EntityID: entityID, Action: "stage_advanced", FromStage: "setup", ToStage: "accreditation_pending"}))
	require.NoError(t, publisher.Emit(ctx, audit.Event{EntityID: id.NewEntityID().String(), Action: "admission_submitted"}))

	router := newRouter(t, publisher)

	t.Run("by entity", func(t *testing.T) {
		rec := get(t, router, "/audit/events?entity_id="+entityID)
		testutil.AssertStatus(t, rec, http.StatusOK)

		resp := testutil.UnmarshalResponse[ListResponse](t, rec)
		require.Len(t, resp.Events, 1)
		assert.Equal(t, "stage_advanced", resp.Events[0].Action)
	})

	t.Run("recent with limit", func(t *testing.T) {
		rec := get(t, router, "/audit/events?limit=1")
		testutil.AssertStatus(t, rec, http.StatusOK)

		resp := testutil.UnmarshalResponse[ListResponse](t, rec)
		assert.Len(t, resp.Events, 1)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := get(t, router, "/audit/events?limit=zero")
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestHandleListRequiresAuth(t *testing.T) {
	router := newRouter(t, audit.NewPublisher(memstore.New()))

	req := testutil.NewJSONRequest(t, http.MethodGet, "/audit/events", nil)
	rec := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}
