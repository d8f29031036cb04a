package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicflow/internal/lifecycle/models"
	"civicflow/internal/lifecycle/service"
	"civicflow/internal/lifecycle/store"
	id "civicflow/pkg/domain"
	"civicflow/pkg/requestcontext"
	"civicflow/pkg/testutil"
)

func newLifecycleRouter(t *testing.T, actor id.UserID) http.Handler {
	t.Helper()
	svc := service.New(store.NewInMemory(), models.DefaultRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	if !actor.IsNil() {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(requestcontext.WithActorID(req.Context(), actor)))
			})
		})
	}
	h.Register(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, path, payload)
	return testutil.DoRequest(router, req)
}

func TestAuthenticationRequired(t *testing.T) {
	router := newLifecycleRouter(t, id.UserID{})

	rec := postJSON(t, router, "/lifecycle", map[string]string{
		"entity_id": id.NewEntityID().String(),
		"kind":      "facility",
	})
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestCreateAdvanceAndGet(t *testing.T) {
	actor := id.NewUserID()
	router := newLifecycleRouter(t, actor)
	entityID := id.NewEntityID().String()

	testutil.Given(t, "a facility instance at its initial stage", func(t *testing.T) {
		rec := postJSON(t, router, "/lifecycle", map[string]string{
			"entity_id": entityID,
			"kind":      "facility",
		})
		testutil.AssertStatus(t, rec, http.StatusCreated)

		created := testutil.UnmarshalResponse[InstanceResponse](t, rec)
		assert.Equal(t, "setup", created.CurrentStage)
		assert.Equal(t, 1, created.Version)
	})

	testutil.When(t, "the actor advances with a passing checklist", func(t *testing.T) {
		rec := postJSON(t, router, "/lifecycle/"+entityID+"/advance", map[string]any{
			"checklist": []map[string]any{
				{"key": "permits_filed", "required": true, "satisfied": true},
			},
			"notes": "permits verified",
		})
		testutil.AssertStatus(t, rec, http.StatusOK)

		advanced := testutil.UnmarshalResponse[AdvanceResponse](t, rec)
		assert.Equal(t, "advanced", advanced.Outcome)
		assert.Equal(t, "accreditation_pending", advanced.Instance.CurrentStage)
	})

	testutil.Then(t, "the fetched instance carries the transition", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/lifecycle/"+entityID, nil)
		rec := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rec, http.StatusOK)

		fetched := testutil.UnmarshalResponse[InstanceResponse](t, rec)
		require.Len(t, fetched.History, 1)
		assert.Equal(t, actor.String(), fetched.History[0].Actor)
		assert.Equal(t, "permits verified", fetched.History[0].Notes)
	})
}

// The request-time middleware pins the clock; created_at must come from it,
// not from a second time.Now() inside the service.
func TestCreateUsesRequestTime(t *testing.T) {
	router := newLifecycleRouter(t, id.NewUserID())
	pinned := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/lifecycle", map[string]string{
		"entity_id": id.NewEntityID().String(),
		"kind":      "facility",
	})
	rec := testutil.DoRequest(router, testutil.WithRequestTime(req, pinned))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	created := testutil.UnmarshalResponse[InstanceResponse](t, rec)
	assert.True(t, created.CreatedAt.Equal(pinned), "created_at %v != pinned %v", created.CreatedAt, pinned)
}

func TestAdvanceBlockedChecklist(t *testing.T) {
	router := newLifecycleRouter(t, id.NewUserID())
	entityID := id.NewEntityID().String()

	rec := postJSON(t, router, "/lifecycle", map[string]string{
		"entity_id": entityID,
		"kind":      "test_zone",
	})
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = postJSON(t, router, "/lifecycle/"+entityID+"/advance", map[string]any{
		"checklist": []map[string]any{
			{"key": "safety_review", "required": true, "satisfied": false},
		},
	})
	testutil.AssertStatus(t, rec, http.StatusOK)

	resp := testutil.UnmarshalResponse[AdvanceResponse](t, rec)
	assert.Equal(t, "checklist_incomplete", resp.Outcome)
	assert.Equal(t, []string{"safety_review"}, resp.MissingRequired)
	assert.Equal(t, "draft", resp.Instance.CurrentStage, "blocked advance must not move the stage")
}

func TestRequestValidation(t *testing.T) {
	router := newLifecycleRouter(t, id.NewUserID())

	t.Run("bad entity id on create", func(t *testing.T) {
		rec := postJSON(t, router, "/lifecycle", map[string]string{
			"entity_id": "not-a-uuid",
			"kind":      "facility",
		})
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("unknown kind", func(t *testing.T) {
		rec := postJSON(t, router, "/lifecycle", map[string]string{
			"entity_id": id.NewEntityID().String(),
			"kind":      "spaceport",
		})
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("bad entity id on get", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/lifecycle/not-a-uuid", nil)
		rec := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("unknown entity on advance", func(t *testing.T) {
		rec := postJSON(t, router, "/lifecycle/"+id.NewEntityID().String()+"/advance", map[string]any{})
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/lifecycle", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}
