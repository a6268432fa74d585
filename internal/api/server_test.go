package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/observability"
	"complaint-desk/internal/complaint"
	"complaint-desk/internal/fieldworker"
	"complaint-desk/internal/models"
	"complaint-desk/internal/reporting"
	"complaint-desk/internal/search"
	"complaint-desk/internal/store"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)

type MockSearcher struct {
	SearchFunc func(ctx context.Context, q search.Query) (search.Result, error)
}

func (m *MockSearcher) Search(ctx context.Context, q search.Query) (search.Result, error) {
	return m.SearchFunc(ctx, q)
}

type MockDeadLetters struct {
	events    []models.NotificationEvent
	err       error
	lastLimit int64
}

func (m *MockDeadLetters) DeadLetters(ctx context.Context, limit int64) ([]models.NotificationEvent, error) {
	m.lastLimit = limit
	return m.events, m.err
}

type testEnv struct {
	store   *store.Memory
	handler http.Handler
}

func newTestEnv(t *testing.T, searcher Searcher, checks map[string]CheckFunc) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(d *Deps) {
		d.Search = searcher
		d.Checks = checks
	})
}

func newTestEnvWith(t *testing.T, configure func(*Deps)) *testEnv {
	t.Helper()
	st := store.NewMemory(store.WithCategories("IT", "Plumbing"), store.WithClock(func() time.Time { return testNow }))
	st.Seed(
		[]models.Complaint{
			{ID: 1, PhoneNumber: "919876543210@c.us", Category: "IT", Description: "No wifi", Status: models.StatusPending, CreatedAt: testNow.Add(-2 * time.Hour)},
			{ID: 2, PhoneNumber: "919812345678@c.us", Category: "Plumbing", Description: "Leak", Status: models.StatusPending, CreatedAt: testNow.Add(-time.Hour)},
		},
		[]models.FieldWorker{
			{ID: 5, Name: "John", PhoneNumber: "1234567890", MasterCategory: "IT", WorkStatus: true, Version: 1},
			{ID: 6, Name: "Asha", PhoneNumber: "9876543210", MasterCategory: "Plumbing", WorkStatus: true, Version: 1},
		},
	)

	log := logger.NewTestLogger(t)
	coord := complaint.NewCoordinator(complaint.Config{}, st, log).WithClock(func() time.Time { return testNow })
	deps := Deps{
		Coordinator: coord,
		Registry:    fieldworker.NewRegistry(st, fieldworker.PolicyBlock, log),
		Reporting:   reporting.NewService(reporting.Config{}, st, nil, log).WithClock(func() time.Time { return testNow }),
		Logger:      log,
	}
	configure(&deps)
	srv := NewServer(Config{AllowedOrigins: []string{"http://localhost:5173"}}, deps)
	return &testEnv{store: st, handler: srv.Routes()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body.Error.Code
}

// ==========================
// Complaint Routes
// ==========================

func TestListComplaints(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/complaints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Complaints []models.Complaint `json:"complaints"`
		Count      int                `json:"count"`
	}
	decode(t, rec, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, int64(2), body.Complaints[0].ID, "newest first")

	rec = env.do(t, http.MethodGet, "/api/complaints?category=Plumbing", "")
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Count)

	rec = env.do(t, http.MethodGet, "/api/complaints?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCodeOf(t, rec))
}

func TestGetComplaint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/complaints/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var c models.Complaint
	decode(t, rec, &c)
	assert.Equal(t, "No wifi", c.Description)

	rec = env.do(t, http.MethodGet, "/api/complaints/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "COMPLAINT_NOT_FOUND", errorCodeOf(t, rec))

	rec = env.do(t, http.MethodGet, "/api/complaints/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateComplaint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/complaints",
		`{"phone_number":"919800000000@c.us","category":"IT","address":"Block C","description":"Printer jammed"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var c models.Complaint
	decode(t, rec, &c)
	assert.Equal(t, int64(3), c.ID)
	assert.Equal(t, models.StatusPending, c.Status)

	rec = env.do(t, http.MethodPost, "/api/complaints", `{"phone_number":"919800000000@c.us"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/complaints", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignAndComplete(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/complaints/1/assign", `{"fieldWorkerName":"John","deadline":"2024-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var c models.Complaint
	decode(t, rec, &c)
	assert.Equal(t, models.StatusInProgress, c.Status)
	require.NotNil(t, c.FieldWorkerAssigned)
	assert.Equal(t, "John", *c.FieldWorkerAssigned)
	require.NotNil(t, c.DeadlineDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *c.DeadlineDate)

	w, err := env.store.GetFieldWorker(ctx, 5)
	require.NoError(t, err)
	assert.False(t, w.WorkStatus)

	rec = env.do(t, http.MethodPost, "/api/complaints/1/assign", `{"fieldWorkerId":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCodeOf(t, rec))

	rec = env.do(t, http.MethodPost, "/api/complaints/1/complete", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &c)
	assert.Equal(t, models.StatusCompleted, c.Status)

	w, err = env.store.GetFieldWorker(ctx, 5)
	require.NoError(t, err)
	assert.True(t, w.WorkStatus)
}

func TestAssign_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"category mismatch", "/api/complaints/1/assign", `{"fieldWorkerId":6}`, http.StatusConflict, "CATEGORY_MISMATCH"},
		{"unknown worker", "/api/complaints/1/assign", `{"fieldWorkerId":42}`, http.StatusNotFound, "WORKER_NOT_FOUND"},
		{"bad deadline", "/api/complaints/1/assign", `{"fieldWorkerId":5,"deadline":"soon"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"empty body", "/api/complaints/1/assign", ``, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"complete pending", "/api/complaints/2/complete", ``, http.StatusConflict, "INVALID_TRANSITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCodeOf(t, rec))
		})
	}
}

func TestSearchComplaints(t *testing.T) {
	var got search.Query
	env := newTestEnv(t, &MockSearcher{SearchFunc: func(ctx context.Context, q search.Query) (search.Result, error) {
		got = q
		return search.Result{Total: 2, Hits: []search.Hit{
			{ComplaintID: 2, Score: 1.5},
			{ComplaintID: 77, Score: 0.3},
		}}, nil
	}}, nil)

	rec := env.do(t, http.MethodGet, "/api/complaints/search?q=leak&category=Plumbing&size=5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, search.Query{Text: "leak", Category: "Plumbing", Size: 5}, got)

	var body struct {
		Total int64       `json:"total"`
		Hits  []searchHit `json:"hits"`
	}
	decode(t, rec, &body)
	assert.Equal(t, int64(2), body.Total)
	require.Len(t, body.Hits, 1, "stale hit dropped")
	assert.Equal(t, "Leak", body.Hits[0].Complaint.Description)
}

func TestSearchComplaints_Errors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		rec := env.do(t, http.MethodGet, "/api/complaints/search?q=leak", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("backend failure", func(t *testing.T) {
		env := newTestEnv(t, &MockSearcher{SearchFunc: func(ctx context.Context, q search.Query) (search.Result, error) {
			return search.Result{}, apperrors.NewSearchFailedError("search", errors.New("shard failure"))
		}}, nil)
		rec := env.do(t, http.MethodGet, "/api/complaints/search?q=leak", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("bad size", func(t *testing.T) {
		env := newTestEnv(t, &MockSearcher{}, nil)
		rec := env.do(t, http.MethodGet, "/api/complaints/search?size=many", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// ==========================
// Field Worker Routes
// ==========================

func TestFieldWorkers(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/field-workers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		ByCategory map[string][]models.FieldWorker `json:"byCategory"`
		Count      int                             `json:"count"`
	}
	decode(t, rec, &listed)
	assert.Equal(t, 2, listed.Count)
	assert.Len(t, listed.ByCategory["IT"], 1)

	rec = env.do(t, http.MethodGet, "/api/field-workers/eligible?category=IT", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var eligible struct {
		Workers []models.FieldWorker `json:"workers"`
	}
	decode(t, rec, &eligible)
	require.Len(t, eligible.Workers, 1)
	assert.Equal(t, "John", eligible.Workers[0].Name)

	rec = env.do(t, http.MethodGet, "/api/field-workers/eligible", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/field-workers",
		`{"name":"Ravi","phone_number":"5556667777","master_category":"IT"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.FieldWorker
	decode(t, rec, &created)
	assert.True(t, created.WorkStatus)

	rec = env.do(t, http.MethodDelete, "/api/field-workers/6", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRemoveFieldWorker_Busy(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/complaints/1/assign", `{"fieldWorkerId":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/field-workers/5", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "WORKER_BUSY", errorCodeOf(t, rec))
}

// ==========================
// Dashboard, Categories, Probes
// ==========================

func TestDashboardAndCategories(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.DashboardSummary
	decode(t, rec, &summary)
	assert.Equal(t, 2, summary.Status.Total)
	assert.Equal(t, 2, summary.Status.Open)

	rec = env.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Plumbing"`)
}

func TestProbes(t *testing.T) {
	env := newTestEnv(t, nil, map[string]CheckFunc{
		"store": func(ctx context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/ready", "").Code)

	env = newTestEnv(t, nil, map[string]CheckFunc{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rec := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/complaints", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/nothing", "").Code)
}

// ==========================
// Notifications
// ==========================

func TestListDeadLetters(t *testing.T) {
	dead := &MockDeadLetters{events: []models.NotificationEvent{
		{ID: "evt-1", ComplaintID: 1, Status: models.StatusInProgress, Attempts: 5, LastError: "status 503"},
	}}
	env := newTestEnvWith(t, func(d *Deps) { d.DeadLetters = dead })

	rec := env.do(t, http.MethodGet, "/api/notifications/dead-letters?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []models.NotificationEvent `json:"events"`
		Count  int                        `json:"count"`
	}
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "evt-1", body.Events[0].ID)
	assert.Equal(t, int64(10), dead.lastLimit)

	rec = env.do(t, http.MethodGet, "/api/notifications/dead-letters?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	dead.err = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/api/notifications/dead-letters", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int64(0), dead.lastLimit)
}

func TestListDeadLetters_Disabled(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/notifications/dead-letters", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ==========================
// Middleware
// ==========================

func TestChain_PanicRecordedAsServerError(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := observability.NewWithRegisterer("complaint-desk-test", reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	srv := NewServer(Config{}, Deps{Obs: obs, Logger: logger.NewTestLogger(t)})
	h := srv.chain("/boom").ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	var statuses []string
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "http_server_requests") {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" {
					statuses = append(statuses, l.GetValue())
				}
			}
		}
	}
	assert.Contains(t, statuses, "500")
}
