package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fake Elasticsearch
// ==========================

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	f.mu.Unlock()

	status, payload := f.respond(r)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func (f *fakeES) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestIndex(t *testing.T, respond func(r *http.Request) (int, string)) (*Index, *fakeES) {
	t.Helper()
	fake := &fakeES{respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndex(client, "complaints", logger.NewTestLogger(t)), fake
}

func searchFailed(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSearchFailed), "got %v", err)
}

// ==========================
// Indexing
// ==========================

func TestIndex_Put(t *testing.T) {
	idx, fake := newTestIndex(t, func(r *http.Request) (int, string) {
		return http.StatusCreated, `{"result":"created"}`
	})

	sub := "Wifi"
	name := "John"
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	err := idx.ComplaintChanged(context.Background(), models.Complaint{
		ID: 7, PhoneNumber: "919876543210@c.us", Category: "IT", Subcategory: &sub,
		Address: "Hostel 4", Description: "No signal", Status: models.StatusInProgress,
		FieldWorkerAssigned: &name, CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/complaints/_doc/7", req.Path)
	assert.Equal(t, "in_progress", req.Body["status"])
	assert.Equal(t, "Wifi", req.Body["subcategory"])
	assert.Equal(t, "John", req.Body["field_worker_assigned"])
	assert.NotContains(t, req.Body, "phone_number")
}

func TestIndex_Put_Rejected(t *testing.T) {
	idx, _ := newTestIndex(t, func(r *http.Request) (int, string) {
		return http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`
	})

	searchFailed(t, idx.Put(context.Background(), models.Complaint{ID: 1, Status: models.StatusPending}))
}

func TestIndex_EnsureIndex(t *testing.T) {
	t.Run("creates missing index", func(t *testing.T) {
		idx, fake := newTestIndex(t, func(r *http.Request) (int, string) {
			if r.Method == http.MethodHead {
				return http.StatusNotFound, ``
			}
			return http.StatusOK, `{"acknowledged":true}`
		})

		require.NoError(t, idx.EnsureIndex(context.Background()))

		req := fake.last()
		assert.Equal(t, http.MethodPut, req.Method)
		assert.Equal(t, "/complaints", req.Path)
		props := req.Body["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
		assert.Equal(t, "keyword", props["status"].(map[string]interface{})["type"])
	})

	t.Run("existing index untouched", func(t *testing.T) {
		idx, fake := newTestIndex(t, func(r *http.Request) (int, string) {
			return http.StatusOK, ``
		})

		require.NoError(t, idx.EnsureIndex(context.Background()))
		assert.Len(t, fake.requests, 1)
		assert.Equal(t, http.MethodHead, fake.last().Method)
	})
}

// ==========================
// Search
// ==========================

func TestBuildQuery(t *testing.T) {
	q := buildQuery(Query{Text: " wifi ", Status: models.StatusPending, Category: "IT"})

	boolQ := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQ["must"].([]interface{})
	filter := boolQ["filter"].([]interface{})

	require.Len(t, must, 1)
	mm := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "wifi", mm["query"])
	assert.Len(t, filter, 2)

	empty := buildQuery(Query{})
	emptyMust := empty["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	assert.Contains(t, emptyMust[0], "match_all")
}

func TestClampSize(t *testing.T) {
	assert.Equal(t, 20, clampSize(0))
	assert.Equal(t, 5, clampSize(5))
	assert.Equal(t, 100, clampSize(500))
}

func TestIndex_Search(t *testing.T) {
	idx, fake := newTestIndex(t, func(r *http.Request) (int, string) {
		return http.StatusOK, `{
			"took": 3,
			"hits": {
				"total": {"value": 3, "relation": "eq"},
				"max_score": 2.5,
				"hits": [
					{"_id": "12", "_score": 2.5, "_source": {}},
					{"_id": "legacy-x", "_score": 1.1, "_source": {}},
					{"_id": "4", "_score": 0.7, "_source": {}}
				]
			}
		}`
	})

	res, err := idx.Search(context.Background(), Query{Text: "leak", Category: "Plumbing", Size: 5})
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, []Hit{{ComplaintID: 12, Score: 2.5}, {ComplaintID: 4, Score: 0.7}}, res.Hits)

	req := fake.last()
	assert.Equal(t, "/complaints/_search", req.Path)
	assert.Contains(t, req.Query, "size=5")
}

func TestIndex_Search_Errors(t *testing.T) {
	idx, _ := newTestIndex(t, func(r *http.Request) (int, string) {
		return http.StatusInternalServerError, `{"error":"shard failure"}`
	})

	_, err := idx.Search(context.Background(), Query{Text: "x"})
	searchFailed(t, err)

	_, err = idx.Search(context.Background(), Query{Status: "archived"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}
