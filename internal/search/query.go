package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultSize = 20
	maxSize     = 100
)

type Query struct {
	Text     string                 `json:"q"`
	Status   models.ComplaintStatus `json:"status,omitempty"`
	Category string                 `json:"category,omitempty"`
	Size     int                    `json:"size,omitempty"`
}

type Hit struct {
	ComplaintID int64   `json:"complaintId"`
	Score       float64 `json:"score"`
}

type Result struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

// buildQuery renders q as an Elasticsearch bool query. Text is matched
// against description and address; status and category are exact filters.
func buildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"description^2", "address", "subcategory"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	if q.Status != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": string(q.Status)},
		})
	}
	if q.Category != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"category": q.Category},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
	}
}

func clampSize(n int) int {
	if n < 1 {
		return defaultSize
	}
	if n > maxSize {
		return maxSize
	}
	return n
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching complaint ids ordered by relevance.
func (i *Index) Search(ctx context.Context, q Query) (Result, error) {
	if q.Status != "" && !q.Status.Valid() {
		return Result{}, apperrors.NewValidationFailedError(fmt.Sprintf("unknown status %q", q.Status))
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return Result{}, apperrors.NewSearchFailedError("encode query", err)
	}
	size := clampSize(q.Size)

	res, err := esapi.SearchRequest{
		Index: []string{i.name},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}.Do(ctx, i.client)
	if err != nil {
		return Result{}, apperrors.NewSearchFailedError("search", err)
	}
	defer drain(res)
	if res.IsError() {
		return Result{}, apperrors.NewSearchFailedError("search", fmt.Errorf("%s", res.String()))
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return Result{}, apperrors.NewSearchFailedError("decode response", err)
	}

	out := Result{Total: decoded.Hits.Total.Value, Hits: make([]Hit, 0, len(decoded.Hits.Hits))}
	for _, h := range decoded.Hits.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			i.logger.Warn("skipping search hit with foreign id", map[string]interface{}{"id": h.ID})
			continue
		}
		out.Hits = append(out.Hits, Hit{ComplaintID: id, Score: h.Score})
	}
	return out, nil
}
