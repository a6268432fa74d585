// Package search keeps an Elasticsearch index of complaints for free-text
// lookup from the admin panel.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                    {"type": "long"},
      "category":              {"type": "keyword"},
      "subcategory":           {"type": "text"},
      "status":                {"type": "keyword"},
      "address":               {"type": "text"},
      "description":           {"type": "text"},
      "field_worker_assigned": {"type": "keyword"},
      "created_at":            {"type": "date"},
      "updated_at":            {"type": "date"}
    }
  }
}`

// document is the indexed shape of a complaint. Phone numbers are not indexed.
type document struct {
	ID                  int64     `json:"id"`
	Category            string    `json:"category"`
	Subcategory         string    `json:"subcategory,omitempty"`
	Status              string    `json:"status"`
	Address             string    `json:"address"`
	Description         string    `json:"description"`
	FieldWorkerAssigned string    `json:"field_worker_assigned,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toDocument(c models.Complaint) document {
	d := document{
		ID:          c.ID,
		Category:    c.Category,
		Status:      string(c.Status),
		Address:     c.Address,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.Subcategory != nil {
		d.Subcategory = *c.Subcategory
	}
	if c.FieldWorkerAssigned != nil {
		d.FieldWorkerAssigned = *c.FieldWorkerAssigned
	}
	return d
}

type Index struct {
	client *elasticsearch.Client
	name   string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, name string, log logger.Logger) *Index {
	if name == "" {
		name = "complaints"
	}
	return &Index{
		client: client,
		name:   name,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": name}),
	}
}

func (i *Index) Name() string { return i.name }

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.name}}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchFailedError("check index", err)
	}
	drain(res)
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: i.name,
		Body:  bytes.NewReader([]byte(indexMapping)),
	}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchFailedError("create index", err)
	}
	defer drain(res)
	if res.IsError() {
		return apperrors.NewSearchFailedError("create index", fmt.Errorf("%s", res.String()))
	}

	i.logger.Info("search index created", nil)
	return nil
}

// Put indexes or replaces the document for c.
func (i *Index) Put(ctx context.Context, c models.Complaint) error {
	body, err := json.Marshal(toDocument(c))
	if err != nil {
		return apperrors.NewSearchFailedError("encode document", err)
	}

	res, err := esapi.IndexRequest{
		Index:      i.name,
		DocumentID: strconv.FormatInt(c.ID, 10),
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchFailedError("index complaint", err)
	}
	defer drain(res)
	if res.IsError() {
		return apperrors.NewSearchFailedError("index complaint", fmt.Errorf("%s", res.String()))
	}
	return nil
}

// ComplaintChanged keeps the index in step with the store.
func (i *Index) ComplaintChanged(ctx context.Context, c models.Complaint) error {
	return i.Put(ctx, c)
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
