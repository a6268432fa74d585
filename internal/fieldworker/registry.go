// Package fieldworker maintains the roster of field workers.
package fieldworker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/validation"
	"complaint-desk/internal/models"
	"complaint-desk/internal/store"
)

// DeletePolicy decides what Remove does with a worker holding open complaints.
type DeletePolicy string

const (
	// PolicyBlock rejects the removal with WORKER_BUSY.
	PolicyBlock DeletePolicy = "block"
	// PolicyOrphan removes the worker and leaves its complaints assigned by name.
	PolicyOrphan DeletePolicy = "orphan"
)

// NewWorker is the registration payload.
type NewWorker struct {
	Name           string `json:"name"`
	PhoneNumber    string `json:"phone_number"`
	MasterCategory string `json:"master_category"`
}

type Registry struct {
	store  store.Store
	policy DeletePolicy
	logger logger.Logger
}

func NewRegistry(st store.Store, policy DeletePolicy, log logger.Logger) *Registry {
	if policy != PolicyOrphan {
		policy = PolicyBlock
	}
	return &Registry{
		store:  st,
		policy: policy,
		logger: log.WithFields(map[string]interface{}{"component": "fieldworker-registry"}),
	}
}

// Add registers an available worker in a known category.
func (r *Registry) Add(ctx context.Context, req NewWorker) (models.FieldWorker, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.MasterCategory = strings.TrimSpace(req.MasterCategory)

	if result := validation.FieldWorkerSchema.Validate(req); !result.Valid {
		return models.FieldWorker{}, apperrors.NewValidationFailedError(result.Summary())
	}

	known, err := r.categoryExists(ctx, req.MasterCategory)
	if err != nil {
		return models.FieldWorker{}, err
	}
	if !known {
		return models.FieldWorker{}, apperrors.NewValidationFailedError(
			fmt.Sprintf("master_category: unknown category %q", req.MasterCategory))
	}

	created, err := r.store.InsertFieldWorker(ctx, models.FieldWorker{
		Name:           req.Name,
		PhoneNumber:    req.PhoneNumber,
		MasterCategory: req.MasterCategory,
		WorkStatus:     true,
	})
	if err != nil {
		return models.FieldWorker{}, r.storeError("insert field worker", err)
	}

	r.logger.Info("field worker registered", map[string]interface{}{
		"fieldWorkerId": created.ID,
		"category":      created.MasterCategory,
	})
	return created, nil
}

// Remove deletes a worker according to the configured policy.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperrors.NewValidationFailedError("field worker id is required")
	}

	worker, err := r.store.GetFieldWorker(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewWorkerNotFoundError(fmt.Sprintf("fieldWorkerId: %d", id))
	}
	if err != nil {
		return r.storeError("get field worker", err)
	}

	var expect *int64
	if r.policy == PolicyBlock {
		open, err := r.store.CountOpenAssignments(ctx, id)
		if err != nil {
			return r.storeError("count open assignments", err)
		}
		if open > 0 {
			return apperrors.NewWorkerBusyError(id, open)
		}
		// An assign landing between the count and the delete bumps the version.
		v := worker.Version
		expect = &v
	}

	err = r.store.DeleteFieldWorker(ctx, id, expect)
	switch {
	case errors.Is(err, store.ErrStaleWorker):
		return apperrors.NewWorkerBusyError(id, 1)
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewWorkerNotFoundError(fmt.Sprintf("fieldWorkerId: %d", id))
	case err != nil:
		return r.storeError("delete field worker", err)
	}

	r.logger.Info("field worker removed", map[string]interface{}{
		"fieldWorkerId": id,
		"policy":        string(r.policy),
	})
	return nil
}

func (r *Registry) List(ctx context.Context) ([]models.FieldWorker, error) {
	workers, err := r.store.ListFieldWorkers(ctx, models.FieldWorkerFilter{})
	if err != nil {
		return nil, r.storeError("list field workers", err)
	}
	return workers, nil
}

func (r *Registry) Categories(ctx context.Context) ([]models.Category, error) {
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		return nil, r.storeError("list categories", err)
	}
	return categories, nil
}

func (r *Registry) categoryExists(ctx context.Context, name string) (bool, error) {
	categories, err := r.Categories(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range categories {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) storeError(op string, err error) error {
	r.logger.Error("store operation failed", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
	return apperrors.NewStoreOperationFailedError(op, err)
}

// GroupByCategory buckets workers by master category, keeping input order
// inside each bucket.
func GroupByCategory(workers []models.FieldWorker) map[string][]models.FieldWorker {
	grouped := make(map[string][]models.FieldWorker)
	for _, w := range workers {
		grouped[w.MasterCategory] = append(grouped[w.MasterCategory], w)
	}
	return grouped
}
