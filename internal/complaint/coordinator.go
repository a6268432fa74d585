// Package complaint coordinates the complaint lifecycle:
// pending -> in_progress -> completed.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/metrics"
	"complaint-desk/internal/common/validation"
	"complaint-desk/internal/models"
	"complaint-desk/internal/store"
)

// completeAttempts bounds re-reads when the worker row moves under a completion.
const completeAttempts = 3

type Config struct {
	DefaultDeadline time.Duration
}

// AssignRequest names the worker by id, or by name when the id is zero.
type AssignRequest struct {
	ComplaintID   int64      `json:"complaintId"`
	FieldWorkerID int64      `json:"fieldWorkerId,omitempty"`
	WorkerName    string     `json:"fieldWorkerName,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// IntakeRequest is a complaint filed through the intake channel.
type IntakeRequest struct {
	PhoneNumber string  `json:"phone_number"`
	Category    string  `json:"category"`
	Subcategory *string `json:"subcategory,omitempty"`
	Address     string  `json:"address"`
	Description string  `json:"description"`
}

type Coordinator struct {
	cfg       Config
	store     store.Store
	listeners []Listener
	logger    logger.Logger
	now       func() time.Time
}

func NewCoordinator(cfg Config, st store.Store, log logger.Logger, listeners ...Listener) *Coordinator {
	if cfg.DefaultDeadline <= 0 {
		cfg.DefaultDeadline = 7 * 24 * time.Hour
	}
	return &Coordinator{
		cfg:       cfg,
		store:     st,
		listeners: listeners,
		logger:    log.WithFields(map[string]interface{}{"component": "coordinator"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Subscribe adds a listener after construction.
func (c *Coordinator) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Refresh returns the complaint list for the given filter, newest first.
// Without intervening writes two calls return identical results.
func (c *Coordinator) Refresh(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("unknown status %q", filter.Status))
	}

	complaints, err := c.store.ListComplaints(ctx, filter)
	if err != nil {
		return nil, c.storeError("list complaints", err)
	}
	return complaints, nil
}

func (c *Coordinator) Get(ctx context.Context, id int64) (models.Complaint, error) {
	complaint, err := c.store.GetComplaint(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Complaint{}, apperrors.NewComplaintNotFoundError(id)
	}
	if err != nil {
		return models.Complaint{}, c.storeError("get complaint", err)
	}
	return complaint, nil
}

// ListEligibleWorkers returns available workers whose category matches.
// An empty result is not an error.
func (c *Coordinator) ListEligibleWorkers(ctx context.Context, category string) ([]models.FieldWorker, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperrors.NewValidationFailedError("category is required")
	}

	workers, err := c.store.ListFieldWorkers(ctx, models.FieldWorkerFilter{
		Category:      category,
		AvailableOnly: true,
	})
	if err != nil {
		return nil, c.storeError("list eligible workers", err)
	}
	return workers, nil
}

// Create files a new pending complaint.
func (c *Coordinator) Create(ctx context.Context, req IntakeRequest) (models.Complaint, error) {
	if result := validation.ComplaintIntakeSchema.Validate(req); !result.Valid {
		return models.Complaint{}, apperrors.NewValidationFailedError(result.Summary())
	}

	now := c.now()
	created, err := c.store.InsertComplaint(ctx, models.Complaint{
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Category:    strings.TrimSpace(req.Category),
		Subcategory: req.Subcategory,
		Address:     req.Address,
		Description: req.Description,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.Complaint{}, c.storeError("insert complaint", err)
	}

	c.logger.Info("complaint filed", map[string]interface{}{
		"complaintId": created.ID,
		"category":    created.Category,
	})
	c.publish(ctx, created)
	return created, nil
}

// Assign moves a pending complaint to in_progress and marks the worker
// unavailable in one atomic write.
func (c *Coordinator) Assign(ctx context.Context, req AssignRequest) (models.Complaint, error) {
	if req.ComplaintID <= 0 {
		return models.Complaint{}, apperrors.NewValidationFailedError("complaintId is required")
	}
	if req.FieldWorkerID <= 0 && strings.TrimSpace(req.WorkerName) == "" {
		return models.Complaint{}, apperrors.NewValidationFailedError("fieldWorkerId or fieldWorkerName is required")
	}

	complaint, err := c.Get(ctx, req.ComplaintID)
	if err != nil {
		return models.Complaint{}, err
	}
	if complaint.Status != models.StatusPending {
		c.recordTransition(complaint.Status, models.StatusInProgress, "rejected")
		return models.Complaint{}, apperrors.NewInvalidTransitionError(complaint.ID, string(complaint.Status), string(models.StatusInProgress))
	}

	worker, err := c.resolveWorker(ctx, req, complaint.Category)
	if err != nil {
		return models.Complaint{}, err
	}
	if worker.MasterCategory != complaint.Category {
		return models.Complaint{}, apperrors.NewCategoryMismatchError(complaint.Category, worker.MasterCategory)
	}
	if !worker.WorkStatus {
		return models.Complaint{}, apperrors.NewWorkerUnavailableError(worker.ID)
	}

	now := c.now()
	deadline := now.Add(c.cfg.DefaultDeadline)
	if req.Deadline != nil {
		deadline = req.Deadline.UTC()
	}

	workerID := worker.ID
	workerName := worker.Name
	updated, err := c.store.ApplyTransition(ctx, store.Transition{
		ComplaintID:     complaint.ID,
		From:            models.StatusPending,
		To:              models.StatusInProgress,
		FieldWorkerID:   &workerID,
		FieldWorkerName: &workerName,
		Deadline:        &deadline,
		At:              now,
		Worker:          &store.WorkerFlip{ID: worker.ID, Available: false, ExpectVersion: worker.Version},
	})
	switch {
	case errors.Is(err, store.ErrStaleWorker):
		c.recordTransition(models.StatusPending, models.StatusInProgress, "conflict")
		return models.Complaint{}, apperrors.NewWorkerUnavailableError(worker.ID)
	case errors.Is(err, store.ErrStaleComplaint):
		c.recordTransition(models.StatusPending, models.StatusInProgress, "conflict")
		return models.Complaint{}, apperrors.NewInvalidTransitionError(complaint.ID, "changed", string(models.StatusInProgress))
	case errors.Is(err, store.ErrNotFound):
		return models.Complaint{}, apperrors.NewComplaintNotFoundError(complaint.ID)
	case err != nil:
		c.recordTransition(models.StatusPending, models.StatusInProgress, "error")
		return models.Complaint{}, c.storeError("assign complaint", err)
	}

	c.recordTransition(models.StatusPending, models.StatusInProgress, "applied")
	c.logger.Info("complaint assigned", map[string]interface{}{
		"complaintId":   updated.ID,
		"fieldWorkerId": worker.ID,
		"fieldWorker":   worker.Name,
		"deadline":      deadline.Format(time.RFC3339),
	})
	c.publish(ctx, updated)
	return updated, nil
}

// Complete closes an in_progress complaint and frees its worker. A worker that
// no longer exists does not block completion.
func (c *Coordinator) Complete(ctx context.Context, complaintID int64) (models.Complaint, error) {
	if complaintID <= 0 {
		return models.Complaint{}, apperrors.NewValidationFailedError("complaintId is required")
	}

	var lastErr error
	for attempt := 0; attempt < completeAttempts; attempt++ {
		updated, err := c.completeOnce(ctx, complaintID)
		if !errors.Is(err, store.ErrStaleWorker) {
			return updated, err
		}
		lastErr = err
		c.logger.Debug("worker changed during completion, retrying", map[string]interface{}{
			"complaintId": complaintID,
			"attempt":     attempt + 1,
		})
	}

	c.recordTransition(models.StatusInProgress, models.StatusCompleted, "conflict")
	return models.Complaint{}, c.storeError("complete complaint", lastErr)
}

func (c *Coordinator) completeOnce(ctx context.Context, complaintID int64) (models.Complaint, error) {
	complaint, err := c.Get(ctx, complaintID)
	if err != nil {
		return models.Complaint{}, err
	}
	if complaint.Status != models.StatusInProgress || complaint.FieldWorkerAssigned == nil {
		c.recordTransition(complaint.Status, models.StatusCompleted, "rejected")
		return models.Complaint{}, apperrors.NewInvalidTransitionError(complaint.ID, string(complaint.Status), string(models.StatusCompleted))
	}

	flip, err := c.releaseFlip(ctx, complaint)
	if err != nil {
		return models.Complaint{}, err
	}

	now := c.now()
	updated, err := c.store.ApplyTransition(ctx, store.Transition{
		ComplaintID:     complaint.ID,
		From:            models.StatusInProgress,
		To:              models.StatusCompleted,
		FieldWorkerID:   complaint.FieldWorkerID,
		FieldWorkerName: complaint.FieldWorkerAssigned,
		Deadline:        complaint.DeadlineDate,
		CompletedAt:     &now,
		At:              now,
		Worker:          flip,
	})
	switch {
	case errors.Is(err, store.ErrStaleWorker):
		return models.Complaint{}, err
	case errors.Is(err, store.ErrStaleComplaint):
		c.recordTransition(models.StatusInProgress, models.StatusCompleted, "conflict")
		return models.Complaint{}, apperrors.NewInvalidTransitionError(complaint.ID, "changed", string(models.StatusCompleted))
	case errors.Is(err, store.ErrNotFound):
		return models.Complaint{}, apperrors.NewComplaintNotFoundError(complaint.ID)
	case err != nil:
		c.recordTransition(models.StatusInProgress, models.StatusCompleted, "error")
		return models.Complaint{}, c.storeError("complete complaint", err)
	}

	c.recordTransition(models.StatusInProgress, models.StatusCompleted, "applied")
	c.logger.Info("complaint completed", map[string]interface{}{
		"complaintId": updated.ID,
		"fieldWorker": *updated.FieldWorkerAssigned,
		"orphaned":    flip == nil,
	})
	c.publish(ctx, updated)
	return updated, nil
}

// releaseFlip finds the assigned worker and builds the availability flip.
// It returns nil when the worker is gone or already available.
func (c *Coordinator) releaseFlip(ctx context.Context, complaint models.Complaint) (*store.WorkerFlip, error) {
	var (
		worker models.FieldWorker
		err    error
	)

	if complaint.FieldWorkerID != nil {
		worker, err = c.store.GetFieldWorker(ctx, *complaint.FieldWorkerID)
		if errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("assigned worker no longer exists", map[string]interface{}{
				"complaintId":   complaint.ID,
				"fieldWorkerId": *complaint.FieldWorkerID,
			})
			return nil, nil
		}
		if err != nil {
			return nil, c.storeError("get field worker", err)
		}
	} else {
		// Rows written before workers were referenced by id only carry the name.
		matches, err := c.store.ListFieldWorkers(ctx, models.FieldWorkerFilter{
			Name:     *complaint.FieldWorkerAssigned,
			Category: complaint.Category,
		})
		if err != nil {
			return nil, c.storeError("find field worker by name", err)
		}
		if len(matches) != 1 {
			c.logger.Warn("assigned worker could not be resolved by name", map[string]interface{}{
				"complaintId": complaint.ID,
				"fieldWorker": *complaint.FieldWorkerAssigned,
				"matches":     len(matches),
			})
			return nil, nil
		}
		worker = matches[0]
	}

	if worker.WorkStatus {
		c.logger.Warn("assigned worker already available", map[string]interface{}{
			"complaintId":   complaint.ID,
			"fieldWorkerId": worker.ID,
		})
		return nil, nil
	}
	return &store.WorkerFlip{ID: worker.ID, Available: true, ExpectVersion: worker.Version}, nil
}

// resolveWorker finds the worker for req. A name is resolved within category
// first; only when nobody there has it does a single match elsewhere come
// back, for the caller to reject as a category mismatch.
func (c *Coordinator) resolveWorker(ctx context.Context, req AssignRequest, category string) (models.FieldWorker, error) {
	if req.FieldWorkerID > 0 {
		worker, err := c.store.GetFieldWorker(ctx, req.FieldWorkerID)
		if errors.Is(err, store.ErrNotFound) {
			return models.FieldWorker{}, apperrors.NewWorkerNotFoundError(fmt.Sprintf("fieldWorkerId: %d", req.FieldWorkerID))
		}
		if err != nil {
			return models.FieldWorker{}, c.storeError("get field worker", err)
		}
		return worker, nil
	}

	name := strings.TrimSpace(req.WorkerName)
	matches, err := c.store.ListFieldWorkers(ctx, models.FieldWorkerFilter{Name: name})
	if err != nil {
		return models.FieldWorker{}, c.storeError("find field worker by name", err)
	}
	var inCategory []models.FieldWorker
	for _, w := range matches {
		if w.MasterCategory == category {
			inCategory = append(inCategory, w)
		}
	}
	if len(inCategory) > 0 {
		matches = inCategory
	}

	switch len(matches) {
	case 0:
		return models.FieldWorker{}, apperrors.NewWorkerNotFoundError(fmt.Sprintf("name: %s", name))
	case 1:
		return matches[0], nil
	default:
		return models.FieldWorker{}, apperrors.NewWorkerAmbiguousError(name, len(matches))
	}
}

// publish fans the change out to listeners. Failures are logged only.
func (c *Coordinator) publish(ctx context.Context, complaint models.Complaint) {
	for _, l := range c.listeners {
		if err := l.ComplaintChanged(ctx, complaint); err != nil {
			c.logger.Warn("complaint listener failed", map[string]interface{}{
				"complaintId": complaint.ID,
				"status":      string(complaint.Status),
				"error":       err.Error(),
			})
		}
	}
}

func (c *Coordinator) storeError(op string, err error) error {
	c.logger.Error("store operation failed", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
	return apperrors.NewStoreOperationFailedError(op, err)
}

func (c *Coordinator) recordTransition(from, to models.ComplaintStatus, outcome string) {
	metrics.ComplaintTransitions.WithLabelValues(string(from), string(to), outcome).Inc()
}
