// Package store is the data-access layer for complaints, field workers and
// categories.
package store

import (
	"context"
	"errors"
	"time"

	"complaint-desk/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrStaleComplaint = errors.New("complaint status changed concurrently")
	ErrStaleWorker    = errors.New("field worker changed concurrently")
)

// Store is implemented by the Postgres and in-memory backends.
type Store interface {
	// ListComplaints returns complaints matching filter, newest first (ties by id desc).
	ListComplaints(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	GetComplaint(ctx context.Context, id int64) (models.Complaint, error)
	InsertComplaint(ctx context.Context, c models.Complaint) (models.Complaint, error)

	// ListFieldWorkers returns workers matching filter ordered by id.
	ListFieldWorkers(ctx context.Context, filter models.FieldWorkerFilter) ([]models.FieldWorker, error)
	GetFieldWorker(ctx context.Context, id int64) (models.FieldWorker, error)
	InsertFieldWorker(ctx context.Context, w models.FieldWorker) (models.FieldWorker, error)

	// DeleteFieldWorker removes a worker. With a non-nil expectVersion the delete
	// only happens if the stored version still matches, else ErrStaleWorker.
	DeleteFieldWorker(ctx context.Context, id int64, expectVersion *int64) error

	ListCategories(ctx context.Context) ([]models.Category, error)

	// CountOpenAssignments counts in_progress complaints referencing the worker.
	CountOpenAssignments(ctx context.Context, workerID int64) (int, error)

	// ApplyTransition writes a complaint status change and the matching worker
	// availability flip as one atomic unit.
	ApplyTransition(ctx context.Context, t Transition) (models.Complaint, error)

	Ping(ctx context.Context) error
}

// WorkerFlip is a compare-and-swap on a worker's availability. It succeeds only
// when the stored version equals ExpectVersion and work_status is !Available.
type WorkerFlip struct {
	ID            int64
	Available     bool
	ExpectVersion int64
}

// Transition describes the complete post-state of a complaint. The complaint
// must currently be in From; otherwise ErrStaleComplaint is returned and
// nothing is written.
type Transition struct {
	ComplaintID     int64
	From            models.ComplaintStatus
	To              models.ComplaintStatus
	FieldWorkerID   *int64
	FieldWorkerName *string
	Deadline        *time.Time
	CompletedAt     *time.Time
	At              time.Time
	Worker          *WorkerFlip
}

func (t Transition) apply(c models.Complaint) models.Complaint {
	c.Status = t.To
	c.UpdatedAt = t.At
	c.FieldWorkerID = t.FieldWorkerID
	c.FieldWorkerAssigned = t.FieldWorkerName
	c.DeadlineDate = t.Deadline
	c.CompletedAt = t.CompletedAt
	return c
}
