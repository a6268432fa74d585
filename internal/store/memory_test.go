package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"complaint-desk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func strPtr(s string) *string { return &s }
func i64Ptr(i int64) *int64   { return &i }
func timePtr(t time.Time) *time.Time {
	return &t
}

func seededMemory(t *testing.T) *Memory {
	t.Helper()
	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemory(WithCategories("IT", "Plumbing"), WithClock(func() time.Time { return base }))
	m.Seed(
		[]models.Complaint{
			{ID: 1, PhoneNumber: "919876543210@c.us", Category: "IT", Status: models.StatusPending, CreatedAt: base, UpdatedAt: base},
			{ID: 2, PhoneNumber: "919876543211@c.us", Category: "Plumbing", Status: models.StatusPending, CreatedAt: base.Add(time.Hour), UpdatedAt: base},
			{ID: 3, PhoneNumber: "919876543212@c.us", Category: "IT", Status: models.StatusNotCompleted, CreatedAt: base, UpdatedAt: base},
		},
		[]models.FieldWorker{
			{ID: 5, Name: "John", PhoneNumber: "1234567890", MasterCategory: "IT", WorkStatus: true},
			{ID: 6, Name: "Asha", PhoneNumber: "1234567891", MasterCategory: "Plumbing", WorkStatus: true},
		},
	)
	return m
}

func assignTransition(complaintID, workerID, version int64, at time.Time) Transition {
	return Transition{
		ComplaintID:     complaintID,
		From:            models.StatusPending,
		To:              models.StatusInProgress,
		FieldWorkerID:   i64Ptr(workerID),
		FieldWorkerName: strPtr("John"),
		Deadline:        timePtr(at.Add(7 * 24 * time.Hour)),
		At:              at,
		Worker:          &WorkerFlip{ID: workerID, Available: false, ExpectVersion: version},
	}
}

// ==========================
// Listing
// ==========================

func TestMemory_ListComplaints_OrderAndFilter(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	all, err := m.ListComplaints(ctx, models.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first, equal created_at broken by id desc
	assert.Equal(t, []int64{2, 3, 1}, []int64{all[0].ID, all[1].ID, all[2].ID})

	it, err := m.ListComplaints(ctx, models.ComplaintFilter{Category: "IT", Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, it, 1)
	assert.Equal(t, int64(1), it[0].ID)

	none, err := m.ListComplaints(ctx, models.ComplaintFilter{Status: models.StatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemory_ListFieldWorkers_Filter(t *testing.T) {
	m := seededMemory(t)

	workers, err := m.ListFieldWorkers(context.Background(), models.FieldWorkerFilter{Category: "IT", AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "John", workers[0].Name)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	c, err := m.GetComplaint(ctx, 1)
	require.NoError(t, err)
	c.Status = models.StatusCompleted

	again, err := m.GetComplaint(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
}

// ==========================
// Transitions
// ==========================

func TestMemory_ApplyTransition_Assign(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	at := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)

	updated, err := m.ApplyTransition(ctx, assignTransition(1, 5, 0, at))
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "John", *updated.FieldWorkerAssigned)
	assert.Equal(t, int64(5), *updated.FieldWorkerID)
	assert.Equal(t, at, updated.UpdatedAt)
	assert.NoError(t, updated.CheckAssignmentInvariant())

	w, err := m.GetFieldWorker(ctx, 5)
	require.NoError(t, err)
	assert.False(t, w.WorkStatus)
	assert.Equal(t, int64(1), w.Version)

	open, err := m.CountOpenAssignments(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestMemory_ApplyTransition_StaleWorkerWritesNothing(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := m.ApplyTransition(ctx, assignTransition(1, 5, 3, at))
	assert.ErrorIs(t, err, ErrStaleWorker)

	c, err := m.GetComplaint(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Nil(t, c.FieldWorkerAssigned)
}

func TestMemory_ApplyTransition_StaleComplaint(t *testing.T) {
	m := seededMemory(t)
	_, err := m.ApplyTransition(context.Background(), assignTransition(3, 5, 0, time.Now()))
	assert.ErrorIs(t, err, ErrStaleComplaint)

	_, err = m.ApplyTransition(context.Background(), assignTransition(99, 5, 0, time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ApplyTransition_ConcurrentAssignSameWorker(t *testing.T) {
	m := seededMemory(t)
	m.Seed([]models.Complaint{
		{ID: 10, Category: "IT", Status: models.StatusPending, CreatedAt: time.Now()},
	}, nil)

	var (
		wg        sync.WaitGroup
		successes int32
	)
	for _, id := range []int64{1, 10} {
		wg.Add(1)
		go func(complaintID int64) {
			defer wg.Done()
			if _, err := m.ApplyTransition(context.Background(), assignTransition(complaintID, 5, 0, time.Now())); err == nil {
				atomic.AddInt32(&successes, 1)
			} else {
				assert.ErrorIs(t, err, ErrStaleWorker)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
}

// ==========================
// Field worker deletion
// ==========================

func TestMemory_DeleteFieldWorker(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.DeleteFieldWorker(ctx, 6, i64Ptr(4)), ErrStaleWorker)
	assert.NoError(t, m.DeleteFieldWorker(ctx, 6, i64Ptr(0)))
	assert.ErrorIs(t, m.DeleteFieldWorker(ctx, 6, nil), ErrNotFound)
}

func TestMemory_InsertAssignsIDs(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	c, err := m.InsertComplaint(ctx, models.Complaint{PhoneNumber: "1@c.us", Category: "IT"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.ID)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.False(t, c.CreatedAt.IsZero())

	w, err := m.InsertFieldWorker(ctx, models.FieldWorker{Name: "Ravi", PhoneNumber: "1111111111", MasterCategory: "IT", WorkStatus: true, Version: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(7), w.ID)
	assert.Equal(t, int64(0), w.Version)

	cats, err := m.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Category{{Name: "IT"}, {Name: "Plumbing"}}, cats)
}
