package fieldworker

import (
	"context"
	"testing"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/models"
	"complaint-desk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestRegistry(t *testing.T, policy DeletePolicy) (*Registry, *store.Memory) {
	t.Helper()
	st := store.NewMemory(store.WithCategories("IT", "Plumbing"))
	st.Seed(nil, []models.FieldWorker{
		{ID: 5, Name: "John", PhoneNumber: "1234567890", MasterCategory: "IT", WorkStatus: true},
	})
	return NewRegistry(st, policy, logger.NewTestLogger(t)), st
}

func codeOf(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %T", err)
	return stdErr.Code
}

func seedOpenAssignment(st *store.Memory, workerID int64) {
	name := "John"
	deadline := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st.Seed([]models.Complaint{{
		ID: 1, Category: "IT", Status: models.StatusInProgress,
		FieldWorkerID: &workerID, FieldWorkerAssigned: &name, DeadlineDate: &deadline,
	}}, nil)
}

// ==========================
// Add
// ==========================

func TestRegistry_Add(t *testing.T) {
	r, st := newTestRegistry(t, PolicyBlock)

	created, err := r.Add(context.Background(), NewWorker{
		Name:           " Asha ",
		PhoneNumber:    "9876543210",
		MasterCategory: "Plumbing",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(6), created.ID)
	assert.Equal(t, "Asha", created.Name)
	assert.True(t, created.WorkStatus)

	stored, err := st.GetFieldWorker(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)
}

func TestRegistry_Add_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  NewWorker
	}{
		{"empty name", NewWorker{Name: "  ", PhoneNumber: "1234567890", MasterCategory: "IT"}},
		{"short phone", NewWorker{Name: "A", PhoneNumber: "12345", MasterCategory: "IT"}},
		{"long phone", NewWorker{Name: "A", PhoneNumber: "12345678901", MasterCategory: "IT"}},
		{"letter in phone", NewWorker{Name: "A", PhoneNumber: "12a4567890", MasterCategory: "IT"}},
		{"missing category", NewWorker{Name: "A", PhoneNumber: "1234567890"}},
		{"unknown category", NewWorker{Name: "A", PhoneNumber: "1234567890", MasterCategory: "Electrical"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, st := newTestRegistry(t, PolicyBlock)

			_, err := r.Add(context.Background(), tt.req)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, codeOf(t, err))

			workers, err := st.ListFieldWorkers(context.Background(), models.FieldWorkerFilter{})
			require.NoError(t, err)
			assert.Len(t, workers, 1, "nothing written on rejection")
		})
	}
}

// ==========================
// Remove
// ==========================

func TestRegistry_Remove_Idle(t *testing.T) {
	r, st := newTestRegistry(t, PolicyBlock)

	require.NoError(t, r.Remove(context.Background(), 5))

	_, err := st.GetFieldWorker(context.Background(), 5)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistry_Remove_BusyBlocked(t *testing.T) {
	r, st := newTestRegistry(t, PolicyBlock)
	seedOpenAssignment(st, 5)

	err := r.Remove(context.Background(), 5)
	assert.Equal(t, apperrors.ErrCodeWorkerBusy, codeOf(t, err))

	_, err = st.GetFieldWorker(context.Background(), 5)
	assert.NoError(t, err)
}

func TestRegistry_Remove_BusyOrphaned(t *testing.T) {
	r, st := newTestRegistry(t, PolicyOrphan)
	seedOpenAssignment(st, 5)

	require.NoError(t, r.Remove(context.Background(), 5))

	c, err := st.GetComplaint(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "John", *c.FieldWorkerAssigned)
}

func TestRegistry_Remove_NotFound(t *testing.T) {
	r, _ := newTestRegistry(t, PolicyBlock)

	assert.Equal(t, apperrors.ErrCodeWorkerNotFound, codeOf(t, r.Remove(context.Background(), 42)))
	assert.Equal(t, apperrors.ErrCodeValidationFailed, codeOf(t, r.Remove(context.Background(), 0)))
}

func TestNewRegistry_UnknownPolicyBlocks(t *testing.T) {
	r := NewRegistry(store.NewMemory(), "", logger.NewNoOpLogger())
	assert.Equal(t, PolicyBlock, r.policy)
}

// ==========================
// Listing
// ==========================

func TestRegistry_ListAndCategories(t *testing.T) {
	r, _ := newTestRegistry(t, PolicyBlock)

	workers, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, workers, 1)

	categories, err := r.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Category{{Name: "IT"}, {Name: "Plumbing"}}, categories)
}

func TestGroupByCategory(t *testing.T) {
	workers := []models.FieldWorker{
		{ID: 3, Name: "C", MasterCategory: "IT"},
		{ID: 1, Name: "A", MasterCategory: "Plumbing"},
		{ID: 2, Name: "B", MasterCategory: "IT"},
	}

	grouped := GroupByCategory(workers)

	require.Len(t, grouped, 2)
	assert.Equal(t, []int64{3, 2}, ids(grouped["IT"]))
	assert.Equal(t, []int64{1}, ids(grouped["Plumbing"]))
	assert.Empty(t, GroupByCategory(nil))
}

func ids(ws []models.FieldWorker) []int64 {
	out := make([]int64, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}
