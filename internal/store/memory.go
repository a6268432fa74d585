package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"complaint-desk/internal/models"
)

// Memory is an in-process Store with the same semantics as Postgres. A single
// mutex serialises every operation, which makes ApplyTransition atomic.
type Memory struct {
	mu            sync.Mutex
	complaints    map[int64]models.Complaint
	workers       map[int64]models.FieldWorker
	categories    map[string]struct{}
	nextComplaint int64
	nextWorker    int64
	now           func() time.Time
}

type MemoryOption func(*Memory)

// WithClock sets the time source used for insert timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithCategories seeds the category lookup table.
func WithCategories(names ...string) MemoryOption {
	return func(m *Memory) {
		for _, n := range names {
			m.categories[n] = struct{}{}
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		complaints: make(map[int64]models.Complaint),
		workers:    make(map[int64]models.FieldWorker),
		categories: make(map[string]struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed stores complaints and workers with their ids as given. Used by tests and
// local demo runs.
func (m *Memory) Seed(complaints []models.Complaint, workers []models.FieldWorker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range complaints {
		m.complaints[c.ID] = cloneComplaint(c)
		if c.ID > m.nextComplaint {
			m.nextComplaint = c.ID
		}
	}
	for _, w := range workers {
		m.workers[w.ID] = w
		if w.ID > m.nextWorker {
			m.nextWorker = w.ID
		}
	}
}

func (m *Memory) ListComplaints(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Complaint{}
	for _, c := range m.complaints {
		if filter.Matches(c) {
			out = append(out, cloneComplaint(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) GetComplaint(ctx context.Context, id int64) (models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[id]
	if !ok {
		return models.Complaint{}, ErrNotFound
	}
	return cloneComplaint(c), nil
}

func (m *Memory) InsertComplaint(ctx context.Context, c models.Complaint) (models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextComplaint++
	c.ID = m.nextComplaint
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	m.complaints[c.ID] = cloneComplaint(c)
	return cloneComplaint(c), nil
}

func (m *Memory) ListFieldWorkers(ctx context.Context, filter models.FieldWorkerFilter) ([]models.FieldWorker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.FieldWorker{}
	for _, w := range m.workers {
		if filter.Matches(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetFieldWorker(ctx context.Context, id int64) (models.FieldWorker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[id]
	if !ok {
		return models.FieldWorker{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) InsertFieldWorker(ctx context.Context, w models.FieldWorker) (models.FieldWorker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextWorker++
	w.ID = m.nextWorker
	w.Version = 0
	m.workers[w.ID] = w
	return w, nil
}

func (m *Memory) DeleteFieldWorker(ctx context.Context, id int64, expectVersion *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[id]
	if !ok {
		return ErrNotFound
	}
	if expectVersion != nil && w.Version != *expectVersion {
		return ErrStaleWorker
	}
	delete(m.workers, id)
	return nil
}

func (m *Memory) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Category, 0, len(m.categories))
	for name := range m.categories {
		out = append(out, models.Category{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CountOpenAssignments(ctx context.Context, workerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.complaints {
		if c.Status == models.StatusInProgress && c.FieldWorkerID != nil && *c.FieldWorkerID == workerID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ApplyTransition(ctx context.Context, t Transition) (models.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return models.Complaint{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[t.ComplaintID]
	if !ok {
		return models.Complaint{}, ErrNotFound
	}
	if c.Status != t.From {
		return models.Complaint{}, ErrStaleComplaint
	}

	if t.Worker != nil {
		w, ok := m.workers[t.Worker.ID]
		if !ok || w.Version != t.Worker.ExpectVersion || w.WorkStatus == t.Worker.Available {
			return models.Complaint{}, ErrStaleWorker
		}
		w.WorkStatus = t.Worker.Available
		w.Version++
		m.workers[w.ID] = w
	}

	c = t.apply(c)
	m.complaints[c.ID] = cloneComplaint(c)
	return cloneComplaint(c), nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func cloneComplaint(c models.Complaint) models.Complaint {
	c.Subcategory = clonePtr(c.Subcategory)
	c.CompletedAt = clonePtr(c.CompletedAt)
	c.FieldWorkerID = clonePtr(c.FieldWorkerID)
	c.FieldWorkerAssigned = clonePtr(c.FieldWorkerAssigned)
	c.DeadlineDate = clonePtr(c.DeadlineDate)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
