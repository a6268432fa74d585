package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/models"
	"complaint-desk/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCacheKey = "complaint-desk:dashboard"

var serviceNow = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func seededStore() *store.Memory {
	st := store.NewMemory()
	st.Seed(sampleComplaints(), nil)
	return st
}

func newTestService(t *testing.T, st store.Store, rdb *redis.Client) *Service {
	t.Helper()
	svc := NewService(Config{CacheKey: testCacheKey, CacheTTL: time.Minute}, st, rdb, logger.NewTestLogger(t))
	return svc.WithClock(func() time.Time { return serviceNow })
}

// invalidatingStore commits a new complaint and runs the invalidation hook
// after the first ListComplaints read, before the caller can cache it.
type invalidatingStore struct {
	*store.Memory
	svc  *Service
	done bool
}

func (s *invalidatingStore) ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	out, err := s.Memory.ListComplaints(ctx, f)
	if err != nil || s.done {
		return out, err
	}
	s.done = true
	c, err := s.Memory.InsertComplaint(ctx, models.Complaint{Category: "IT", CreatedAt: serviceNow})
	if err != nil {
		return nil, err
	}
	return out, s.svc.ComplaintChanged(ctx, c)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	return nil, errors.New("connection refused")
}

// ==========================
// Cache behaviour (miniredis)
// ==========================

func TestService_Summary_CachesAndInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := seededStore()
	svc := newTestService(t, st, rdb)
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Status.Total)
	assert.True(t, mr.Exists(testCacheKey))
	assert.Equal(t, time.Minute, mr.TTL(testCacheKey))

	_, err = st.InsertComplaint(ctx, models.Complaint{Category: "IT", CreatedAt: serviceNow})
	require.NoError(t, err)

	cached, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, cached.Status.Total, "served from cache")
	assert.True(t, cached.GeneratedAt.Equal(serviceNow))

	require.NoError(t, svc.ComplaintChanged(ctx, models.Complaint{ID: 7}))
	assert.False(t, mr.Exists(testCacheKey))

	fresh, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, fresh.Status.Total)
}

func TestService_Summary_ConcurrentInvalidationNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := &invalidatingStore{Memory: seededStore()}
	svc := newTestService(t, st, rdb)
	st.svc = svc
	ctx := context.Background()

	stale, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stale.Status.Total)
	assert.False(t, mr.Exists(testCacheKey), "summary computed across an invalidation is not cached")

	fresh, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, fresh.Status.Total)
	assert.True(t, mr.Exists(testCacheKey))
}

func TestService_Summary_CorruptEntryRecomputed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, mr.Set(testCacheKey, "{not json"))

	got, err := newTestService(t, seededStore(), rdb).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, got.Status.Total)
}

func TestService_Summary_WithoutRedis(t *testing.T) {
	svc := newTestService(t, seededStore(), nil)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, got.Status.Total)
	assert.NoError(t, svc.ComplaintChanged(context.Background(), models.Complaint{}))
}

// ==========================
// Error paths (redismock)
// ==========================

func TestService_Summary_CacheReadErrorFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()

	expected := Summarize(sampleComplaints(), serviceNow)

	mock.ExpectGet(testCacheKey).SetErr(errors.New("connection reset"))
	mock.ExpectGet(testCacheKey + ":gen").SetErr(errors.New("connection reset"))

	got, err := newTestService(t, seededStore(), rdb).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Summary_StoreFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(testCacheKey).RedisNil()
	mock.ExpectGet(testCacheKey + ":gen").RedisNil()

	_, err := newTestService(t, brokenStore{}, rdb).Summary(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreOperationFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ComplaintChanged_DeleteError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectIncr(testCacheKey + ":gen").SetErr(errors.New("readonly replica"))
	mock.ExpectDel(testCacheKey).SetErr(errors.New("readonly replica"))

	err := newTestService(t, seededStore(), rdb).ComplaintChanged(context.Background(), models.Complaint{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
