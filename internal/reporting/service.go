package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/metrics"
	"complaint-desk/internal/models"
	"complaint-desk/internal/store"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	CacheKey string
	CacheTTL time.Duration
}

// Service serves the dashboard summary through a Redis read-through cache.
// A nil Redis client disables caching.
type Service struct {
	cfg    Config
	store  store.Store
	redis  *redis.Client
	logger logger.Logger
	now    func() time.Time
}

func NewService(cfg Config, st store.Store, rdb *redis.Client, log logger.Logger) *Service {
	if cfg.CacheKey == "" {
		cfg.CacheKey = "complaint-desk:dashboard"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &Service{
		cfg:    cfg,
		store:  st,
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"component": "reporting"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// storeIfCurrent writes the dashboard only while the invalidation generation
// still matches the one read before the store was loaded.
var storeIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Summary returns the cached dashboard or recomputes it from the store.
// Cache failures are logged and fall through to the store.
func (s *Service) Summary(ctx context.Context) (models.DashboardSummary, error) {
	if summary, ok := s.cached(ctx); ok {
		return summary, nil
	}

	gen, genOK := s.generation(ctx)

	complaints, err := s.store.ListComplaints(ctx, models.ComplaintFilter{})
	if err != nil {
		s.logger.Error("failed to load complaints for dashboard", map[string]interface{}{
			"error": err.Error(),
		})
		return models.DashboardSummary{}, apperrors.NewStoreOperationFailedError("list complaints", err)
	}

	summary := Summarize(complaints, s.now())
	if genOK {
		s.writeCache(ctx, gen, summary)
	}
	return summary, nil
}

func (s *Service) genKey() string { return s.cfg.CacheKey + ":gen" }

// generation reads the invalidation counter. ok is false when caching is
// disabled or Redis cannot be read, in which case nothing is written back.
func (s *Service) generation(ctx context.Context) (string, bool) {
	if s.redis == nil {
		return "", false
	}
	gen, err := s.redis.Get(ctx, s.genKey()).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		s.logger.Warn("dashboard cache generation read failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", false
	}
	return gen, true
}

func (s *Service) writeCache(ctx context.Context, gen string, summary models.DashboardSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		s.logger.Warn("failed to encode dashboard", map[string]interface{}{"error": err.Error()})
		return
	}
	written, err := storeIfCurrent.Run(ctx, s.redis,
		[]string{s.cfg.CacheKey, s.genKey()},
		gen, data, s.cfg.CacheTTL.Milliseconds(),
	).Int()
	if err != nil {
		s.logger.Warn("failed to cache dashboard", map[string]interface{}{"error": err.Error()})
		return
	}
	if written == 0 {
		s.logger.Debug("dashboard changed while computing, not cached", map[string]interface{}{
			"generation": gen,
		})
	}
}

func (s *Service) cached(ctx context.Context) (models.DashboardSummary, bool) {
	if s.redis == nil {
		return models.DashboardSummary{}, false
	}

	val, err := s.redis.Get(ctx, s.cfg.CacheKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.DashboardCacheLookups.WithLabelValues("miss").Inc()
		return models.DashboardSummary{}, false
	case err != nil:
		metrics.DashboardCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("dashboard cache read failed", map[string]interface{}{
			"error": err.Error(),
		})
		return models.DashboardSummary{}, false
	}

	var summary models.DashboardSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		metrics.DashboardCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("discarding corrupt dashboard cache entry", map[string]interface{}{
			"error": err.Error(),
		})
		return models.DashboardSummary{}, false
	}
	metrics.DashboardCacheLookups.WithLabelValues("hit").Inc()
	return summary, true
}

// ComplaintChanged bumps the cache generation and drops the cached dashboard.
// The bump comes first so a Summary computed before the change cannot write
// its result back.
func (s *Service) ComplaintChanged(ctx context.Context, c models.Complaint) error {
	if s.redis == nil {
		return nil
	}
	incrErr := s.redis.Incr(ctx, s.genKey()).Err()
	delErr := s.redis.Del(ctx, s.cfg.CacheKey).Err()
	return errors.Join(incrErr, delErr)
}
