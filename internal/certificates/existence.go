package certificates

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/internal/metrics"
	"github.com/aura-seminar/certificates/pkg/cache"
)

// DefaultExistenceTTL is how long an existence answer is trusted.
const DefaultExistenceTTL = 24 * time.Hour

// ExistenceCache memoizes "is this artifact in the object store" per kind and certificate code.
// Nothing expires an entry early except Forget; an artifact deleted behind its back stays
// "present" until the TTL runs out or a read notices the gap.
type ExistenceCache struct {
	cache  cache.Store
	store  ObjectStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewExistenceCache creates an existence cache over store.
func NewExistenceCache(c cache.Store, store ObjectStore, ttl time.Duration, logger *zap.Logger) *ExistenceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultExistenceTTL
	}
	return &ExistenceCache{cache: c, store: store, ttl: ttl, logger: logger}
}

// Check answers from the cache, probing the store and caching its answer on a miss.
func (e *ExistenceCache) Check(ctx context.Context, kind Kind, code, key string) (bool, error) {
	missed := false
	v, err := cache.Remember(ctx, e.cache, existenceKey(kind, code), e.ttl, func(ctx context.Context) (string, error) {
		missed = true
		ok, err := e.store.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		return encodeBool(ok), nil
	})
	if err != nil {
		return false, err
	}
	result := "hit"
	if missed {
		result = "miss"
	}
	metrics.ExistenceCacheLookups.WithLabelValues(string(kind), result).Inc()
	return v == "1", nil
}

// Verify asks the store directly and refreshes the cached answer.
func (e *ExistenceCache) Verify(ctx context.Context, kind Kind, code, key string) (bool, error) {
	ok, err := e.store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	metrics.ExistenceCacheLookups.WithLabelValues(string(kind), "verify").Inc()
	if err := e.cache.Put(ctx, existenceKey(kind, code), encodeBool(ok), e.ttl); err != nil {
		e.logger.Warn("existence cache refresh failed", zap.String("kind", string(kind)), zap.String("code", code), zap.Error(err))
	}
	return ok, nil
}

// MarkExists records a successful write.
func (e *ExistenceCache) MarkExists(ctx context.Context, kind Kind, code string) {
	if err := e.cache.Put(ctx, existenceKey(kind, code), "1", e.ttl); err != nil {
		e.logger.Warn("existence cache write failed", zap.String("kind", string(kind)), zap.String("code", code), zap.Error(err))
	}
}

// Forget drops the cached answer; the next Check goes to the store.
func (e *ExistenceCache) Forget(ctx context.Context, kind Kind, code string) {
	if err := e.cache.Delete(ctx, existenceKey(kind, code)); err != nil {
		e.logger.Warn("existence cache invalidation failed", zap.String("kind", string(kind)), zap.String("code", code), zap.Error(err))
	}
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
