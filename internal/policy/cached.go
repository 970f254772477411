package policy

import (
	"context"
	"time"

	"github.com/campuserp/abac-core/internal/cache"
	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/pkg/types"
)

// CachedStore wraps a Store with a bounded-TTL cache over candidate
// selection. Any mutation through this wrapper clears the cache, so staleness
// is limited to out-of-band writes and capped by the TTL. Reading fresh on
// every call remains the safe substitute: pass a nil cache to disable.
type CachedStore struct {
	inner   Store
	cache   cache.Cache
	metrics *metrics.Metrics

	// onInvalidate, when set, propagates mutations to other instances
	// (Redis pub/sub in production).
	onInvalidate func(ctx context.Context)
}

// NewCachedStore wraps a store with a candidate-selection cache.
func NewCachedStore(inner Store, capacity int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: cache.NewLRU(capacity, ttl),
	}
}

// SetMetrics attaches hit/miss counters. Nil is fine.
func (s *CachedStore) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// OnInvalidate registers a hook called after every mutation, in addition to
// the local cache clear.
func (s *CachedStore) OnInvalidate(fn func(ctx context.Context)) {
	s.onInvalidate = fn
}

// InvalidateLocal clears the local cache. Wired to the Redis subscriber so
// that mutations on other instances land here.
func (s *CachedStore) InvalidateLocal() {
	s.cache.Clear()
}

// Get retrieves a policy rule by id.
func (s *CachedStore) Get(ctx context.Context, id string) (*types.PolicyRule, error) {
	return s.inner.Get(ctx, id)
}

// GetAll retrieves all policy rules.
func (s *CachedStore) GetAll(ctx context.Context) ([]*types.PolicyRule, error) {
	return s.inner.GetAll(ctx)
}

// FindCandidatePolicies serves candidate sets from the cache when possible.
// The validity-interval filter is re-applied on every call so a cached set
// never resurrects an expired rule.
func (s *CachedStore) FindCandidatePolicies(ctx context.Context, modelName, action string, asOf time.Time) ([]*types.PolicyRule, error) {
	key := modelName + "\x00" + action

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheHit()
		rules := cached.([]*types.PolicyRule)
		out := make([]*types.PolicyRule, 0, len(rules))
		for _, rule := range rules {
			if rule.IsActive && withinValidity(rule, asOf) {
				out = append(out, rule)
			}
		}
		return out, nil
	}

	s.metrics.RecordCacheMiss()
	rules, err := s.inner.FindCandidatePolicies(ctx, modelName, action, asOf)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, rules)
	return rules, nil
}

// Create adds a rule and invalidates cached selections.
func (s *CachedStore) Create(ctx context.Context, rule *types.PolicyRule) error {
	if err := s.inner.Create(ctx, rule); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Update replaces a rule and invalidates cached selections.
func (s *CachedStore) Update(ctx context.Context, rule *types.PolicyRule) error {
	if err := s.inner.Update(ctx, rule); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Deactivate soft-deletes a rule and invalidates cached selections.
func (s *CachedStore) Deactivate(ctx context.Context, id string) error {
	if err := s.inner.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Count returns the number of stored rules.
func (s *CachedStore) Count(ctx context.Context) (int, error) {
	return s.inner.Count(ctx)
}

// Stats exposes cache statistics for the status endpoint.
func (s *CachedStore) Stats() cache.Stats {
	return s.cache.Stats()
}

func (s *CachedStore) invalidate(ctx context.Context) {
	s.cache.Clear()
	if s.onInvalidate != nil {
		s.onInvalidate(ctx)
	}
}
