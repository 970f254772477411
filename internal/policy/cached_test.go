package policy

import (
	"context"
	"testing"
	"time"

	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/pkg/types"
)

// counterValue sums a counter family in the metrics registry.
func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, sample := range mf.GetMetric() {
			total += sample.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

// countingStore counts candidate lookups that reach the inner store.
type countingStore struct {
	*MemoryStore
	finds int
}

func (s *countingStore) FindCandidatePolicies(ctx context.Context, modelName, action string, asOf time.Time) ([]*types.PolicyRule, error) {
	s.finds++
	return s.MemoryStore.FindCandidatePolicies(ctx, modelName, action, asOf)
}

func newCached(t *testing.T, ttl time.Duration, rules ...*types.PolicyRule) (*CachedStore, *countingStore) {
	t.Helper()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	for _, r := range rules {
		if err := inner.Create(context.Background(), r); err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
	}
	return NewCachedStore(inner, 16, ttl), inner
}

func TestCachedStoreServesFromCache(t *testing.T) {
	cached, inner := newCached(t, time.Minute, rule("a", 1))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cached.FindCandidatePolicies(ctx, "course", "read", time.Now())
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("candidates = %v, want [a]", ids(got))
		}
	}
	if inner.finds != 1 {
		t.Errorf("inner lookups = %d, want 1 (rest served from cache)", inner.finds)
	}
}

func TestCachedStoreKeySeparatesModelAndAction(t *testing.T) {
	list := rule("list", 1)
	list.Actions = []string{"list"}
	cached, inner := newCached(t, time.Minute, rule("read", 1), list)
	ctx := context.Background()

	if got, _ := cached.FindCandidatePolicies(ctx, "course", "read", time.Now()); len(got) != 1 || got[0].ID != "read" {
		t.Errorf("read candidates = %v", ids(got))
	}
	if got, _ := cached.FindCandidatePolicies(ctx, "course", "list", time.Now()); len(got) != 1 || got[0].ID != "list" {
		t.Errorf("list candidates = %v", ids(got))
	}
	if inner.finds != 2 {
		t.Errorf("inner lookups = %d, want 2 distinct keys", inner.finds)
	}
}

func TestCachedStoreMutationsInvalidate(t *testing.T) {
	cached, inner := newCached(t, time.Minute, rule("a", 1))
	ctx := context.Background()

	if _, err := cached.FindCandidatePolicies(ctx, "course", "read", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := cached.Create(ctx, rule("b", 2)); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := cached.FindCandidatePolicies(ctx, "course", "read", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("candidates after create = %v, want both rules", ids(got))
	}
	if inner.finds != 2 {
		t.Errorf("inner lookups = %d, want 2 (cache cleared by mutation)", inner.finds)
	}

	updated := rule("b", 0)
	if err := cached.Update(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := cached.FindCandidatePolicies(ctx, "course", "read", time.Now()); len(got) != 2 || got[0].ID != "b" {
		t.Errorf("candidates after priority update = %v, want b first", ids(got))
	}

	if err := cached.Deactivate(ctx, "b"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if got, _ := cached.FindCandidatePolicies(ctx, "course", "read", time.Now()); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("candidates after deactivate = %v, want [a]", ids(got))
	}
}

func TestCachedStoreRefiltersCachedHits(t *testing.T) {
	// A rule expiring between lookups must drop out of cached results even
	// though the cache entry itself is still warm.
	soon := time.Now().Add(50 * time.Millisecond)
	expiring := rule("expiring", 1)
	expiring.TimeBasedAccess = &types.TimeBasedAccess{ValidUntil: &soon}
	cached, inner := newCached(t, time.Minute, expiring)
	ctx := context.Background()

	if got, _ := cached.FindCandidatePolicies(ctx, "course", "read", soon.Add(-time.Second)); len(got) != 1 {
		t.Fatalf("candidates before expiry = %v", ids(got))
	}
	got, err := cached.FindCandidatePolicies(ctx, "course", "read", soon.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("cached hit resurrected an expired rule: %v", ids(got))
	}
	if inner.finds != 1 {
		t.Errorf("inner lookups = %d, want 1 (second call was a cache hit)", inner.finds)
	}
}

func TestCachedStoreInvalidateHooks(t *testing.T) {
	cached, _ := newCached(t, time.Minute)
	ctx := context.Background()

	fired := 0
	cached.OnInvalidate(func(context.Context) { fired++ })

	if err := cached.Create(ctx, rule("a", 1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if fired != 1 {
		t.Errorf("invalidate hook fired %d times, want 1", fired)
	}

	// Remote invalidation clears the cache without re-firing the hook.
	if _, err := cached.FindCandidatePolicies(ctx, "course", "read", time.Now()); err != nil {
		t.Fatal(err)
	}
	cached.InvalidateLocal()
	if fired != 1 {
		t.Errorf("InvalidateLocal must not fire the hook, fired = %d", fired)
	}
}

func TestCachedStoreStats(t *testing.T) {
	cached, _ := newCached(t, time.Minute, rule("a", 1))
	ctx := context.Background()

	cached.FindCandidatePolicies(ctx, "course", "read", time.Now())
	cached.FindCandidatePolicies(ctx, "course", "read", time.Now())

	stats := cached.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestCachedStoreRecordsHitMissCounters(t *testing.T) {
	cached, _ := newCached(t, time.Minute, rule("a", 1))
	m := metrics.New("test")
	cached.SetMetrics(m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.FindCandidatePolicies(ctx, "course", "read", time.Now()); err != nil {
			t.Fatalf("find: %v", err)
		}
	}

	if got := counterValue(t, m, "test_cache_misses_total"); got != 1 {
		t.Errorf("misses counter = %v, want 1", got)
	}
	if got := counterValue(t, m, "test_cache_hits_total"); got != 2 {
		t.Errorf("hits counter = %v, want 2", got)
	}
}
