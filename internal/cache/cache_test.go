package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/limits"
)

func newTestCache(t *testing.T, path string) *Cache {
	t.Helper()
	c, err := New(path, 32, 0.85, &limits.RefreshLimits{
		MaxItemsPerCycle: 10,
		CycleInterval:    time.Hour,
		Cooldown:         0,
		HotCategories:    []string{"finance", "breaking_news"},
	})
	require.NoError(t, err)
	return c
}

func TestLookup_MissOnEmptyCache(t *testing.T) {
	c := newTestCache(t, "")
	v, ok := c.Lookup("Hanoi will flood tomorrow")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestInsertThenLookup_HitsAboveThreshold(t *testing.T) {
	c := newTestCache(t, "")
	claim := "Ha Long Bay is closed for typhoon season"

	err := c.Insert(claim, domain.Verdict{Conclusion: domain.ConclusionTrue, Reason: "confirmed"}, domain.VolatilityStatic, "tourism")
	require.NoError(t, err)

	v, ok := c.Lookup(claim)
	require.True(t, ok)
	assert.Equal(t, domain.ConclusionTrue, v.Conclusion)
	assert.True(t, v.Cached)
}

func TestInsert_SkipsHighVolatilityClaims(t *testing.T) {
	c := newTestCache(t, "")
	claim := "stock index rose 2% today"

	err := c.Insert(claim, domain.Verdict{Conclusion: domain.ConclusionTrue}, domain.VolatilityHigh, "finance")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	_, ok := c.Lookup(claim)
	assert.False(t, ok)
}

func TestLookup_MissBelowThresholdOnUnrelatedClaim(t *testing.T) {
	c := newTestCache(t, "")
	require.NoError(t, c.Insert("Vietnam wins the regional football cup", domain.Verdict{Conclusion: domain.ConclusionTrue}, domain.VolatilityLow, "sports"))

	_, ok := c.Lookup("a volcano erupted in Indonesia overnight killing dozens")
	assert.False(t, ok)
}

func TestPersist_RoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.gob")

	c1 := newTestCache(t, path)
	claim := "the central bank held interest rates steady"
	require.NoError(t, c1.Insert(claim, domain.Verdict{Conclusion: domain.ConclusionTrue, Reason: "official statement"}, domain.VolatilityStatic, "finance"))

	c2 := newTestCache(t, path)
	v, ok := c2.Lookup(claim)
	require.True(t, ok)
	assert.Equal(t, "official statement", v.Reason)
}

func TestStatusOf_ClassifiesFreshStaleExpired(t *testing.T) {
	now := time.Now()
	rec := Record{Category: "breaking_news", LastVerifiedAt: now.Add(-30 * time.Minute)}
	assert.Equal(t, StatusFresh, StatusOf(rec, now))

	rec.LastVerifiedAt = now.Add(-90 * time.Minute)
	assert.Equal(t, StatusStale, StatusOf(rec, now))

	rec.LastVerifiedAt = now.Add(-3 * time.Hour)
	assert.Equal(t, StatusExpired, StatusOf(rec, now))
}

func TestRunRefreshCycle_HealsStaleHotEntriesOrderedByHitCount(t *testing.T) {
	c := newTestCache(t, "")
	old := time.Now().Add(-8 * time.Hour)

	require.NoError(t, c.Insert("claim A about finance", domain.Verdict{Conclusion: domain.ConclusionTrue}, domain.VolatilityLow, "finance"))
	require.NoError(t, c.Insert("claim B about finance", domain.Verdict{Conclusion: domain.ConclusionTrue}, domain.VolatilityLow, "finance"))

	c.mu.Lock()
	for i := range c.records {
		c.records[i].LastVerifiedAt = old
	}
	c.records[1].HitCount = 5
	c.mu.Unlock()

	var verifiedOrder []string
	verify := func(ctx context.Context, claimText string) (*domain.Verdict, error) {
		verifiedOrder = append(verifiedOrder, claimText)
		return &domain.Verdict{Conclusion: domain.ConclusionFalse, Reason: "healed"}, nil
	}

	c.RunRefreshCycle(context.Background(), verify)

	require.Len(t, verifiedOrder, 2)
	assert.Equal(t, "claim B about finance", verifiedOrder[0])

	v, ok := c.Lookup("claim A about finance")
	require.True(t, ok)
	assert.Equal(t, domain.ConclusionFalse, v.Conclusion)
}

func TestRunRefreshCycle_IgnoresNonHotCategories(t *testing.T) {
	c := newTestCache(t, "")
	require.NoError(t, c.Insert("a claim about weather patterns", domain.Verdict{Conclusion: domain.ConclusionTrue}, domain.VolatilityLow, "weather"))

	c.mu.Lock()
	c.records[0].LastVerifiedAt = time.Now().Add(-8 * 24 * time.Hour)
	c.mu.Unlock()

	called := false
	verify := func(ctx context.Context, claimText string) (*domain.Verdict, error) {
		called = true
		return &domain.Verdict{}, nil
	}
	c.RunRefreshCycle(context.Background(), verify)
	assert.False(t, called)
}

func TestStartRefresher_StopsCleanly(t *testing.T) {
	c := newTestCache(t, "")
	c.refreshLimits.CycleInterval = time.Millisecond
	verify := func(ctx context.Context, claimText string) (*domain.Verdict, error) {
		return &domain.Verdict{}, nil
	}
	c.StartRefresher(context.Background(), verify)
	time.Sleep(5 * time.Millisecond)
	c.Stop()
}
