// Package cache implements the Semantic Cache (C10): an inner-product ANN
// index over claim embeddings backed by a companion record store, plus a
// background refresher that re-verifies stale hot-category entries.
// Grounded on app/kb.py (init_kb, search_knowledge_base,
// add_to_knowledge_base) and app/background_worker.py's healing cycle, with
// the ticker/stopChan shutdown shape adapted from
// internal/driven/context_manager.go's SiteContextManager.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/embedding"
	"github.com/zerofake-go/verifier/internal/limits"
)

// DefaultSimilarityThreshold is the top-1 cosine-similarity cutoff above
// which a lookup counts as a hit, matching app/kb.py's 0.85.
const DefaultSimilarityThreshold = 0.85

// DefaultDimension is the embedding width shared with internal/embedding,
// fixed at 768 per the knowledge base's configured vector size.
const DefaultDimension = 768

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zerofake_cache_lookups_total",
		Help: "Semantic cache lookups by outcome (hit or miss).",
	}, []string{"outcome"})
	cacheInserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zerofake_cache_inserts_total",
		Help: "Verdicts persisted into the semantic cache.",
	})
	refreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zerofake_cache_refresh_cycles_total",
		Help: "Background refresh cycles by outcome (healed or unchanged).",
	}, []string{"outcome"})
)

// CategoryTTL maps a hot category to how long an entry stays FRESH.
var CategoryTTL = map[string]time.Duration{
	"breaking_news": 1 * time.Hour,
	"finance":       6 * time.Hour,
	"sports":        12 * time.Hour,
	"politics":      24 * time.Hour,
}

const defaultTTL = 7 * 24 * time.Hour

// Status is an entry's freshness relative to its category TTL.
type Status string

const (
	StatusFresh   Status = "FRESH"
	StatusStale   Status = "STALE"
	StatusExpired Status = "EXPIRED"
)

// Record is one persisted verdict plus the bookkeeping the refresher and
// staleness model need.
type Record struct {
	VectorID       int
	ClaimText      string
	Verdict        domain.Verdict
	Category       string
	Volatility     domain.Volatility
	HitCount       int
	LastVerifiedAt time.Time
}

// snapshot is the gob-encoded shape persisted to disk: the flat vector
// list plus the parallel record slice (index i of each belongs together).
type snapshot struct {
	Dim     int
	Vectors []embedding.Vector
	Records []Record
}

// Cache is the Semantic Cache: a flat inner-product index searched by
// linear scan (exact, matching faiss.IndexFlatIP, not an approximation)
// plus its record store, an LRU of recently-read records for hot lookups,
// and gob persistence to disk.
type Cache struct {
	mu        sync.RWMutex
	dim       int
	threshold float64
	path      string

	vectors []embedding.Vector
	records []Record

	hot *lru.Cache[int, Record]

	refreshLimits *limits.RefreshLimits
	stopChan      chan struct{}
	ticker        *time.Ticker
}

// Verify is the shape the background refresher needs to re-run a claim
// through the full pipeline; internal/pipeline supplies the real
// implementation, tests supply a fake.
type Verify func(ctx context.Context, claimText string) (*domain.Verdict, error)

// New builds a Cache, loading a persisted snapshot from path if present.
// refreshLimits falls back to limits.DefaultRefreshLimits when nil.
func New(path string, dim int, threshold float64, refreshLimits *limits.RefreshLimits) (*Cache, error) {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if refreshLimits == nil {
		refreshLimits = limits.DefaultRefreshLimits()
	}
	hot, err := lru.New[int, Record](256)
	if err != nil {
		return nil, fmt.Errorf("cache: building hot LRU: %w", err)
	}
	c := &Cache{
		dim:           dim,
		threshold:     threshold,
		path:          path,
		hot:           hot,
		refreshLimits: refreshLimits,
		stopChan:      make(chan struct{}),
	}
	if path != "" {
		if err := c.load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: reading snapshot: %w", err)
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("cache: decoding snapshot: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dim = snap.Dim
	c.vectors = snap.Vectors
	c.records = snap.Records
	return nil
}

// persist writes the index and record store atomically: encode to a temp
// file in the same directory, then rename over the real path. Caller must
// hold c.mu for writing (or have already copied out what it needs).
func (c *Cache) persist() error {
	if c.path == "" {
		return nil
	}
	var buf bytes.Buffer
	snap := snapshot{Dim: c.dim, Vectors: c.vectors, Records: c.records}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("cache: encoding snapshot: %w", err)
	}
	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cache: creating snapshot dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cache: writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: renaming snapshot into place: %w", err)
	}
	return nil
}

// Lookup embeds claimText, finds the top-1 most similar stored vector,
// and returns the matching record's verdict (with Cached stamped true) if
// its similarity clears the configured threshold. A nil return means a
// cache miss.
func (c *Cache) Lookup(claimText string) (*domain.Verdict, bool) {
	q := embedding.Embed(claimText, c.dim)

	c.mu.Lock()
	defer c.mu.Unlock()

	bestIdx := -1
	bestScore := -1.0
	for i, v := range c.vectors {
		score := embedding.Dot(q, v)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore < c.threshold {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	rec := c.records[bestIdx]
	rec.HitCount++
	c.records[bestIdx] = rec
	c.hot.Add(rec.VectorID, rec)
	cacheLookups.WithLabelValues("hit").Inc()

	v := rec.Verdict
	v.Cached = true
	return &v, true
}

// Insert embeds claimText and appends it to the index and record store,
// but only when volatility is static or low — a claim whose truth can
// change hour to hour (high/medium volatility) is never worth caching.
// The pair is persisted atomically before Insert returns.
func (c *Cache) Insert(claimText string, verdict domain.Verdict, volatility domain.Volatility, category string) error {
	if volatility != domain.VolatilityStatic && volatility != domain.VolatilityLow {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vec := embedding.Embed(claimText, c.dim)
	id := len(c.records)
	rec := Record{
		VectorID:       id,
		ClaimText:      claimText,
		Verdict:        verdict,
		Category:       category,
		Volatility:     volatility,
		LastVerifiedAt: time.Now(),
	}
	c.vectors = append(c.vectors, vec)
	c.records = append(c.records, rec)
	cacheInserts.Inc()

	return c.persist()
}

// StatusOf derives an entry's freshness from its category's TTL (falling
// back to defaultTTL for categories not in CategoryTTL) and how long ago
// it was last verified.
func StatusOf(rec Record, now time.Time) Status {
	ttl, ok := CategoryTTL[rec.Category]
	if !ok {
		ttl = defaultTTL
	}
	age := now.Sub(rec.LastVerifiedAt)
	switch {
	case age < ttl:
		return StatusFresh
	case age < 2*ttl:
		return StatusStale
	default:
		return StatusExpired
	}
}

// staleHotEntries selects STALE records in a hot category, ordered by
// hit_count descending then last_verified_at ascending, bounded by
// MaxItemsPerCycle. Mirrors get_stale_entries.
func (c *Cache) staleHotEntries() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	isHot := make(map[string]bool, len(c.refreshLimits.HotCategories))
	for _, cat := range c.refreshLimits.HotCategories {
		isHot[cat] = true
	}

	var candidates []Record
	for _, rec := range c.records {
		if !isHot[rec.Category] {
			continue
		}
		if StatusOf(rec, now) != StatusStale {
			continue
		}
		candidates = append(candidates, rec)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].HitCount != candidates[j].HitCount {
			return candidates[i].HitCount > candidates[j].HitCount
		}
		return candidates[i].LastVerifiedAt.Before(candidates[j].LastVerifiedAt)
	})

	max := c.refreshLimits.MaxItemsPerCycle
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// heal re-verifies a single stale entry and writes its refreshed verdict
// back in place; on failure it only bumps LastVerifiedAt so the entry
// doesn't get re-selected every cycle. Mirrors heal_entry's fallback.
func (c *Cache) heal(ctx context.Context, rec Record, verify Verify) bool {
	verdict, err := verify(ctx, rec.ClaimText)

	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.VectorID < 0 || rec.VectorID >= len(c.records) {
		return false
	}
	stored := c.records[rec.VectorID]
	stored.LastVerifiedAt = time.Now()
	if err == nil && verdict != nil {
		stored.Verdict = *verdict
		c.records[rec.VectorID] = stored
		_ = c.persist()
		return true
	}
	c.records[rec.VectorID] = stored
	_ = c.persist()
	return false
}

// RunRefreshCycle runs one healing pass over STALE hot-category entries.
// Exported separately from StartRefresher so tests and cron-style callers
// can drive a single cycle deterministically.
func (c *Cache) RunRefreshCycle(ctx context.Context, verify Verify) {
	stale := c.staleHotEntries()
	healed := 0
	for _, rec := range stale {
		if c.heal(ctx, rec, verify) {
			healed++
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.refreshLimits.Cooldown):
		}
	}
	if healed > 0 {
		refreshCycles.WithLabelValues("healed").Add(float64(healed))
	} else {
		refreshCycles.WithLabelValues("unchanged").Inc()
	}
}

// StartRefresher launches the background self-healing loop on its own
// ticker, stoppable via Stop.
func (c *Cache) StartRefresher(ctx context.Context, verify Verify) {
	ticker := time.NewTicker(c.refreshLimits.CycleInterval)
	c.ticker = ticker
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.RunRefreshCycle(ctx, verify)
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop halts the background refresher. Safe to call once.
func (c *Cache) Stop() {
	if c.ticker != nil {
		close(c.stopChan)
		c.ticker.Stop()
		c.ticker = nil
	}
}

// Len reports how many verdicts are currently stored, mostly for tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
