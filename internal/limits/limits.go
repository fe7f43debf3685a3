// Package limits provides bounded-collection helpers used by the evidence
// trimmer (C9) and the cache's background refresher (C10) to cap how much
// data either stage is allowed to hold or process per cycle. Adapted from
// the teacher's ContextLimiter shape: a struct of Max* caps, a Validate,
// and eviction helpers.
package limits

import (
	"fmt"
	"time"
)

// EvidenceLimits bounds how many items the Synthesizer keeps per tier and
// how long a snippet may be.
type EvidenceLimits struct {
	MaxL1Entries    int           `json:"max_l1_entries"`
	MaxL2Entries    int           `json:"max_l2_entries"`
	MaxL3Entries    int           `json:"max_l3_entries"`
	MaxL4Entries    int           `json:"max_l4_entries"`
	MaxSnippetChars int           `json:"max_snippet_chars"`
	MaxEntryAge     time.Duration `json:"max_entry_age"`
}

// DefaultEvidenceLimits reproduces the caps spec.md §4.9 and §6 name.
func DefaultEvidenceLimits() *EvidenceLimits {
	return &EvidenceLimits{
		MaxL1Entries:    3,
		MaxL2Entries:    5,
		MaxL3Entries:    5,
		MaxL4Entries:    2,
		MaxSnippetChars: 280,
		MaxEntryAge:     24 * time.Hour,
	}
}

// EvidenceLimiter applies an EvidenceLimits policy.
type EvidenceLimiter struct {
	limits *EvidenceLimits
}

// NewEvidenceLimiter creates a limiter, falling back to defaults when nil.
func NewEvidenceLimiter(limits *EvidenceLimits) *EvidenceLimiter {
	if limits == nil {
		limits = DefaultEvidenceLimits()
	}
	return &EvidenceLimiter{limits: limits}
}

// GetLimits returns the current limits.
func (el *EvidenceLimiter) GetLimits() *EvidenceLimits {
	return el.limits
}

// UpdateLimits validates and swaps in new limits.
func (el *EvidenceLimiter) UpdateLimits(limits *EvidenceLimits) error {
	if limits.MaxL1Entries <= 0 {
		return fmt.Errorf("MaxL1Entries must be positive")
	}
	if limits.MaxL2Entries <= 0 {
		return fmt.Errorf("MaxL2Entries must be positive")
	}
	if limits.MaxL3Entries <= 0 {
		return fmt.Errorf("MaxL3Entries must be positive")
	}
	if limits.MaxL4Entries <= 0 {
		return fmt.Errorf("MaxL4Entries must be positive")
	}
	if limits.MaxSnippetChars <= 0 {
		return fmt.Errorf("MaxSnippetChars must be positive")
	}
	el.limits = limits
	return nil
}

// ShouldCleanup reports whether a timestamp is old enough to evict under
// the configured MaxEntryAge.
func (el *EvidenceLimiter) ShouldCleanup(t time.Time) bool {
	return t.Before(time.Now().Add(-el.limits.MaxEntryAge))
}

// CapSlice truncates s to at most max elements, keeping the prefix (the
// caller is expected to have already sorted by the tier's ordering rule).
func CapSlice[T any](s []T, max int) []T {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// ValidateLimits rejects absurdly large configured caps.
func (el *EvidenceLimiter) ValidateLimits() error {
	if el.limits.MaxL1Entries > 1000 {
		return fmt.Errorf("MaxL1Entries too large (> 1000)")
	}
	if el.limits.MaxL2Entries > 1000 {
		return fmt.Errorf("MaxL2Entries too large (> 1000)")
	}
	if el.limits.MaxL3Entries > 1000 {
		return fmt.Errorf("MaxL3Entries too large (> 1000)")
	}
	if el.limits.MaxL4Entries > 1000 {
		return fmt.Errorf("MaxL4Entries too large (> 1000)")
	}
	if el.limits.MaxSnippetChars > 100000 {
		return fmt.Errorf("MaxSnippetChars too large (> 100000)")
	}
	return nil
}

// RefreshLimits bounds how many stale cache entries the background
// refresher may re-verify per cycle and how long it sleeps between them.
type RefreshLimits struct {
	MaxItemsPerCycle int
	CycleInterval    time.Duration
	Cooldown         time.Duration
	HotCategories    []string
}

// DefaultRefreshLimits reproduces app/background_worker.py's constants.
func DefaultRefreshLimits() *RefreshLimits {
	return &RefreshLimits{
		MaxItemsPerCycle: 10,
		CycleInterval:    300 * time.Second,
		Cooldown:         2 * time.Second,
		HotCategories:    []string{"finance", "breaking_news", "sports", "politics"},
	}
}
