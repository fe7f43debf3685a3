// Package feedback implements the Feedback Store (C11): it records human
// corrections to past verdicts, keyed by the claim's embedding, and on
// later claims retrieves the k nearest past corrections formatted for
// injection into the Planner and Synthesizer prompts. Grounded on
// app/feedback.py (init_feedback_db, log_human_feedback,
// get_relevant_examples), whose IndexIDMap2 is mirrored here with an
// explicit integer ID per vector rather than positional indexing.
package feedback

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zerofake-go/verifier/internal/embedding"
)

// DefaultK is how many nearest past corrections get injected into a
// prompt by default, matching get_relevant_examples' limit=3.
const DefaultK = 3

// Entry is one recorded human correction.
type Entry struct {
	ID               int
	OriginalClaim    string
	SystemConclusion string
	SystemReason     string
	HumanCorrection  string
	Notes            string
	CreatedAt        time.Time
}

type record struct {
	Entry  Entry
	Vector embedding.Vector
}

type snapshot struct {
	Dim     int
	Records []record
}

// Store is the k-NN feedback index plus its record log.
type Store struct {
	mu      sync.RWMutex
	dim     int
	path    string
	records []record
	nextID  int
}

// New builds a Store, loading any persisted snapshot from path.
func New(path string, dim int) (*Store, error) {
	if dim <= 0 {
		dim = 256
	}
	s := &Store{dim: dim, path: path}
	if path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("feedback: reading snapshot: %w", err)
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("feedback: decoding snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = snap.Dim
	s.records = snap.Records
	for _, r := range s.records {
		if r.Entry.ID >= s.nextID {
			s.nextID = r.Entry.ID + 1
		}
	}
	return nil
}

func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot{Dim: s.dim, Records: s.records}); err != nil {
		return fmt.Errorf("feedback: encoding snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("feedback: creating snapshot dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".feedback-*.tmp")
	if err != nil {
		return fmt.Errorf("feedback: creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("feedback: writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("feedback: closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("feedback: renaming snapshot into place: %w", err)
	}
	return nil
}

// Log records a human correction and indexes it by its claim's embedding.
// Mirrors log_human_feedback.
func (s *Store) Log(originalClaim, systemConclusion, systemReason, humanCorrection, notes string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		ID:               s.nextID,
		OriginalClaim:    originalClaim,
		SystemConclusion: systemConclusion,
		SystemReason:     systemReason,
		HumanCorrection:  humanCorrection,
		Notes:            notes,
		CreatedAt:        time.Now(),
	}
	s.nextID++

	s.records = append(s.records, record{Entry: e, Vector: embedding.Embed(originalClaim, s.dim)})
	if err := s.persist(); err != nil {
		return e, err
	}
	return e, nil
}

type scored struct {
	entry Entry
	score float64
}

// RelevantExamples embeds claimText, finds the k nearest past corrections
// by inner product, and formats them for direct prompt injection (ties
// broken by most-recent-first). Mirrors get_relevant_examples.
func (s *Store) RelevantExamples(claimText string, k int) string {
	if k <= 0 {
		k = DefaultK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return "No prior corrections recorded."
	}

	q := embedding.Embed(claimText, s.dim)
	candidates := make([]scored, 0, len(s.records))
	for _, r := range s.records {
		candidates = append(candidates, scored{entry: r.Entry, score: embedding.Dot(q, r.Vector)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.CreatedAt.After(candidates[j].entry.CreatedAt)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	var b strings.Builder
	for i, c := range candidates {
		notes := c.entry.Notes
		if notes == "" {
			notes = "No notes provided."
		}
		fmt.Fprintf(&b, "Example %d:\n- Original claim: %q\n- System verdict (WRONG): %s - %s\n- Correct verdict: %s\n- Notes: %s\n\n",
			i+1, c.entry.OriginalClaim, c.entry.SystemConclusion, c.entry.SystemReason, c.entry.HumanCorrection, notes)
	}
	return strings.TrimSpace(b.String())
}

// Len reports how many corrections are recorded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
