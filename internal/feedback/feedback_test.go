package feedback

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantExamples_EmptyStoreSaysNoneRecorded(t *testing.T) {
	s, err := New("", 32)
	require.NoError(t, err)
	assert.Equal(t, "No prior corrections recorded.", s.RelevantExamples("any claim", 3))
}

func TestLogThenRelevantExamples_ReturnsFormattedNearestMatch(t *testing.T) {
	s, err := New("", 32)
	require.NoError(t, err)

	_, err = s.Log("a typhoon will hit Da Nang tomorrow", "FALSE", "no storm data found", "TRUE", "storm confirmed by VNExpress after publish")
	require.NoError(t, err)

	out := s.RelevantExamples("a typhoon is approaching Da Nang this week", 3)
	assert.Contains(t, out, "a typhoon will hit Da Nang tomorrow")
	assert.Contains(t, out, "no storm data found")
	assert.Contains(t, out, "storm confirmed by VNExpress after publish")
}

func TestRelevantExamples_DefaultsNotesWhenEmpty(t *testing.T) {
	s, err := New("", 32)
	require.NoError(t, err)
	_, err = s.Log("claim text", "TRUE", "reason", "FALSE", "")
	require.NoError(t, err)

	out := s.RelevantExamples("claim text", 1)
	assert.Contains(t, out, "No notes provided.")
}

func TestRelevantExamples_CapsAtK(t *testing.T) {
	s, err := New("", 32)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.Log("repeated similar claim about elections", "TRUE", "r", "FALSE", "n")
		require.NoError(t, err)
	}

	out := s.RelevantExamples("repeated similar claim about elections", 2)
	assert.Equal(t, 2, strings.Count(out, "Example "))
}

func TestPersist_RoundTripsThroughDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedback.gob")

	s1, err := New(path, 32)
	require.NoError(t, err)
	_, err = s1.Log("the bridge collapsed last week", "TRUE", "matched a viral photo", "FALSE", "photo was from a different country")
	require.NoError(t, err)

	s2, err := New(path, 32)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Len())
	out := s2.RelevantExamples("the bridge collapsed last week", 3)
	assert.Contains(t, out, "photo was from a different country")
}

func TestLog_AssignsIncrementingIDs(t *testing.T) {
	s, err := New("", 32)
	require.NoError(t, err)

	e1, err := s.Log("claim one", "TRUE", "r", "FALSE", "n")
	require.NoError(t, err)
	e2, err := s.Log("claim two", "TRUE", "r", "FALSE", "n")
	require.NoError(t, err)

	assert.Equal(t, e1.ID+1, e2.ID)
}
