package synthesizer

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/limits"
	"github.com/zerofake-go/verifier/internal/modelgw"
)

type fakeProvider struct {
	text string
	err  error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestSynthesizer(responseJSON string) *Synthesizer {
	gw := modelgw.New(modelgw.ModeSingle, 5*time.Second, &fakeProvider{text: responseJSON})
	return New(gw, nil, "Bundle: {evidence_bundle_json}\nClaim: {claim}\nDate: {current_date}")
}

func TestSynthesize_ParsesModelVerdict(t *testing.T) {
	s := newTestSynthesizer(`{"conclusion":"TRUE","reason":"two reuters stories agree","key_evidence_snippet":"x happened","key_evidence_source":"reuters.com","confidence":0.9}`)

	v := s.Synthesize(context.Background(), "some claim", &domain.EvidenceBundle{}, "2026-07-31", "")
	require.NotNil(t, v)
	assert.Equal(t, domain.ConclusionTrue, v.Conclusion)
	assert.Equal(t, "reuters.com", v.KeyEvidenceSource)
	assert.False(t, v.Cached)
}

func TestSynthesize_NormalizesVietnameseConclusion(t *testing.T) {
	s := newTestSynthesizer(`{"conclusion":"TIN GIẢ","reason":"contradicted by fact-check"}`)

	v := s.Synthesize(context.Background(), "some claim", &domain.EvidenceBundle{}, "2026-07-31", "")
	assert.Equal(t, domain.ConclusionFalse, v.Conclusion)
}

func TestSynthesize_FallsBackToHeuristicOnModelFailure(t *testing.T) {
	gw := modelgw.New(modelgw.ModeSingle, 5*time.Second, &fakeProvider{err: assertErr("boom")})
	s := New(gw, nil, "{claim}")

	bundle := &domain.EvidenceBundle{
		Layer2HighTrust: []domain.EvidenceItem{
			{SourceDomain: "vnexpress.net", Snippet: "first report", Date: "2026-07-30"},
			{SourceDomain: "bbc.com", Snippet: "second report", Date: "2026-07-29"},
		},
	}

	v := s.Synthesize(context.Background(), "claim", bundle, "2026-07-31", "")
	require.NotNil(t, v)
	assert.Equal(t, domain.ConclusionTrue, v.Conclusion)
	assert.Equal(t, "vnexpress.net", v.KeyEvidenceSource)
}

func TestSynthesize_HeuristicUsesSuccessfulWeatherWhenL2Insufficient(t *testing.T) {
	gw := modelgw.New(modelgw.ModeSingle, 5*time.Second, &fakeProvider{text: ""})
	s := New(gw, nil, "{claim}")

	bundle := &domain.EvidenceBundle{
		Layer1Tools: []domain.ToolResult{
			{ToolName: domain.ToolWeather, Status: domain.StatusSuccess, Data: map[string]any{"location": "Hanoi", "description": "clear sky"}},
		},
	}

	v := s.Synthesize(context.Background(), "claim", bundle, "2026-07-31", "")
	assert.Equal(t, domain.ConclusionTrue, v.Conclusion)
	assert.Equal(t, "Hanoi", v.KeyEvidenceSource)
	assert.Equal(t, "clear sky", v.KeyEvidenceSnippet)
}

func TestSynthesize_HeuristicUnverifiedWhenNoEvidence(t *testing.T) {
	gw := modelgw.New(modelgw.ModeSingle, 5*time.Second, &fakeProvider{text: "not json"})
	s := New(gw, nil, "{claim}")

	v := s.Synthesize(context.Background(), "claim", &domain.EvidenceBundle{}, "2026-07-31", "")
	assert.Equal(t, domain.ConclusionUnverified, v.Conclusion)
}

func TestTrim_CapsEachTierAndCollapsesSnippets(t *testing.T) {
	s := New(nil, limits.NewEvidenceLimiter(&limits.EvidenceLimits{
		MaxL1Entries: 1, MaxL2Entries: 1, MaxL3Entries: 1, MaxL4Entries: 1, MaxSnippetChars: 10,
	}), "")

	bundle := &domain.EvidenceBundle{
		Layer2HighTrust: []domain.EvidenceItem{
			{Snippet: "line one\nline two   has   extra   spaces"},
			{Snippet: "second item"},
		},
	}

	trimmed := s.trim(bundle)
	require.Len(t, trimmed.Layer2HighTrust, 1)
	assert.LessOrEqual(t, len(trimmed.Layer2HighTrust[0].Snippet), 10)
	assert.NotContains(t, trimmed.Layer2HighTrust[0].Snippet, "\n")
}

func TestTrimSnippet_SplitsOnRunesNotBytes(t *testing.T) {
	s := strings.Repeat("à", 20)
	out := trimSnippet(s, 10)
	assert.Equal(t, 10, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
}

func TestRenderPrompt_SubstitutesAllPlaceholders(t *testing.T) {
	out := renderPrompt("B={evidence_bundle_json} C={claim} D={current_date} F={feedback_examples}", "{}", "claim text", "2026-07-31", "ex1")
	assert.Equal(t, "B={} C=claim text D=2026-07-31 F=ex1", out)
}
