package modelgw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerofake-go/verifier/internal/errs"
)

type fakeProvider struct {
	name string
	text string
	err  error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func TestGenerateText_CompoundAdvancesPastRateLimit(t *testing.T) {
	first := &fakeProvider{name: "a", err: errs.New(errs.RateLimit, "a", errors.New("429"))}
	second := &fakeProvider{name: "b", text: "ok"}
	gw := New(ModeCompound, 5*time.Second, first, second)

	text, err := gw.GenerateText(context.Background(), "claim")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateText_CompoundAdvancesPastTimeoutEmptyAndMalformed(t *testing.T) {
	for _, kind := range []errs.Kind{errs.Timeout, errs.Empty, errs.Malformed, errs.ProviderError} {
		first := &fakeProvider{name: "a", err: errs.New(kind, "a", errors.New("boom"))}
		second := &fakeProvider{name: "b", text: "ok"}
		gw := New(ModeCompound, 5*time.Second, first, second)

		text, err := gw.GenerateText(context.Background(), "claim")
		require.NoError(t, err, "kind %s should fall through to the next provider", kind)
		assert.Equal(t, "ok", text)
	}
}

func TestGenerateText_CompoundSurfacesLastErrorWhenChainExhausted(t *testing.T) {
	first := &fakeProvider{name: "a", err: errs.New(errs.Timeout, "a", errors.New("slow"))}
	second := &fakeProvider{name: "b", err: errs.New(errs.ProviderError, "b", errors.New("down"))}
	gw := New(ModeCompound, 5*time.Second, first, second)

	_, err := gw.GenerateText(context.Background(), "claim")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.ProviderError, kind)
}

func TestGenerateText_SingleModeNeverFallsBack(t *testing.T) {
	first := &fakeProvider{name: "a", err: errs.New(errs.RateLimit, "a", errors.New("429"))}
	second := &fakeProvider{name: "b", text: "ok"}
	gw := New(ModeSingle, 5*time.Second, first, second)

	_, err := gw.GenerateText(context.Background(), "claim")
	assert.Error(t, err)
}

func TestGenerateText_NoProvidersConfigured(t *testing.T) {
	gw := New(ModeCompound, 5*time.Second)
	_, err := gw.GenerateText(context.Background(), "claim")
	assert.Error(t, err)
}

func TestExtractJSONObject_PullsFirstBalancedObjectFromProse(t *testing.T) {
	s := `Here is my answer: {"conclusion": "TRUE", "nested": {"a": 1}} thanks`
	got := ExtractJSONObject(s)
	assert.Equal(t, `{"conclusion": "TRUE", "nested": {"a": 1}}`, got)
}

func TestExtractJSONObject_NoObjectReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractJSONObject("no json here"))
}

func TestClassifyOpenAIError_DeadlineExceededIsTimeout(t *testing.T) {
	err := classifyOpenAIError("openai", context.DeadlineExceeded)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.Timeout, kind)
}

func TestClassifyGenkitError_DeadlineExceededIsTimeout(t *testing.T) {
	err := classifyGenkitError("gemini", context.DeadlineExceeded)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.Timeout, kind)
}

func TestClassifyOpenAIError_RateLimitSignal(t *testing.T) {
	err := classifyOpenAIError("openai", errors.New("received 429 Too Many Requests"))
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.RateLimit, kind)
}
