package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zerofake-go/verifier/internal/domain"
)

func TestClassify_Weather(t *testing.T) {
	r := Classify("What is the weather forecast for Hanoi tomorrow?")
	assert.True(t, r.IsWeather)
	assert.Equal(t, "Hanoi", r.CityCandidate)
	assert.Equal(t, domain.ScopeFuture, r.TimeScope)
	assert.True(t, r.HasDaysAhead)
	assert.Equal(t, 1, r.DaysAhead)
	assert.Equal(t, domain.ClaimWeather, r.ClaimTypeHint)
}

func TestClassify_CommonKnowledge(t *testing.T) {
	r := Classify("The sun rises in the east")
	assert.True(t, r.IsCommonKnowledge)
	assert.Equal(t, domain.ClaimCommonKnowledge, r.ClaimTypeHint)
}

func TestClassify_Historical(t *testing.T) {
	r := Classify("The war ended in 1975")
	assert.True(t, r.IsHistorical)
	assert.Equal(t, domain.ScopePast, r.TimeScope)
}

func TestClassify_Today(t *testing.T) {
	r := Classify("Is it raining today in Da Nang?")
	assert.True(t, r.IsWeather)
	assert.Equal(t, domain.ScopePresent, r.TimeScope)
	assert.Equal(t, 0, r.DaysAhead)
	assert.True(t, r.HasDaysAhead)
}

func TestClassify_PartOfDay(t *testing.T) {
	r := Classify("Will it rain this evening?")
	assert.Equal(t, domain.PartEvening, r.PartOfDay)
}

func TestClassify_ExplicitDaysAhead(t *testing.T) {
	r := Classify("weather in 3 days ahead")
	assert.True(t, r.HasDaysAhead)
	assert.Equal(t, 3, r.DaysAhead)
}

func TestClassify_SportsHint(t *testing.T) {
	r := Classify("The football championship final was a thriller")
	assert.Equal(t, domain.ClaimSports, r.ClaimTypeHint)
}

func TestClassify_NoCityFalsePositiveOnStopword(t *testing.T) {
	r := Classify("It happened on Monday afternoon")
	assert.NotEqual(t, "Monday", r.CityCandidate)
}

func TestExtractPartOfDay_DeterministicWhenClaimMentionsTwoTerms(t *testing.T) {
	const claim = "rain expected this morning into the evening"
	var first domain.PartOfDay
	for i := 0; i < 20; i++ {
		got := extractPartOfDay(normalizeText(claim))
		if i == 0 {
			first = got
		}
		assert.Equal(t, first, got, "extractPartOfDay must return the same answer on every call")
	}
	assert.Equal(t, domain.PartMorning, first)
}
