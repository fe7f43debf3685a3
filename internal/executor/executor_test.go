package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/errs"
	"github.com/zerofake-go/verifier/internal/weather"
)

type fakeSearch struct {
	byQuery map[string][]domain.EvidenceItem
	calls   []string
}

func (f *fakeSearch) Gather(ctx context.Context, rawQuery string) []domain.EvidenceItem {
	f.calls = append(f.calls, rawQuery)
	return f.byQuery[rawQuery]
}

type fakeWeather struct {
	current    *weather.Reading
	currentErr error
}

func (f *fakeWeather) Current(ctx context.Context, city string) (*weather.Reading, error) {
	return f.current, f.currentErr
}
func (f *fakeWeather) Forecast(ctx context.Context, city, targetDate string, partOfDay domain.PartOfDay) (*weather.Reading, error) {
	return f.current, f.currentErr
}
func (f *fakeWeather) Historical(ctx context.Context, city, date string) (*weather.Reading, error) {
	return f.current, f.currentErr
}

func newExecutor(sg searchGatherer, wp weatherProvider) *Executor {
	return &Executor{search: sg, weather: wp, perTaskTimeout: 5 * time.Second}
}

func TestExecute_RunsSearchAndWeatherConcurrently(t *testing.T) {
	fs := &fakeSearch{byQuery: map[string][]domain.EvidenceItem{
		"storm hanoi": {{URL: "https://vnexpress.net/storm", Snippet: "storm", RankScore: 0.8}},
	}}
	fw := &fakeWeather{current: &weather.Reading{Location: "Hanoi", TemperatureC: 30}}
	e := newExecutor(fs, fw)

	plan := &domain.Plan{
		RequiredTools: []domain.ToolCall{
			{Name: domain.ToolSearch, Search: &domain.SearchParams{Queries: []string{"storm hanoi"}}},
			{Name: domain.ToolWeather, Weather: &domain.WeatherParams{CityCanonical: "Hanoi"}},
		},
	}

	bundle, _ := e.Execute(context.Background(), plan)
	require.Len(t, bundle.Layer1Tools, 1)
	assert.Equal(t, domain.StatusSuccess, bundle.Layer1Tools[0].Status)
	require.Len(t, bundle.Layer3General, 1)
	assert.Equal(t, "https://vnexpress.net/storm", bundle.Layer3General[0].URL)
}

func TestExecute_SearchDedupesAcrossQueriesInOneTask(t *testing.T) {
	fs := &fakeSearch{byQuery: map[string][]domain.EvidenceItem{
		"q1": {{URL: "https://a.example.com", RankScore: 0.8}},
		"q2": {{URL: "https://a.example.com", RankScore: 0.8}, {URL: "https://b.example.com", RankScore: 0.8}},
	}}
	e := newExecutor(fs, &fakeWeather{})

	plan := &domain.Plan{RequiredTools: []domain.ToolCall{
		{Name: domain.ToolSearch, Search: &domain.SearchParams{Queries: []string{"q1", "q2"}}},
	}}

	bundle, _ := e.Execute(context.Background(), plan)
	assert.Len(t, bundle.Layer3General, 2)
}

func TestExecute_WeatherFallsBackToCLIOnProviderFailure(t *testing.T) {
	fw := &fakeWeather{currentErr: errs.New(errs.ProviderError, "openweathermap", assertErr("boom"))}
	e := newExecutor(&fakeSearch{}, fw)
	e.weatherCLIPath = "/bin/nonexistent-weather-cli-binary"

	plan := &domain.Plan{RequiredTools: []domain.ToolCall{
		{Name: domain.ToolWeather, Weather: &domain.WeatherParams{CityCanonical: "Hanoi"}},
	}}

	bundle, _ := e.Execute(context.Background(), plan)
	require.Len(t, bundle.Layer1Tools, 1)
	assert.Equal(t, domain.StatusAPIError, bundle.Layer1Tools[0].Status)
}

func TestExecute_WeatherHistoricalDateRequiredPropagatesStatus(t *testing.T) {
	fw := &fakeWeather{currentErr: errs.New(errs.HistoricalDateRequired, "weather", assertErr("no date"))}
	e := newExecutor(&fakeSearch{}, fw)

	plan := &domain.Plan{
		TimeReferences: domain.TimeReferences{TimeScope: domain.ScopePast},
		RequiredTools: []domain.ToolCall{
			{Name: domain.ToolWeather, Weather: &domain.WeatherParams{CityCanonical: "Hanoi"}},
		},
	}

	bundle, _ := e.Execute(context.Background(), plan)
	require.Len(t, bundle.Layer1Tools, 1)
	assert.Equal(t, domain.StatusHistoricalDateRequired, bundle.Layer1Tools[0].Status)
}

func TestExecute_FallbackSweepUnionsQueriesFromEverySearchCall(t *testing.T) {
	fs := &fakeSearch{byQuery: map[string][]domain.EvidenceItem{}}
	e := newExecutor(fs, &fakeWeather{})

	plan := &domain.Plan{RequiredTools: []domain.ToolCall{
		{Name: domain.ToolSearch, Search: &domain.SearchParams{Queries: []string{"first query"}}},
		{Name: domain.ToolSearch, Search: &domain.SearchParams{Queries: []string{"second query"}}},
	}}

	bundle, _ := e.Execute(context.Background(), plan)
	assert.True(t, bundle.Empty())

	// Two tasks search first/second once each, then the sweep searches
	// the union of both again: every query must appear, proving the
	// sweep does not stop after the first search ToolCall the way the
	// source's buggy loop does.
	assert.Contains(t, fs.calls, "first query")
	assert.Contains(t, fs.calls, "second query")
	counts := map[string]int{}
	for _, c := range fs.calls {
		counts[c]++
	}
	assert.Equal(t, 2, counts["first query"])
	assert.Equal(t, 2, counts["second query"])
}

func TestExecute_NoFallbackSweepWhenEvidenceAlreadyFound(t *testing.T) {
	fs := &fakeSearch{byQuery: map[string][]domain.EvidenceItem{
		"q": {{URL: "https://vnexpress.net/x", RankScore: 0.8}},
	}}
	e := newExecutor(fs, &fakeWeather{})

	plan := &domain.Plan{RequiredTools: []domain.ToolCall{
		{Name: domain.ToolSearch, Search: &domain.SearchParams{Queries: []string{"q"}}},
	}}

	bundle, _ := e.Execute(context.Background(), plan)
	require.Len(t, bundle.Layer3General, 1)
	assert.Equal(t, 1, len(fs.calls))
}

func TestExecute_EnrichesPlanFromWeatherAndSnippets(t *testing.T) {
	fs := &fakeSearch{byQuery: map[string][]domain.EvidenceItem{
		"q": {{URL: "https://vnexpress.net/x", Snippet: "it reached 38°C with 90% humidity", RankScore: 0.8}},
	}}
	fw := &fakeWeather{current: &weather.Reading{Location: "Da Nang", TemperatureC: 32, HumidityPct: 70}}
	e := newExecutor(fs, fw)

	plan := &domain.Plan{RequiredTools: []domain.ToolCall{
		{Name: domain.ToolSearch, Search: &domain.SearchParams{Queries: []string{"q"}}},
		{Name: domain.ToolWeather, Weather: &domain.WeatherParams{CityCanonical: "Da Nang"}},
	}}

	_, enriched := e.Execute(context.Background(), plan)
	assert.Contains(t, enriched.Entities.Locations, "Da Nang")
	assert.Contains(t, enriched.Entities.DataPoints, "32°C")
	assert.Contains(t, enriched.Entities.DataPoints, "38°C")
	assert.Contains(t, enriched.Entities.DataPoints, "90%")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
