// Package executor implements the Tool Executor (C8): it runs every
// ToolCall in a Plan concurrently, tiers the resulting evidence by trust,
// falls back to a local CLI when the weather API fails, sweeps with a
// consolidated search when nothing came back at all, and enriches the
// plan's entities from whatever evidence was found. Grounded on
// app/tool_executor.py's execute_tool_plan, _execute_weather_tool, and
// enrich_plan_with_evidence.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/errs"
	"github.com/zerofake-go/verifier/internal/ranker"
	"github.com/zerofake-go/verifier/internal/search"
	"github.com/zerofake-go/verifier/internal/weather"
)

const defaultPerTaskTimeout = 20 * time.Second

// searchGatherer is the slice of search.Orchestrator the executor needs,
// narrowed so tests can substitute a fake instead of standing up real
// provider HTTP endpoints for every case.
type searchGatherer interface {
	Gather(ctx context.Context, rawQuery string) []domain.EvidenceItem
}

// weatherProvider is the slice of weather.Provider the executor needs.
type weatherProvider interface {
	Current(ctx context.Context, city string) (*weather.Reading, error)
	Forecast(ctx context.Context, city, targetDate string, partOfDay domain.PartOfDay) (*weather.Reading, error)
	Historical(ctx context.Context, city, date string) (*weather.Reading, error)
}

// Executor wires the Search Orchestrator and the Weather Provider behind
// the single Execute operation.
type Executor struct {
	search         searchGatherer
	weather        weatherProvider
	weatherCLIPath string
	perTaskTimeout time.Duration
}

// New builds an Executor. weatherCLIPath is config.Config.WeatherCLIPath;
// an empty path disables the CLI fallback rather than erroring.
func New(searchOrch *search.Orchestrator, weatherProvider *weather.Provider, weatherCLIPath string, perTaskTimeout time.Duration) *Executor {
	if perTaskTimeout <= 0 {
		perTaskTimeout = defaultPerTaskTimeout
	}
	return &Executor{
		search:         searchOrch,
		weather:        weatherProvider,
		weatherCLIPath: weatherCLIPath,
		perTaskTimeout: perTaskTimeout,
	}
}

// Execute runs one task per ToolCall in plan.RequiredTools concurrently.
// A failing task never cancels its siblings: each tool reports its own
// outcome (an empty evidence slice, or an error-status ToolResult) and
// the others keep running. If every tier comes back empty and the plan
// carried at least one search call, a final consolidated sweep searches
// the union of every planned query before giving up. The plan returned
// is enriched in place with whatever entities the evidence revealed.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan) (*domain.EvidenceBundle, *domain.Plan) {
	bundle := &domain.EvidenceBundle{}
	var mu sync.Mutex

	// A bare errgroup.Group (no WithContext) runs every task to
	// completion regardless of a sibling's outcome: none of these
	// goroutines ever return a non-nil error, so nothing ever triggers
	// errgroup's cancel-on-first-error behavior.
	var g errgroup.Group
	for i := range plan.RequiredTools {
		tc := plan.RequiredTools[i]
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(ctx, e.perTaskTimeout)
			defer cancel()

			switch tc.Name {
			case domain.ToolSearch:
				if tc.Search == nil {
					return nil
				}
				items := e.runSearchTask(taskCtx, tc.Search.Queries)
				mu.Lock()
				appendTiered(bundle, items)
				mu.Unlock()
			case domain.ToolWeather:
				if tc.Weather == nil {
					return nil
				}
				result := e.runWeatherTask(taskCtx, tc.Weather, plan.TimeReferences.TimeScope)
				mu.Lock()
				bundle.Layer1Tools = append(bundle.Layer1Tools, result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if bundle.Empty() {
		if searchCalls := plan.SearchCalls(); len(searchCalls) > 0 {
			// Union every planned query across every search ToolCall, not
			// just the first one: the source's fallback sweep stops after
			// examining a single required_tools entry regardless of its
			// kind, silently dropping queries from any later search call.
			sweepCtx, cancel := context.WithTimeout(ctx, e.perTaskTimeout)
			items := e.runSearchTask(sweepCtx, unionQueries(searchCalls))
			cancel()
			appendTiered(bundle, items)
		}
	}

	search.SortByDateDesc(bundle.Layer2HighTrust)
	search.SortByDateDesc(bundle.Layer3General)
	search.SortByDateDesc(bundle.Layer4SocialLow)

	enrichPlan(plan, bundle)
	return bundle, plan
}

func (e *Executor) runSearchTask(ctx context.Context, queries []string) []domain.EvidenceItem {
	if e.search == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []domain.EvidenceItem
	for _, q := range queries {
		for _, item := range e.search.Gather(ctx, q) {
			if item.URL == "" || seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			out = append(out, item)
		}
	}
	return out
}

// appendTiered files each item into its trust tier. TierBlocked items are
// dropped: a blocked domain is noise, never evidence.
func appendTiered(bundle *domain.EvidenceBundle, items []domain.EvidenceItem) {
	for _, item := range items {
		switch ranker.TierFor(item.RankScore) {
		case ranker.TierL2HighTrust:
			bundle.Layer2HighTrust = append(bundle.Layer2HighTrust, item)
		case ranker.TierL3General:
			bundle.Layer3General = append(bundle.Layer3General, item)
		case ranker.TierL4SocialLow:
			bundle.Layer4SocialLow = append(bundle.Layer4SocialLow, item)
		}
	}
}

func unionQueries(calls []*domain.SearchParams) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range calls {
		for _, q := range c.Queries {
			if q != "" && !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	return out
}

// runWeatherTask dispatches to Current/Forecast/Historical by time scope.
// A missing historical date or an invalid location is reported directly as
// an L1 error ToolResult; any other provider failure falls back to the
// weathercli subprocess, and if that also fails the error is reported.
func (e *Executor) runWeatherTask(ctx context.Context, wp *domain.WeatherParams, scope domain.TimeScope) domain.ToolResult {
	reading, err := e.callWeatherProvider(ctx, wp, scope)
	if err == nil {
		return toSuccessResult(reading)
	}

	if errs.Is(err, errs.HistoricalDateRequired) {
		return errorResult(domain.StatusHistoricalDateRequired, err)
	}
	if errs.Is(err, errs.InvalidLocation) {
		return errorResult(domain.StatusInvalidLocation, err)
	}

	if result, ok := e.runWeatherCLI(ctx, wp, scope); ok {
		return result
	}
	return errorResult(domain.StatusAPIError, err)
}

func (e *Executor) callWeatherProvider(ctx context.Context, wp *domain.WeatherParams, scope domain.TimeScope) (*weather.Reading, error) {
	if e.weather == nil {
		return nil, errs.New(errs.ProviderError, "weather", fmt.Errorf("no weather provider configured"))
	}
	switch scope {
	case domain.ScopePast:
		return e.weather.Historical(ctx, wp.CityCanonical, wp.Date)
	case domain.ScopeFuture:
		return e.weather.Forecast(ctx, wp.CityCanonical, wp.Date, wp.PartOfDay)
	default:
		return e.weather.Current(ctx, wp.CityCanonical)
	}
}

// runWeatherCLI shells out to the weathercli helper binary with the same
// parameters the failed API call used, parsing its single JSON
// ToolResult from stdout.
func (e *Executor) runWeatherCLI(ctx context.Context, wp *domain.WeatherParams, scope domain.TimeScope) (domain.ToolResult, bool) {
	if e.weatherCLIPath == "" {
		return domain.ToolResult{}, false
	}

	mode := "current"
	switch scope {
	case domain.ScopePast:
		mode = "historical"
	case domain.ScopeFuture:
		mode = "forecast"
	}

	cliCtx, cancel := context.WithTimeout(ctx, defaultPerTaskTimeout)
	defer cancel()

	args := []string{"--city", wp.CityCanonical, "--mode", mode}
	if wp.Date != "" {
		args = append(args, "--date", wp.Date)
	}
	if wp.PartOfDay != "" {
		args = append(args, "--relative", string(wp.PartOfDay))
	}

	out, err := exec.CommandContext(cliCtx, e.weatherCLIPath, args...).Output()
	if err != nil {
		return domain.ToolResult{}, false
	}
	var result domain.ToolResult
	if err := json.Unmarshal(out, &result); err != nil {
		return domain.ToolResult{}, false
	}
	return result, true
}

func toSuccessResult(r *weather.Reading) domain.ToolResult {
	data, _ := json.Marshal(r)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return domain.ToolResult{ToolName: domain.ToolWeather, Status: domain.StatusSuccess, Data: m}
}

func errorResult(status domain.ToolStatus, err error) domain.ToolResult {
	return domain.ToolResult{ToolName: domain.ToolWeather, Status: status, Data: map[string]any{"error": err.Error()}}
}

var dataPointPattern = regexp.MustCompile(`\d{1,3}\s?(?:°C|mm|%)`)

// enrichPlan appends the canonical city and readings from a successful L1
// weather entry, then any additional unit-bearing numbers found in L2/L3
// snippets, into the plan's entities. Mirrors
// enrich_plan_with_evidence's entity back-fill.
func enrichPlan(plan *domain.Plan, bundle *domain.EvidenceBundle) {
	for _, tr := range bundle.Layer1Tools {
		if tr.ToolName != domain.ToolWeather || tr.Status != domain.StatusSuccess {
			continue
		}
		if loc, ok := tr.Data["location"].(string); ok && loc != "" {
			plan.Entities.Locations = appendUnique(plan.Entities.Locations, loc)
		}
		if v, ok := tr.Data["temperature_c"]; ok {
			plan.Entities.DataPoints = appendUnique(plan.Entities.DataPoints, fmt.Sprintf("%v°C", v))
		}
		if v, ok := tr.Data["humidity_pct"]; ok {
			plan.Entities.DataPoints = appendUnique(plan.Entities.DataPoints, fmt.Sprintf("%v%%", v))
		}
	}

	for _, item := range bundle.Layer2HighTrust {
		extractDataPoints(plan, item.Snippet)
	}
	for _, item := range bundle.Layer3General {
		extractDataPoints(plan, item.Snippet)
	}
}

func extractDataPoints(plan *domain.Plan, snippet string) {
	for _, m := range dataPointPattern.FindAllString(snippet, -1) {
		plan.Entities.DataPoints = appendUnique(plan.Entities.DataPoints, m)
	}
}

func appendUnique(items []string, v string) []string {
	for _, it := range items {
		if strings.EqualFold(it, v) {
			return items
		}
	}
	return append(items, v)
}
