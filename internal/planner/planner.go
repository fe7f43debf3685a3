// Package planner implements the Planner Agent (C4): it turns a raw claim
// into a typed domain.Plan by calling the Model Gateway for a first draft,
// then normalizing that draft against the deterministic Claim Classifier
// and Geocoder. Grounded on app/agent_planner.py's create_action_plan and
// _normalize_plan in full.
package planner

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/zerofake-go/verifier/internal/classify"
	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/geocode"
	"github.com/zerofake-go/verifier/internal/modelgw"
	"github.com/zerofake-go/verifier/internal/search"
)

// Options mirrors plan()'s {flash_mode, unlimit_mode, model_alias} call
// signature. ModelAlias is accepted for interface fidelity but the
// Gateway's own configured fallback chain governs provider selection.
type Options struct {
	FlashMode   bool
	UnlimitMode bool
	ModelAlias  string

	// FeedbackExamples is the Feedback Store's (C11) k-NN formatted
	// summary of past human corrections, substituted into the prompt's
	// "{feedback_examples}" placeholder when non-empty.
	FeedbackExamples string
}

// Planner ties the Model Gateway, the Claim Classifier, and the Geocoder
// together behind the single Plan operation.
type Planner struct {
	gateway        *modelgw.Gateway
	geocoder       *geocode.Resolver
	promptTemplate string
}

// New builds a Planner. promptTemplate is the opaque, loaded-once prompt
// with "{claim}" and "{current_date}" placeholders (A1 Config owns
// loading it from disk at startup).
func New(gateway *modelgw.Gateway, geocoder *geocode.Resolver, promptTemplate string) *Planner {
	return &Planner{gateway: gateway, geocoder: geocoder, promptTemplate: promptTemplate}
}

const unlimitSuffix = "\n\nUnlimited mode: do not truncate entities, queries, or analysis for brevity."

// rawPlan is the shape the LLM is prompted to emit, kept close to
// agent_planner.py's plan_struct dict so _normalize_plan's field names
// translate directly.
type rawPlan struct {
	MainClaim         string `json:"main_claim"`
	ClaimType         string `json:"claim_type"`
	Volatility        string `json:"volatility"`
	EntitiesAndValues struct {
		Locations     []string `json:"locations"`
		Persons       []string `json:"persons"`
		Organizations []string `json:"organizations"`
		Events        []string `json:"events"`
		DataPoints    []string `json:"data_points"`
	} `json:"entities_and_values"`
	TimeReferences struct {
		ExplicitDate string `json:"explicit_date"`
		RelativeTime string `json:"relative_time"`
		TimeScope    string `json:"time_scope"`
	} `json:"time_references"`
	RequiredTools []rawToolCall `json:"required_tools"`
}

type rawToolCall struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// Plan runs the full algorithm: prompt substitution, Model Gateway call
// with provider fallback, tolerant JSON extraction, and normalization.
func (p *Planner) Plan(ctx context.Context, claim string, opts Options) (*domain.Plan, error) {
	prompt := strings.NewReplacer(
		"{claim}", claim,
		"{current_date}", time.Now().Format("2006-01-02"),
		"{feedback_examples}", opts.FeedbackExamples,
	).Replace(p.promptTemplate)
	if opts.UnlimitMode {
		prompt += unlimitSuffix
	}

	rp, err := modelgw.GenerateData[rawPlan](ctx, p.gateway, prompt)
	if err != nil {
		// Every provider in the chain failed or returned malformed JSON:
		// fall through to an empty draft, matching
		// _parse_json_from_text's "return {}" behavior.
		rp = &rawPlan{}
	}

	return p.normalize(ctx, rp, claim, opts), nil
}

var dataPointPattern = regexp.MustCompile(`\d{1,3}\s?(?:°C|mm|%)`)

func (p *Planner) normalize(ctx context.Context, rp *rawPlan, claim string, opts Options) *domain.Plan {
	plan := &domain.Plan{
		MainClaim:  firstNonEmpty(rp.MainClaim, claim),
		ClaimType:  domain.ClaimType(firstNonEmpty(rp.ClaimType, string(domain.ClaimGeneral))),
		Volatility: domain.Volatility(firstNonEmpty(rp.Volatility, string(domain.VolatilityMedium))),
		Entities: domain.Entities{
			Locations:     rp.EntitiesAndValues.Locations,
			Persons:       rp.EntitiesAndValues.Persons,
			Organizations: rp.EntitiesAndValues.Organizations,
			Events:        rp.EntitiesAndValues.Events,
			DataPoints:    rp.EntitiesAndValues.DataPoints,
		},
		TimeReferences: domain.TimeReferences{
			ExplicitDate: rp.TimeReferences.ExplicitDate,
			RelativeTime: rp.TimeReferences.RelativeTime,
			TimeScope:    domain.TimeScope(firstNonEmpty(rp.TimeReferences.TimeScope, string(domain.ScopePresent))),
		},
	}

	cls := classify.Classify(claim)

	if cls.IsCommonKnowledge || cls.IsHistorical || plan.TimeReferences.TimeScope == domain.ScopePast {
		plan.Volatility = domain.VolatilityLow
	}

	plan.Entities.DataPoints = unionDataPoints(plan.Entities.DataPoints, claim)
	plan.RequiredTools = convertToolCalls(rp.RequiredTools)

	if cls.IsWeather {
		p.applyWeatherOverride(ctx, plan, rp, cls)
	} else {
		plan.RequiredTools = p.ensureSearchTools(plan, claim, opts)
	}

	return plan
}

func (p *Planner) applyWeatherOverride(ctx context.Context, plan *domain.Plan, rp *rawPlan, cls classify.Result) {
	plan.ClaimType = domain.ClaimWeather
	plan.Volatility = domain.VolatilityHigh

	days, date := resolveDaysAhead(cls, rp, plan.TimeReferences.ExplicitDate, time.Now())

	city := cls.CityCandidate
	if city == "" {
		if len(plan.Entities.Locations) > 0 {
			city = plan.Entities.Locations[0]
		}
	}
	cityCanonical := city
	if p.geocoder != nil && city != "" {
		if loc, err := p.geocoder.Resolve(ctx, city); err == nil && loc != nil {
			if loc.EnglishName != "" {
				cityCanonical = loc.EnglishName
			} else {
				cityCanonical = loc.CanonicalName
			}
		}
	}
	if city != "" && !contains(plan.Entities.Locations, city) {
		plan.Entities.Locations = append(plan.Entities.Locations, city)
	}

	// Replace any prior tool calls (weather or search) with exactly one
	// weather call: weather claims are answered from the structured API
	// only, never from search.
	plan.RequiredTools = []domain.ToolCall{{
		Name: domain.ToolWeather,
		Weather: &domain.WeatherParams{
			CityCanonical: cityCanonical,
			DaysAhead:     days,
			Date:          date,
			PartOfDay:     cls.PartOfDay,
		},
	}}
}

// resolveDaysAhead implements the precedence chain: a direct regex parse
// of the raw claim always wins over the LLM's own days_ahead/date, which
// in turn wins over the plan's explicit_date field.
func resolveDaysAhead(cls classify.Result, rp *rawPlan, explicitDate string, now time.Time) (int, string) {
	if cls.HasDaysAhead {
		return cls.DaysAhead, now.AddDate(0, 0, cls.DaysAhead).Format("2006-01-02")
	}
	for _, t := range rp.RequiredTools {
		if t.ToolName != "weather" {
			continue
		}
		if dateStr, _ := t.Parameters["date"].(string); dateStr != "" {
			if d, err := time.Parse("2006-01-02", dateStr); err == nil {
				return int(d.Sub(now).Hours() / 24), dateStr
			}
		}
	}
	if explicitDate != "" {
		if d, err := time.Parse("2006-01-02", explicitDate); err == nil {
			return int(d.Sub(now).Hours() / 24), explicitDate
		}
	}
	return 0, now.Format("2006-01-02")
}

func convertToolCalls(raw []rawToolCall) []domain.ToolCall {
	var out []domain.ToolCall
	for _, t := range raw {
		switch t.ToolName {
		case "weather":
			wp := &domain.WeatherParams{}
			if v, ok := t.Parameters["city"].(string); ok {
				wp.CityCanonical = v
			}
			if v, ok := t.Parameters["date"].(string); ok {
				wp.Date = v
			}
			if v, ok := t.Parameters["part_of_day"].(string); ok {
				wp.PartOfDay = domain.PartOfDay(v)
			}
			if v, ok := t.Parameters["days_ahead"].(float64); ok {
				wp.DaysAhead = int(v)
			}
			out = append(out, domain.ToolCall{Name: domain.ToolWeather, Weather: wp})
		case "search":
			sp := &domain.SearchParams{SearchType: domain.SearchBroad}
			if v, ok := t.Parameters["search_type"].(string); ok && v != "" {
				sp.SearchType = domain.SearchType(v)
			}
			if raw, ok := t.Parameters["queries"].([]any); ok {
				for _, q := range raw {
					if s, ok := q.(string); ok && s != "" {
						sp.Queries = append(sp.Queries, s)
					}
				}
			}
			out = append(out, domain.ToolCall{Name: domain.ToolSearch, Search: sp})
		}
	}
	return out
}

func unionDataPoints(existing []string, claim string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing))
	for _, d := range existing {
		d = strings.TrimSpace(d)
		if d != "" && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, m := range dataPointPattern.FindAllString(claim, -1) {
		m = strings.TrimSpace(m)
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if strings.EqualFold(it, target) {
			return true
		}
	}
	return false
}

// ensureSearchTools makes sure the plan carries exactly one search
// ToolCall, merging any LLM-proposed queries with the synthesized bundle
// from buildQueryBundle, then optimizing and bounding them per §4.5.
func (p *Planner) ensureSearchTools(plan *domain.Plan, claim string, opts Options) []domain.ToolCall {
	var existing []string
	var others []domain.ToolCall
	for _, tc := range plan.RequiredTools {
		if tc.Name == domain.ToolSearch && tc.Search != nil {
			existing = tc.Search.Queries
			continue
		}
		others = append(others, tc)
	}

	generated := buildQueryBundle(claim, plan)
	merged := unionStrings(existing, generated)
	optimized := make([]string, 0, len(merged))
	for _, q := range merged {
		optimized = append(optimized, optimizeQuery(q))
	}
	optimized = putRawClaimFirst(optimized, claim)

	if !opts.UnlimitMode && len(optimized) > 5 {
		optimized = optimized[:5]
	}

	others = append(others, domain.ToolCall{
		Name: domain.ToolSearch,
		Search: &domain.SearchParams{
			Queries:    optimized,
			SearchType: domain.SearchBroad,
		},
	})
	return others
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func putRawClaimFirst(queries []string, claim string) []string {
	raw := strings.TrimSpace(claim)
	if raw == "" {
		return queries
	}
	out := []string{raw}
	for _, q := range queries {
		if q != raw {
			out = append(out, q)
		}
	}
	return out
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// optimizeQuery applies §4.5's per-query optimization: sensational-prefix
// stripping (via search.CleanQuery) and a news-keyword suffix.
func optimizeQuery(q string) string {
	q = search.CleanQuery(q)
	if q == "" {
		return q
	}
	q = search.EnsureNewsKeyword(q)
	return q
}
