// Package classify implements the pure, deterministic, network-free claim
// classifier (C2): weather detection, city-candidate extraction, time
// scope, part of day, and common-knowledge/historical/claim-type hints.
// Every heuristic here mirrors the teacher's internal/utils heuristics
// style — plain string scans and regexes, no LLM call, fully unit
// testable.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/zerofake-go/verifier/internal/domain"
)

// Result is everything the classifier can determine about a claim.
type Result struct {
	IsWeather          bool
	CityCandidate      string
	TimeScope          domain.TimeScope
	DaysAhead          int
	HasDaysAhead       bool
	RelativeTime       string
	PartOfDay          domain.PartOfDay
	IsCommonKnowledge  bool
	IsHistorical       bool
	ClaimTypeHint      domain.ClaimType
}

// weatherLexicon is a fixed multilingual set of weather terms. Matched
// against the normalized (NFD, diacritics stripped, lowercased) claim.
var weatherLexicon = []string{
	// English
	"weather", "rain", "raining", "rainy", "snow", "snowing", "temperature",
	"forecast", "humid", "humidity", "sunny", "cloudy", "storm", "typhoon",
	"degrees", "celsius", "fahrenheit", "hot", "cold", "windy",
	// Vietnamese (diacritics already stripped by normalizeText)
	"thoi tiet", "mua", "nang", "nong", "lanh", "nhiet do", "du bao",
	"bao", "gio", "am", "kho",
	// French
	"meteo", "pluie", "neige", "temperature", "chaud", "froid",
	// Spanish
	"clima", "lluvia", "nieve", "temperatura", "caliente", "frio",
	// German
	"wetter", "regen", "schnee", "temperatur",
}

// weatherPattern matches a weatherLexicon term only where it starts a word,
// so inflected forms ("snowed") still count while a short term such as "am"
// does not fire inside "championship" or "team".
var weatherPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(weatherLexicon, "|") + `)`)

var commonCities = []string{
	"hanoi", "ho chi minh", "saigon", "da nang", "hue", "nha trang",
	"hai phong", "can tho", "vung tau", "da lat",
	"new york", "london", "paris", "tokyo", "beijing", "bangkok",
	"singapore", "seoul", "sydney", "moscow", "berlin", "madrid",
	"los angeles", "chicago", "san francisco", "washington",
}

var cityAffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bin ([A-Z][\p{L}'\- ]{1,40})\b`),
	regexp.MustCompile(`(?i)\bat ([A-Z][\p{L}'\- ]{1,40})\b`),
	regexp.MustCompile(`(?i)\bo (?:tp\.? )?([A-Z][\p{L}'\- ]{1,40})\b`),      // "ở Hà Nội"
	regexp.MustCompile(`(?i)\btai ([A-Z][\p{L}'\- ]{1,40})\b`),              // "tại"
	regexp.MustCompile(`(?i)([A-Z][\p{L}'\-]+(?: [A-Z][\p{L}'\-]+)*) city\b`),
	regexp.MustCompile(`(?i)([A-Z][\p{L}'\-]+(?: [A-Z][\p{L}'\-]+)*) province\b`),
	regexp.MustCompile(`(?i)a ([A-Z][\p{L}'\- ]{1,40})\b`),  // French "à"
	regexp.MustCompile(`(?i)en ([A-Z][\p{L}'\- ]{1,40})\b`), // French/Spanish "en"
	regexp.MustCompile(`(?i)in ([A-Z][\p{L}'\- ]{1,40})\b`), // German "in" (dup of English, harmless)
}

var titleCaseNgram = regexp.MustCompile(`\b([\p{Lu}][\p{Ll}]+(?:\s+[\p{Lu}][\p{Ll}]+)+)\b`)

var timeStopwords = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
	"today": true, "tomorrow": true, "yesterday": true,
}

var explicitDaysAheadPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:ngay nua|days? (?:from now|ahead)|in\s+\d+\s+days)`)
var explicitDaysAheadPatternEN = regexp.MustCompile(`(?i)in (\d+) days`)

var historicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blast year\b`),
	regexp.MustCompile(`(?i)\b(19|20)\d{2}\b`),
	regexp.MustCompile(`(?i)\b(\d+)\s+years?\s+ago\b`),
	regexp.MustCompile(`(?i)nam ngoai`), // "năm ngoái"
	regexp.MustCompile(`(?i)(\d+)\s+nam truoc`),
}

var commonKnowledgeFacts = []string{
	"sun rises in the east", "sun sets in the west", "2+2=4", "2 + 2 = 4",
	"earth is round", "water boils at 100", "water freezes at 0",
	"paris is the capital of france", "tokyo is the capital of japan",
	"hanoi is the capital of vietnam", "london is the capital of",
	"washington is the capital of the united states",
	"the sky is blue", "fish live in water",
}

var sportsKeywords = []string{"goal", "match", "tournament", "championship", "football", "soccer", "basketball", "world cup", "olympics", "tran dau", "bong da"}
var politicsKeywords = []string{"election", "president", "minister", "parliament", "government", "policy", "bau cu", "thu tuong", "chinh phu"}
var techKeywords = []string{"software", "app", "startup", "ai model", "chip", "smartphone", "iphone", "android", "cong nghe", "phan mem"}

// partOfDayKeywords is ordered (not a map) so a claim mentioning more than
// one part-of-day term always resolves to the same winner.
var partOfDayKeywords = []struct {
	part     domain.PartOfDay
	keywords []string
}{
	{domain.PartMorning, []string{"morning", "sang", "buoi sang"}},
	{domain.PartAfternoon, []string{"afternoon", "chieu", "buoi chieu"}},
	{domain.PartEvening, []string{"evening", "toi", "buoi toi"}},
	{domain.PartNight, []string{"night", "dem", "ban dem"}},
}

// Classify applies every heuristic to claim and returns the aggregate
// result. claim is the raw, unmodified claim text; normalization happens
// internally.
func Classify(claim string) Result {
	normalized := normalizeText(claim)

	res := Result{}
	res.IsWeather = weatherPattern.MatchString(normalized)
	res.CityCandidate = extractCityCandidate(claim, normalized)
	res.TimeScope, res.DaysAhead, res.HasDaysAhead, res.RelativeTime = extractTimeScope(claim, normalized)
	res.PartOfDay = extractPartOfDay(normalized)
	res.IsCommonKnowledge = matchesAny(normalized, commonKnowledgeFacts)
	res.IsHistorical = isHistorical(claim, normalized)
	res.ClaimTypeHint = guessClaimType(res, normalized)

	if res.IsCommonKnowledge {
		res.TimeScope = domain.ScopePresent
	}
	return res
}

// normalizeText applies Unicode NFD decomposition, strips combining
// diacritical marks, and lowercases — the same pipeline the planner's
// query cleaning and the weather/common-knowledge lexicons assume.
func normalizeText(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func matchesAny(normalized string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(normalized, t) {
			return true
		}
	}
	return false
}

func extractCityCandidate(raw, normalized string) string {
	for _, c := range commonCities {
		if strings.Contains(normalized, c) {
			return titleCase(c)
		}
	}

	for _, re := range cityAffixPatterns {
		if m := re.FindStringSubmatch(raw); len(m) > 1 {
			cand := strings.TrimSpace(m[1])
			if isValidCityCandidate(cand) {
				return cand
			}
		}
	}

	if matches := titleCaseNgram.FindAllString(raw, -1); len(matches) > 0 {
		best := ""
		for _, m := range matches {
			if len(m) > len(best) {
				best = m
			}
		}
		if isValidCityCandidate(best) {
			return best
		}
	}

	return ""
}

func isValidCityCandidate(cand string) bool {
	if cand == "" {
		return false
	}
	tokens := strings.Fields(cand)
	if len(tokens) < 2 && len(cand) <= 2 {
		return false
	}
	lower := strings.ToLower(cand)
	if timeStopwords[lower] {
		return false
	}
	for _, tok := range tokens {
		if timeStopwords[strings.ToLower(tok)] {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func extractTimeScope(raw, normalized string) (scope domain.TimeScope, daysAhead int, hasDaysAhead bool, relative string) {
	if m := explicitDaysAheadPattern.FindStringSubmatch(normalized); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return domain.ScopeFuture, n, true, m[0]
		}
	}
	if m := explicitDaysAheadPatternEN.FindStringSubmatch(normalized); len(m) > 1 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return domain.ScopeFuture, n, true, m[0]
		}
	}
	switch {
	case strings.Contains(normalized, "tomorrow") || strings.Contains(normalized, "ngay mai"):
		return domain.ScopeFuture, 1, true, "tomorrow"
	case strings.Contains(normalized, "today") || strings.Contains(normalized, "hom nay"):
		return domain.ScopePresent, 0, true, "today"
	case strings.Contains(normalized, "next week") || strings.Contains(normalized, "tuan toi"):
		return domain.ScopeFuture, 7, true, "next week"
	case strings.Contains(normalized, "yesterday") || strings.Contains(normalized, "hom qua"):
		return domain.ScopePast, -1, true, "yesterday"
	}
	if isHistorical(raw, normalized) {
		return domain.ScopePast, 0, false, ""
	}
	return domain.ScopePresent, 0, false, ""
}

func isHistorical(raw, normalized string) bool {
	for _, re := range historicalPatterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

func extractPartOfDay(normalized string) domain.PartOfDay {
	for _, entry := range partOfDayKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(normalized, kw) {
				return entry.part
			}
		}
	}
	return ""
}

func guessClaimType(r Result, normalized string) domain.ClaimType {
	switch {
	case r.IsWeather:
		return domain.ClaimWeather
	case r.IsCommonKnowledge:
		return domain.ClaimCommonKnowledge
	case r.IsHistorical:
		return domain.ClaimHistorical
	case matchesAny(normalized, sportsKeywords):
		return domain.ClaimSports
	case matchesAny(normalized, politicsKeywords):
		return domain.ClaimPolitics
	case matchesAny(normalized, techKeywords):
		return domain.ClaimTech
	default:
		return domain.ClaimGeneral
	}
}
