package planner

import (
	"strings"
	"time"

	"github.com/zerofake-go/verifier/internal/domain"
)

// eventVerbs flags claims describing something that already happened, the
// cue §4.5 step 4 uses to decide whether to append the current year.
var eventVerbs = []string{
	"launched", "released", "happened", "announced", "ra mắt", "công bố", "xảy ra", "đã",
}

var conflictKeywords = []string{
	"war", "attack", "invasion", "chiến sự", "xung đột", "tấn công", "đụng độ",
}

// buildQueryBundle produces the ordered, not-yet-deduplicated candidate
// list from §4.5's 8-step recipe: raw claim, claim+news-keyword,
// main_claim, claim+year (if warranted), top locations x claim, top
// organization+year, top event, conflict boosters.
func buildQueryBundle(claim string, plan *domain.Plan) []string {
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}

	base := strings.TrimSpace(claim)
	add(base)                                    // 1. raw claim
	add(base + " tin tức")                       // 2. raw claim + news keyword
	if !strings.EqualFold(plan.MainClaim, base) { // 3. main_claim if different
		add(plan.MainClaim)
	}

	lowerClaim := strings.ToLower(claim)
	if !yearPattern.MatchString(claim) && matchesAny(lowerClaim, eventVerbs) { // 4.
		add(base + " " + currentYear())
	}

	locations := plan.Entities.Locations
	if len(locations) > 3 {
		locations = locations[:3]
	}
	for _, loc := range locations { // 5. top-3 locations x raw claim
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		if base != "" {
			add(loc + " " + base)
		} else {
			add(loc)
		}
	}

	if len(plan.Entities.Organizations) > 0 { // 6. top-1 organization + year
		add(plan.Entities.Organizations[0] + " " + currentYear())
	}

	if len(plan.Entities.Events) > 0 { // 7. top-1 event name
		add(plan.Entities.Events[0])
	}

	if matchesAny(lowerClaim, conflictKeywords) { // 8. conflict-keyword boosters
		for _, loc := range locations {
			loc = strings.TrimSpace(loc)
			if loc == "" {
				continue
			}
			add("situation in " + loc)
			add("conflict " + loc + " latest")
		}
	}

	return out
}

func currentYear() string {
	return time.Now().Format("2006")
}

func matchesAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
