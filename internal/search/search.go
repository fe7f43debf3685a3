package search

import (
	"context"
	"net/http"
	"strings"

	"github.com/zerofake-go/verifier/internal/config"
	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/ranker"
)

// Orchestrator runs one query through the provider priority chain
// described in app/search.py::call_google_search's "OPTIMIZED SEARCH
// STRATEGY": Google News (VN+EN) → Google Fact Check → Wikipedia (VN+EN)
// → Google CSE, with DuckDuckGo reserved as a last-resort fallback when
// nothing else returned a single item. Fact-check hits are folded in
// here rather than kept behind a separate call so the Tool Executor
// always sees them ranked and tiered alongside ordinary evidence.
type Orchestrator struct {
	newsVN    *GNewsProvider
	newsEN    *GNewsProvider
	wikiVN    *WikipediaProvider
	wikiEN    *WikipediaProvider
	cse       *GoogleCSEProvider
	ddg       *DDGProvider
	factCheck *FactCheckProvider
}

// NewOrchestrator wires every provider from cfg's credentials; providers
// whose credentials are absent (CSE, fact-check) simply return no results
// when called, so the chain degrades gracefully.
func NewOrchestrator(httpClient *http.Client, cfg *config.Config) *Orchestrator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Orchestrator{
		newsVN:    NewGNewsProvider(httpClient, "vi", "VN"),
		newsEN:    NewGNewsProvider(httpClient, "en", "US"),
		wikiVN:    NewWikipediaProvider(httpClient, "vi"),
		wikiEN:    NewWikipediaProvider(httpClient, "en"),
		cse:       NewGoogleCSEProvider(httpClient, cfg.GoogleCSEKey, cfg.GoogleCSEID),
		ddg:       NewDDGProvider(httpClient),
		factCheck: NewFactCheckProvider(httpClient, cfg.GoogleFactCheckKey),
	}
}

// Gather runs rawQuery through the priority chain and returns a
// deduplicated (by URL), ranked, date-sorted evidence list. Google CSE is
// queried only while fewer than 10 items have been gathered. DDG is
// consulted only when every earlier provider combined returned nothing; its
// second, English query runs when the first left fewer than 3 items.
func (o *Orchestrator) Gather(ctx context.Context, rawQuery string) []domain.EvidenceItem {
	cleaned := CleanQuery(rawQuery)
	enQuery := ExtractEnglishQuery(cleaned)
	viQuery := EnsureNewsKeyword(cleaned)

	seen := make(map[string]bool)
	var items []domain.EvidenceItem

	ingest := func(results []Result) {
		for _, r := range results {
			if r.Link == "" || seen[r.Link] {
				continue
			}
			seen[r.Link] = true
			items = append(items, domain.EvidenceItem{
				SourceDomain: r.Source,
				URL:          r.Link,
				Title:        r.Title,
				Snippet:      r.Snippet,
				Date:         ranker.ExtractDate(nil, r.Link, r.Date+" "+r.Snippet),
				RankScore:    ranker.Rank(r.Link),
			})
		}
	}

	if res, err := o.newsVN.Search(ctx, viQuery); err == nil {
		ingest(res)
	}
	if enQuery != "" && len(strings.Fields(enQuery)) > 1 {
		if res, err := o.newsEN.Search(ctx, enQuery); err == nil {
			ingest(res)
		}
	}

	if o.factCheck != nil {
		if res, err := o.factCheck.Search(ctx, cleaned); err == nil {
			ingest(res)
		}
	}

	mainEntity := firstNWords(cleaned, 5)
	if res, err := o.wikiVN.Search(ctx, mainEntity); err == nil {
		ingest(res)
	}
	if enQuery != "" {
		if res, err := o.wikiEN.Search(ctx, firstNWords(enQuery, 3)); err == nil {
			ingest(res)
		}
	}

	if len(items) < 10 {
		if res, err := o.cse.Search(ctx, cleaned); err == nil {
			ingest(res)
		}
	}

	if len(items) == 0 {
		if res, err := o.ddg.Search(ctx, viQuery); err == nil {
			ingest(res)
		}
		if len(items) < 3 && enQuery != "" {
			if res, err := o.ddg.Search(ctx, enQuery+" news"); err == nil {
				ingest(res)
			}
		}
	}

	SortByDateDesc(items)
	return items
}

func firstNWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
