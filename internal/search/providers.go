package search

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result is a single raw hit from one provider, before ranking/tiering.
type Result struct {
	Title   string
	Link    string
	Snippet string
	Source  string
	Date    string // best-effort, provider-native format; normalized later by ranker.ExtractDate
}

// Provider adapts one external backend to the uniform Result shape.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

func doJSON(ctx context.Context, client *http.Client, rawURL string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("search: %s returned %d", rawURL, resp.StatusCode)
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// GNewsProvider searches Google News via its public RSS feed, mirroring
// the gnews library's behavior without the dependency (no RSS client
// exists in the example pack, so stdlib encoding/xml parses the feed).
type GNewsProvider struct {
	httpClient *http.Client
	language   string
	country    string
	baseURL    string
}

func NewGNewsProvider(httpClient *http.Client, language, country string) *GNewsProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GNewsProvider{httpClient: httpClient, language: language, country: country, baseURL: "https://news.google.com/rss/search"}
}

func (p *GNewsProvider) Name() string { return "google_news_" + p.language }

type gnewsFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			PubDate     string `xml:"pubDate"`
			Description string `xml:"description"`
			Source      string `xml:"source"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (p *GNewsProvider) Search(ctx context.Context, query string) ([]Result, error) {
	ceid := fmt.Sprintf("%s:%s", p.country, p.language)
	q := url.Values{"q": {query}, "hl": {p.language}, "gl": {p.country}, "ceid": {ceid}}
	rawURL := p.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: gnews rss returned %d", resp.StatusCode)
	}

	var feed gnewsFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		snippet := it.Title
		if it.Description != "" {
			snippet = it.Title + ". " + stripHTML(it.Description)
		}
		if len(snippet) < 30 {
			continue
		}
		results = append(results, Result{
			Title:   it.Title,
			Link:    it.Link,
			Snippet: snippet,
			Source:  "google_news_" + it.Source,
			Date:    it.PubDate,
		})
	}
	return results, nil
}

func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// WikipediaProvider looks up a single matching page summary via the
// MediaWiki opensearch action, mirroring the source's direct
// wikipediaapi.Wikipedia().page(query).exists() lookup.
type WikipediaProvider struct {
	httpClient *http.Client
	language   string
	baseURL    string
}

func NewWikipediaProvider(httpClient *http.Client, language string) *WikipediaProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WikipediaProvider{httpClient: httpClient, language: language, baseURL: fmt.Sprintf("https://%s.wikipedia.org/w/api.php", language)}
}

func (p *WikipediaProvider) Name() string { return "wikipedia_" + p.language }

func (p *WikipediaProvider) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{
		"action": {"opensearch"}, "search": {query}, "limit": {"1"}, "format": {"json"},
	}
	rawURL := p.baseURL + "?" + q.Encode()

	var payload []json.RawMessage
	if _, err := doJSON(ctx, p.httpClient, rawURL, &payload); err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, nil
	}
	var titles, descriptions, urls []string
	_ = json.Unmarshal(payload[1], &titles)
	_ = json.Unmarshal(payload[2], &descriptions)
	_ = json.Unmarshal(payload[3], &urls)
	if len(titles) == 0 || len(urls) == 0 {
		return nil, nil
	}

	snippet := ""
	if len(descriptions) > 0 {
		snippet = descriptions[0]
	}
	if snippet == "" {
		snippet = titles[0]
	}
	return []Result{{
		Title:   titles[0],
		Link:    urls[0],
		Snippet: snippet,
		Source:  p.Name(),
	}}, nil
}

// GoogleCSEProvider queries a Google Programmable Search Engine. A 429
// response (quota exceeded) is surfaced as ErrRateLimited so callers know
// to fall through to the DDG fallback rather than treating it as a
// terminal error.
type GoogleCSEProvider struct {
	httpClient *http.Client
	apiKey     string
	cseID      string
	baseURL    string
}

func NewGoogleCSEProvider(httpClient *http.Client, apiKey, cseID string) *GoogleCSEProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleCSEProvider{httpClient: httpClient, apiKey: apiKey, cseID: cseID, baseURL: "https://www.googleapis.com/customsearch/v1"}
}

func (p *GoogleCSEProvider) Name() string { return "google_cse" }

// ErrRateLimited signals the CSE quota was exceeded for this call.
var ErrRateLimited = fmt.Errorf("search: google cse quota exceeded")

func (p *GoogleCSEProvider) Search(ctx context.Context, query string) ([]Result, error) {
	if p.apiKey == "" || p.cseID == "" {
		return nil, nil
	}
	q := url.Values{"key": {p.apiKey}, "cx": {p.cseID}, "q": {query}, "num": {"10"}, "lr": {"lang_vi"}}
	rawURL := p.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: google cse returned %d", resp.StatusCode)
	}

	var data struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(data.Items))
	for _, it := range data.Items {
		if len(it.Snippet) < 30 {
			continue
		}
		results = append(results, Result{Title: it.Title, Link: it.Link, Snippet: it.Snippet, Source: "google_cse"})
	}
	return results, nil
}

// DDGProvider scrapes the DuckDuckGo HTML endpoint (no API key required),
// used only as the last-resort fallback when every other provider came
// back empty, matching the source's "DDG fallback only if no sources
// found" rule.
type DDGProvider struct {
	httpClient *http.Client
	baseURL    string
}

func NewDDGProvider(httpClient *http.Client) *DDGProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DDGProvider{httpClient: httpClient, baseURL: "https://html.duckduckgo.com/html/"}
}

func (p *DDGProvider) Name() string { return "duckduckgo" }

func (p *DDGProvider) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{"q": {query}}
	rawURL := p.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ZeroFakeGo/1.0)")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: ddg returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []Result
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		link, _ := s.Find(".result__a").Attr("href")
		title := strings.TrimSpace(s.Find(".result__a").Text())
		snippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		link = resolveDDGRedirect(link)
		if link == "" || len(snippet) < 30 {
			return
		}
		results = append(results, Result{Title: title, Link: link, Snippet: snippet, Source: "duckduckgo"})
	})
	return results, nil
}

// resolveDDGRedirect unwraps DuckDuckGo's "//duckduckgo.com/l/?uddg=<encoded>"
// redirect links into the real destination URL.
func resolveDDGRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if uddg := parsed.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	return href
}

// FactCheckProvider queries the Google Fact Check Tools API for existing
// claim reviews, grounded on app/fact_check.py::call_google_fact_check.
type FactCheckProvider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewFactCheckProvider(httpClient *http.Client, apiKey string) *FactCheckProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &FactCheckProvider{httpClient: httpClient, apiKey: apiKey, baseURL: "https://factchecktools.googleapis.com/v1alpha1/claims:search"}
}

func (p *FactCheckProvider) Name() string { return "fact_check" }

func (p *FactCheckProvider) Search(ctx context.Context, query string) ([]Result, error) {
	return p.search(ctx, query, "vi")
}

func (p *FactCheckProvider) search(ctx context.Context, query, languageCode string) ([]Result, error) {
	if p.apiKey == "" {
		return nil, nil
	}
	q := url.Values{"key": {p.apiKey}, "query": {query}, "languageCode": {languageCode}, "pageSize": {"10"}}
	rawURL := p.baseURL + "?" + q.Encode()

	var data struct {
		Claims []struct {
			Text        string `json:"text"`
			ClaimReview []struct {
				Publisher struct {
					Name string `json:"name"`
				} `json:"publisher"`
				URL           string `json:"url"`
				Title         string `json:"title"`
				TextualRating string `json:"textualRating"`
				ReviewDate    string `json:"reviewDate"`
			} `json:"claimReview"`
		} `json:"claims"`
	}
	status, err := doJSON(ctx, p.httpClient, rawURL, &data)
	if err != nil {
		if status == http.StatusForbidden {
			return nil, nil
		}
		return nil, err
	}

	var results []Result
	for _, c := range data.Claims {
		for _, r := range c.ClaimReview {
			results = append(results, Result{
				Title:   r.Title,
				Link:    r.URL,
				Snippet: fmt.Sprintf("Claim: %s. Rating: %s (%s)", c.Text, r.TextualRating, r.Publisher.Name),
				Source:  "fact_check_" + r.Publisher.Name,
				Date:    r.ReviewDate,
			})
		}
	}
	if len(results) == 0 && languageCode == "vi" {
		return p.search(ctx, query, "en")
	}
	return results, nil
}
