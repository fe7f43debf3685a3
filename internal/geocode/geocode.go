// Package geocode resolves a free-text place name to a canonical name and
// coordinates via the Nominatim (OpenStreetMap) HTTP API, the Go
// equivalent of the source's geopy.Nominatim client, with an LRU-bounded
// cache in front of it instead of an unbounded dict.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// Location is a resolved place.
type Location struct {
	CanonicalName string
	EnglishName   string
	Lat           float64
	Lon           float64
}

// Resolver resolves place names to Locations, caching hits by lowercased
// stripped name for the lifetime of the process.
type Resolver struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	cache      *lru.Cache[string, *Location]
}

// New builds a Resolver with a cache capped at cacheSize entries.
func New(httpClient *http.Client, cacheSize int) (*Resolver, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cache, err := lru.New[string, *Location](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("geocode: creating cache: %w", err)
	}
	return &Resolver{
		httpClient: httpClient,
		userAgent:  "ZeroFake-FactChecker/1.0",
		baseURL:    nominatimSearchURL,
		cache:      cache,
	}, nil
}

// Resolve implements the exact-then-hinted-then-relaxed cascade: try the
// name as-is, then with a ", city" hint appended, then a relaxed
// multi-result query taking the top-1. Returns (nil, nil) — not an error —
// on a clean miss, timeout, or upstream failure, matching the source's
// silent-failure contract.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Location, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, nil
	}
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	loc := r.query(ctx, name, true)
	if loc == nil && !strings.Contains(strings.ToLower(name), "city") {
		loc = r.query(ctx, name+", city", true)
	}
	if loc == nil {
		loc = r.query(ctx, name, false)
	}

	if loc != nil {
		r.cache.Add(key, loc)
	}
	return loc, nil
}

// query performs one Nominatim call. exactlyOne mirrors geopy's
// exactly_one flag: when false, the first of multiple results is taken.
// Any network, decode, or empty-result condition yields a nil Location
// rather than an error, per the silent-failure contract.
func (r *Resolver) query(ctx context.Context, q string, exactlyOne bool) *Location {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "jsonv2")
	params.Set("accept-language", "en")
	if exactlyOne {
		params.Set("limit", "1")
	} else {
		params.Set("limit", "5")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	best := results[0]
	lat, errLat := strconv.ParseFloat(best.Lat, 64)
	lon, errLon := strconv.ParseFloat(best.Lon, 64)
	if errLat != nil || errLon != nil {
		return nil
	}

	parts := strings.Split(best.DisplayName, ",")
	canonical := strings.TrimSpace(parts[0])
	if canonical == "" {
		return nil
	}

	return &Location{
		CanonicalName: canonical,
		EnglishName:   canonical,
		Lat:           lat,
		Lon:           lon,
	}
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}
