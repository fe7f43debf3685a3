// Package weather is the OpenWeatherMap-backed C7 provider: current
// conditions, forecast lookups bucketed by part of day, and historical
// readings. Grounded on app/weather.py's get_openweather_data call
// sequence (geocode -> current/forecast/onecall), ported from Python's
// ad-hoc dict results to a typed Reading.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/errs"
	"github.com/zerofake-go/verifier/internal/geocode"
)

const (
	geoURL      = "https://api.openweathermap.org/geo/1.0/direct"
	currentURL  = "https://api.openweathermap.org/data/2.5/weather"
	forecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	onecallURL  = "https://api.openweathermap.org/data/3.0/onecall"
)

// Reading is one normalized weather observation.
type Reading struct {
	Location     string  `json:"location"`
	Date         string  `json:"date"` // YYYY-MM-DD, local
	Time         string  `json:"time"` // HH:MM, local
	TemperatureC float64 `json:"temperature_c"`
	FeelsLikeC   float64 `json:"feels_like_c"`
	Description  string  `json:"description"`
	MainCategory string  `json:"main_category"`
	HumidityPct  int     `json:"humidity_pct"`
	WindMS       float64 `json:"wind_ms"`
	Source       string  `json:"source"`
}

// Provider fetches weather Readings from OpenWeatherMap.
type Provider struct {
	apiKey     string
	httpClient *http.Client
	geocoder   *geocode.Resolver
	baseGeo    string
	baseCur    string
	baseFcst   string
	baseOnec   string
}

// New builds a Provider. geocoder resolves city names to coordinates
// before any OpenWeatherMap call (OpenWeatherMap's own /geo/1.0/direct is
// used only as a fallback when geocoder misses).
func New(apiKey string, httpClient *http.Client, geocoder *geocode.Resolver) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{
		apiKey:     apiKey,
		httpClient: httpClient,
		geocoder:   geocoder,
		baseGeo:    geoURL,
		baseCur:    currentURL,
		baseFcst:   forecastURL,
		baseOnec:   onecallURL,
	}
}

type owCoord struct {
	lat, lon float64
	name     string
}

func (p *Provider) resolveCoord(ctx context.Context, city string) (owCoord, error) {
	if p.geocoder != nil {
		if loc, err := p.geocoder.Resolve(ctx, city); err == nil && loc != nil {
			return owCoord{lat: loc.Lat, lon: loc.Lon, name: loc.CanonicalName}, nil
		}
	}

	if p.apiKey == "" {
		return owCoord{}, errs.New(errs.InvalidLocation, "openweathermap", fmt.Errorf("no API key and geocoder miss for %q", city))
	}

	params := url.Values{"q": {city}, "limit": {"1"}, "appid": {p.apiKey}}
	var results []struct {
		Name    string  `json:"name"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		Country string  `json:"country"`
	}
	if err := p.getJSON(ctx, p.baseGeo+"?"+params.Encode(), &results); err != nil {
		return owCoord{}, err
	}
	if len(results) == 0 {
		return owCoord{}, errs.New(errs.InvalidLocation, "openweathermap", fmt.Errorf("city not found: %q", city))
	}
	return owCoord{lat: results[0].Lat, lon: results[0].Lon, name: results[0].Name}, nil
}

func (p *Provider) getJSON(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return errs.New(errs.ProviderError, "openweathermap", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errs.New(errs.Timeout, "openweathermap", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return errs.New(errs.RateLimit, "openweathermap", fmt.Errorf("429 from openweathermap"))
	default:
		return errs.New(errs.ProviderError, "openweathermap", fmt.Errorf("openweathermap returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.New(errs.Malformed, "openweathermap", err)
	}
	return nil
}

type currentResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Main        string `json:"main"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Timezone int `json:"timezone"`
}

// Current fetches present-moment conditions for city.
func (p *Provider) Current(ctx context.Context, city string) (*Reading, error) {
	coord, err := p.resolveCoord(ctx, city)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"lat": {fmt.Sprintf("%f", coord.lat)}, "lon": {fmt.Sprintf("%f", coord.lon)},
		"appid": {p.apiKey}, "units": {"metric"},
	}
	var resp currentResponse
	if err := p.getJSON(ctx, p.baseCur+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Weather) == 0 {
		return nil, errs.New(errs.Malformed, "openweathermap", fmt.Errorf("missing weather[] in response"))
	}

	now := time.Now().In(time.FixedZone("", resp.Timezone))
	return &Reading{
		Location:     coord.name,
		Date:         now.Format("2006-01-02"),
		Time:         now.Format("15:04"),
		TemperatureC: resp.Main.Temp,
		FeelsLikeC:   resp.Main.FeelsLike,
		Description:  resp.Weather[0].Description,
		MainCategory: resp.Weather[0].Main,
		HumidityPct:  resp.Main.Humidity,
		WindMS:       resp.Wind.Speed,
		Source:       "openweathermap.org",
	}, nil
}

type forecastEntry struct {
	DT   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Main        string `json:"main"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastResponse struct {
	List []forecastEntry `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

// partOfDayWindow returns the [start,end) local hour range for part, per
// spec: morning 06-12, afternoon 12-18, evening 18-24, night 20-24.
func partOfDayWindow(part domain.PartOfDay) (start, end int) {
	switch part {
	case domain.PartMorning:
		return 6, 12
	case domain.PartAfternoon:
		return 12, 18
	case domain.PartEvening:
		return 18, 24
	case domain.PartNight:
		return 20, 24
	default:
		return 0, 24
	}
}

// Forecast resolves city, fetches the hourly forecast window, converts
// timestamps to local time via the API's own timezone offset, and
// selects the entry matching targetDate and partOfDay. Falls back to the
// soonest future entry, then the last available entry.
func (p *Provider) Forecast(ctx context.Context, city, targetDate string, partOfDay domain.PartOfDay) (*Reading, error) {
	coord, err := p.resolveCoord(ctx, city)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"lat": {fmt.Sprintf("%f", coord.lat)}, "lon": {fmt.Sprintf("%f", coord.lon)},
		"appid": {p.apiKey}, "units": {"metric"},
	}
	var resp forecastResponse
	if err := p.getJSON(ctx, p.baseFcst+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, errs.New(errs.Malformed, "openweathermap", fmt.Errorf("empty forecast list"))
	}

	loc := time.FixedZone("", resp.City.Timezone)
	target, err := time.ParseInLocation("2006-01-02", targetDate, loc)
	if err != nil {
		return nil, errs.New(errs.Malformed, "planner", fmt.Errorf("invalid target date %q: %w", targetDate, err))
	}
	startHour, endHour := partOfDayWindow(partOfDay)

	var exact, future []forecastEntry
	for _, e := range resp.List {
		localTime := time.Unix(e.DT, 0).In(loc)
		if localTime.Format("2006-01-02") == targetDate {
			if localTime.Hour() >= startHour && localTime.Hour() < endHour {
				exact = append(exact, e)
			}
		}
		if !localTime.Before(target) {
			future = append(future, e)
		}
	}

	var chosen forecastEntry
	switch {
	case len(exact) > 0:
		chosen = exact[0]
	case len(future) > 0:
		sort.Slice(future, func(i, j int) bool { return future[i].DT < future[j].DT })
		chosen = future[0]
	default:
		chosen = resp.List[len(resp.List)-1]
	}
	if len(chosen.Weather) == 0 {
		return nil, errs.New(errs.Malformed, "openweathermap", fmt.Errorf("forecast entry missing weather[]"))
	}

	localTime := time.Unix(chosen.DT, 0).In(loc)
	return &Reading{
		Location:     coord.name,
		Date:         localTime.Format("2006-01-02"),
		Time:         localTime.Format("15:04"),
		TemperatureC: chosen.Main.Temp,
		FeelsLikeC:   chosen.Main.FeelsLike,
		Description:  chosen.Weather[0].Description,
		MainCategory: chosen.Weather[0].Main,
		HumidityPct:  chosen.Main.Humidity,
		WindMS:       chosen.Wind.Speed,
		Source:       "openweathermap.org",
	}, nil
}

// Historical fetches a past reading for city on date via the One Call
// time-machine style endpoint. date is required; an empty date is rejected
// with a HISTORICAL_DATE_REQUIRED error before any network call.
func (p *Provider) Historical(ctx context.Context, city, date string) (*Reading, error) {
	if date == "" {
		return nil, errs.New(errs.HistoricalDateRequired, "weather", fmt.Errorf("historical lookup requires a date"))
	}
	coord, err := p.resolveCoord(ctx, city)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errs.New(errs.Malformed, "weather", fmt.Errorf("invalid historical date %q: %w", date, err))
	}

	params := url.Values{
		"lat": {fmt.Sprintf("%f", coord.lat)}, "lon": {fmt.Sprintf("%f", coord.lon)},
		"dt": {strconv.FormatInt(t.Unix(), 10)}, "appid": {p.apiKey}, "units": {"metric"},
	}
	var resp struct {
		Data []struct {
			DT        int64   `json:"dt"`
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
			Weather   []struct {
				Description string `json:"description"`
				Main        string `json:"main"`
			} `json:"weather"`
		} `json:"data"`
		Timezone string `json:"timezone"`
		TZOffset int    `json:"timezone_offset"`
	}
	if err := p.getJSON(ctx, p.baseOnec+"/timemachine?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Weather) == 0 {
		return nil, errs.New(errs.Malformed, "openweathermap", fmt.Errorf("empty historical data for %q on %q", city, date))
	}

	d := resp.Data[0]
	loc := time.FixedZone("", resp.TZOffset)
	local := time.Unix(d.DT, 0).In(loc)
	return &Reading{
		Location:     coord.name,
		Date:         local.Format("2006-01-02"),
		Time:         local.Format("15:04"),
		TemperatureC: d.Temp,
		FeelsLikeC:   d.FeelsLike,
		Description:  d.Weather[0].Description,
		MainCategory: d.Weather[0].Main,
		HumidityPct:  d.Humidity,
		Source:       "openweathermap.org",
	}, nil
}
