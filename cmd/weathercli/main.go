// Command weathercli is the local executable fallback the Tool Executor
// (C8) shells out to when the OpenWeatherMap-backed provider fails. It
// takes the same parameters as a weather ToolCall and prints a single L1
// weather-shaped JSON object to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zerofake-go/verifier/internal/config"
	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/geocode"
	"github.com/zerofake-go/verifier/internal/weather"
)

func main() {
	city := flag.String("city", "", "city name to query")
	mode := flag.String("mode", "current", "current | forecast | historical")
	relative := flag.String("relative", "", "relative descriptor, e.g. morning/afternoon/evening/night")
	date := flag.String("date", "", "target date YYYY-MM-DD (required for forecast/historical)")
	flag.Parse()

	if *city == "" {
		fmt.Fprintln(os.Stderr, "weathercli: --city is required")
		os.Exit(2)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weathercli: loading config: %v\n", err)
		os.Exit(1)
	}

	geocoder, err := geocode.New(nil, 256)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weathercli: %v\n", err)
		os.Exit(1)
	}
	provider := weather.New(cfg.OpenWeatherAPIKey, nil, geocoder)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var reading *domain.ToolResult
	switch *mode {
	case "current":
		r, err := provider.Current(ctx, *city)
		reading = toToolResult(r, err)
	case "forecast":
		r, err := provider.Forecast(ctx, *city, *date, domain.PartOfDay(*relative))
		reading = toToolResult(r, err)
	case "historical":
		r, err := provider.Historical(ctx, *city, *date)
		reading = toToolResult(r, err)
	default:
		fmt.Fprintf(os.Stderr, "weathercli: unknown mode %q\n", *mode)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(reading); err != nil {
		fmt.Fprintf(os.Stderr, "weathercli: encoding result: %v\n", err)
		os.Exit(1)
	}
}

func toToolResult(r *weather.Reading, err error) *domain.ToolResult {
	if err != nil {
		status := domain.StatusAPIError
		if kind, ok := classify(err); ok {
			status = kind
		}
		return &domain.ToolResult{ToolName: domain.ToolWeather, Status: status, Data: map[string]any{"error": err.Error()}}
	}
	data, _ := json.Marshal(r)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return &domain.ToolResult{ToolName: domain.ToolWeather, Status: domain.StatusSuccess, Data: m}
}

func classify(err error) (domain.ToolStatus, bool) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "HISTORICAL_DATE_REQUIRED"):
		return domain.StatusHistoricalDateRequired, true
	case strings.Contains(msg, "INVALID_LOCATION"):
		return domain.StatusInvalidLocation, true
	default:
		return domain.StatusAPIError, false
	}
}
