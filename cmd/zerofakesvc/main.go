// Command zerofakesvc is the HTTP service entrypoint: it wires every
// pipeline component from internal/config, serves the three Inbound RPCs
// of spec.md §6 (check_claim, feedback, health) plus a live progress
// websocket, and shuts down gracefully on SIGINT/SIGTERM. The teacher's
// own cmd/main.go is a broken stub (undefined proxy/cert/store/web
// symbols); only its genkit.Init-then-graceful-shutdown shape survives
// here.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zerofake-go/verifier/internal/cache"
	"github.com/zerofake-go/verifier/internal/config"
	"github.com/zerofake-go/verifier/internal/executor"
	"github.com/zerofake-go/verifier/internal/feedback"
	"github.com/zerofake-go/verifier/internal/geocode"
	"github.com/zerofake-go/verifier/internal/limits"
	"github.com/zerofake-go/verifier/internal/modelgw"
	"github.com/zerofake-go/verifier/internal/pipeline"
	"github.com/zerofake-go/verifier/internal/planner"
	"github.com/zerofake-go/verifier/internal/search"
	"github.com/zerofake-go/verifier/internal/synthesizer"
	"github.com/zerofake-go/verifier/internal/weather"
	"github.com/zerofake-go/verifier/internal/websocket"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx := context.Background()

	cfg, err := config.Load(godotenv.Load)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("building model gateway")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	geocoder, err := geocode.New(httpClient, 1024)
	if err != nil {
		log.Fatal().Err(err).Msg("building geocoder")
	}

	weatherProvider := weather.New(cfg.OpenWeatherAPIKey, httpClient, geocoder)
	searchOrch := search.NewOrchestrator(httpClient, cfg)
	exec := executor.New(searchOrch, weatherProvider, cfg.WeatherCLIPath, 20*time.Second)

	plannerPrompt := config.LoadPromptTemplate(cfg.PlannerPromptPath, config.DefaultPlannerPrompt)
	synthPrompt := config.LoadPromptTemplate(cfg.SynthesizerPromptPath, config.DefaultSynthesizerPrompt)

	plan := planner.New(gw, geocoder, plannerPrompt)
	limiter := limits.NewEvidenceLimiter(&limits.EvidenceLimits{
		MaxL1Entries:    cfg.TrimCapL1,
		MaxL2Entries:    cfg.TrimCapL2,
		MaxL3Entries:    cfg.TrimCapL3,
		MaxL4Entries:    cfg.TrimCapL4,
		MaxSnippetChars: cfg.SnippetCapChars,
		MaxEntryAge:     24 * time.Hour,
	})
	synth := synthesizer.New(gw, limiter, synthPrompt)

	refreshLimits := &limits.RefreshLimits{
		MaxItemsPerCycle: cfg.MaxRefreshItemsPerCycle,
		CycleInterval:    cfg.BackgroundRefreshEvery,
		Cooldown:         cfg.RefreshCooldown,
		HotCategories:    cfg.HotCategories,
	}
	semanticCache, err := cache.New(cfg.CachePath, cfg.EmbeddingDimension, cfg.CacheSimilarityThreshold, refreshLimits)
	if err != nil {
		log.Fatal().Err(err).Msg("building semantic cache")
	}
	feedbackStore, err := feedback.New(cfg.FeedbackPath, cfg.EmbeddingDimension)
	if err != nil {
		log.Fatal().Err(err).Msg("building feedback store")
	}

	hub := websocket.NewHub()
	go hub.Run()

	pl := pipeline.New(semanticCache, feedbackStore, plan, exec, synth, hub)
	semanticCache.StartRefresher(ctx, pl.Verify)
	defer semanticCache.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/check", checkClaimHandler(pl))
	mux.HandleFunc("/v1/feedback", feedbackHandler(pl))
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("zerofakesvc listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
}

// buildGateway assembles the C1 Model Gateway's provider fallback chain
// from whichever keys are configured, in Gemini → OpenAI → Groq priority
// order.
func buildGateway(ctx context.Context, cfg *config.Config) (*modelgw.Gateway, error) {
	var providers []modelgw.Provider

	if cfg.GeminiAPIKey != "" {
		p, err := modelgw.NewGeminiProvider(ctx, cfg.GeminiAPIKey, "googleai/gemini-2.5-flash")
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, modelgw.NewOpenAICompatProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, "gpt-4o-mini", "openai"))
	}
	if cfg.GroqAPIKey != "" {
		providers = append(providers, modelgw.NewOpenAICompatProvider(cfg.GroqAPIKey, cfg.GroqBaseURL, "llama-3.3-70b-versatile", "groq"))
	}

	return modelgw.New(modelgw.ModeCompound, cfg.DefaultLLMTimeout, providers...), nil
}

type checkRequest struct {
	Text string `json:"text"`
}

type feedbackRequest struct {
	Claim            string `json:"claim"`
	SystemConclusion string `json:"system_conclusion"`
	SystemReason     string `json:"system_reason"`
	HumanCorrection  string `json:"human_correction"`
	Notes            string `json:"notes"`
}

func checkClaimHandler(pl *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		reqID := uuid.New().String()
		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		log.Info().Str("request_id", reqID).Str("path", r.URL.Path).Msg("check_claim")

		verdict, err := pl.CheckClaim(r.Context(), req.Text)
		if err != nil {
			log.Error().Str("request_id", reqID).Err(err).Msg("check_claim failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(verdict)
	}
}

func feedbackHandler(pl *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		reqID := uuid.New().String()
		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Claim == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		log.Info().Str("request_id", reqID).Str("path", r.URL.Path).Msg("feedback")

		if err := pl.RecordFeedback(req.Claim, req.SystemConclusion, req.SystemReason, req.HumanCorrection, req.Notes); err != nil {
			log.Error().Str("request_id", reqID).Err(err).Msg("feedback failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0.0"})
}
