// Package config loads every secret and tuning knob the pipeline needs
// from the environment, the way the teacher's own config package does:
// godotenv.Load, typed fields, getEnvOrDefault helpers, fail fast on
// missing required values.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config is the full configuration surface enumerated in spec.md §6.
type Config struct {
	// Secrets: one API key per outbound provider.
	GeminiAPIKey       string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GroqAPIKey         string
	GroqBaseURL        string
	GoogleCSEKey       string
	GoogleCSEID        string
	GoogleFactCheckKey string
	OpenWeatherAPIKey  string

	// Listen addresses for the ambient HTTP service.
	HTTPAddr string

	// Tuning.
	CacheSimilarityThreshold float64
	EmbeddingDimension       int
	TrimCapL2                int
	TrimCapL3                int
	TrimCapL4                int
	TrimCapL1                int
	SnippetCapChars          int
	DefaultLLMTimeout        time.Duration
	BackgroundRefreshEvery   time.Duration
	MaxRefreshItemsPerCycle  int
	RefreshCooldown          time.Duration
	HotCategories            []string

	// Weather CLI fallback helper binary.
	WeatherCLIPath string

	// Prompt templates: paths to the opaque, loaded-once prompt files for
	// the Planner (C4) and Synthesizer (C9). When the file is missing,
	// LoadPromptTemplate falls back to a minimal built-in template so the
	// service still starts in a fresh checkout.
	PlannerPromptPath     string
	SynthesizerPromptPath string

	// Cache (C10) and Feedback Store (C11) snapshot paths.
	CachePath    string
	FeedbackPath string
}

// DefaultPlannerPrompt is used when PlannerPromptPath is unset or
// unreadable. Prompt wording is explicitly out of scope for this system
// (treated as an opaque template); this default only needs to carry the
// placeholders the Planner substitutes.
const DefaultPlannerPrompt = `You are a fact-checking planner. Claim: {claim}
Today's date: {current_date}
Past corrections to learn from: {feedback_examples}
Respond with a single JSON object describing the action plan.`

// DefaultSynthesizerPrompt is used when SynthesizerPromptPath is unset or
// unreadable.
const DefaultSynthesizerPrompt = `You are a fact-checking synthesizer. Claim: {claim}
Today's date: {current_date}
Past corrections to learn from: {feedback_examples}
Evidence gathered: {evidence_bundle_json}
Respond with a single JSON object containing the verdict.`

// LoadPromptTemplate reads path and returns its contents, or fallback if
// path is empty or the file cannot be read.
func LoadPromptTemplate(path, fallback string) string {
	if path == "" {
		return fallback
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	return string(data)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// Load reads .env (if present) and environment variables into a Config,
// applying defaults for tuning knobs and validating that at least one LLM
// provider key is configured.
func Load(loadDotenv func() error) (*Config, error) {
	if loadDotenv != nil {
		if err := loadDotenv(); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{
		GeminiAPIKey:             os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:             os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:            getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GroqAPIKey:               os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:              getEnvOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GoogleCSEKey:             os.Getenv("GOOGLE_API_KEY"),
		GoogleCSEID:              os.Getenv("GOOGLE_CSE_ID"),
		GoogleFactCheckKey:       os.Getenv("GOOGLE_FACT_CHECK_API_KEY"),
		OpenWeatherAPIKey:        os.Getenv("OPENWEATHER_API_KEY"),
		HTTPAddr:                 getEnvOrDefault("HTTP_ADDR", ":8080"),
		CacheSimilarityThreshold: getEnvFloatOrDefault("CACHE_SIMILARITY_THRESHOLD", 0.85),
		EmbeddingDimension:       getEnvIntOrDefault("EMBEDDING_DIMENSION", 768),
		TrimCapL1:                getEnvIntOrDefault("TRIM_CAP_L1", 3),
		TrimCapL2:                getEnvIntOrDefault("TRIM_CAP_L2", 5),
		TrimCapL3:                getEnvIntOrDefault("TRIM_CAP_L3", 5),
		TrimCapL4:                getEnvIntOrDefault("TRIM_CAP_L4", 2),
		SnippetCapChars:          getEnvIntOrDefault("SNIPPET_CAP_CHARS", 280),
		DefaultLLMTimeout:        getEnvDurationOrDefault("DEFAULT_LLM_TIMEOUT", 30*time.Second),
		BackgroundRefreshEvery:   getEnvDurationOrDefault("BACKGROUND_REFRESH_INTERVAL", 300*time.Second),
		MaxRefreshItemsPerCycle:  getEnvIntOrDefault("MAX_REFRESH_ITEMS", 10),
		RefreshCooldown:          getEnvDurationOrDefault("REFRESH_COOLDOWN", 2*time.Second),
		HotCategories:            []string{"finance", "breaking_news", "sports", "politics"},
		WeatherCLIPath:           os.Getenv("WEATHER_CLI_PATH"),
		PlannerPromptPath:        os.Getenv("PLANNER_PROMPT_PATH"),
		SynthesizerPromptPath:    os.Getenv("SYNTHESIZER_PROMPT_PATH"),
		CachePath:                getEnvOrDefault("CACHE_PATH", "data/cache.gob"),
		FeedbackPath:             getEnvOrDefault("FEEDBACK_PATH", "data/feedback.gob"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that enough configuration is present to run the
// pipeline at all: at least one LLM provider key.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" && c.GroqAPIKey == "" {
		return errors.New("config: at least one of GEMINI_API_KEY, OPENAI_API_KEY, GROQ_API_KEY is required")
	}
	return nil
}
