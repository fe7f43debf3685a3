// Package modelgw is the single chokepoint every other component uses to
// talk to an LLM. It owns provider selection, structured-output decoding
// and the Kind-classified error taxonomy the rest of the pipeline branches
// on, the way the teacher's internal/llm package owned Genkit flow
// definition for its own prompts.
package modelgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zerofake-go/verifier/internal/errs"
)

// Mode selects how a multi-provider Gateway picks among its configured
// backends for a single Generate call.
type Mode string

const (
	// ModeSingle always calls the first configured provider.
	ModeSingle Mode = "single"
	// ModeCompound tries providers in order, advancing to the next
	// provider on any failure (rate limit, timeout, empty or malformed
	// response, or a raw provider error), mirroring call_compound_model.
	ModeCompound Mode = "compound"
)

// Provider is one backend capable of generating text or structured JSON.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Gateway fronts one or more Providers behind a single call surface.
type Gateway struct {
	providers []Provider
	mode      Mode
	timeout   time.Duration
}

// New builds a Gateway. providers are tried in the given order under
// ModeCompound; only providers[0] is used under ModeSingle.
func New(mode Mode, timeout time.Duration, providers ...Provider) *Gateway {
	return &Gateway{providers: providers, mode: mode, timeout: timeout}
}

// GenerateText runs the configured fallback policy and returns raw text.
func (g *Gateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	if len(g.providers) == 0 {
		return "", errs.New(errs.ProviderError, "gateway", fmt.Errorf("no providers configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	candidates := g.providers
	if g.mode == ModeSingle {
		candidates = g.providers[:1]
	}

	var lastErr error
	for _, p := range candidates {
		text, err := p.GenerateText(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if g.mode != ModeCompound {
			break
		}
		if kind, ok := errs.KindOf(err); ok && kind == errs.RateLimit {
			log.Printf("modelgw: %s rate-limited, falling back", p.Name())
		} else {
			log.Printf("modelgw: %s failed (%v), trying next provider", p.Name(), err)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no provider produced output")
	}
	return "", lastErr
}

// GenerateData runs GenerateText and decodes the result as JSON into T,
// tolerating LLM text that wraps JSON in prose by extracting the first
// balanced brace-delimited object.
func GenerateData[T any](ctx context.Context, g *Gateway, prompt string) (*T, error) {
	text, err := g.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.New(errs.Empty, "gateway", fmt.Errorf("empty model response"))
	}

	raw := ExtractJSONObject(text)
	if raw == "" {
		return nil, errs.New(errs.Malformed, "gateway", fmt.Errorf("no JSON object found in model response"))
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errs.New(errs.Malformed, "gateway", fmt.Errorf("decoding model JSON: %w", err))
	}
	return &out, nil
}

// ExtractJSONObject pulls the first balanced {...} object out of s by
// counting brace depth, so any level of nesting is accepted; braces inside
// JSON string values are counted like any other.
func ExtractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// GeminiProvider calls a Gemini model through Genkit's googlegenai plugin.
type GeminiProvider struct {
	g         *genkit.Genkit
	modelName string
}

// NewGeminiProvider initializes Genkit with the GoogleAI plugin and
// returns a Provider bound to modelName (e.g. "googleai/gemini-2.5-flash").
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	g := genkit.Init(
		ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: apiKey}),
		genkit.WithDefaultModel(modelName),
	)
	return &GeminiProvider{g: g, modelName: modelName}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, p.g, ai.WithModelName(p.modelName), ai.WithPrompt(prompt))
	if err != nil {
		return "", classifyGenkitError("gemini", err)
	}
	return resp.Text(), nil
}

// OpenAICompatProvider calls any OpenAI-Chat-Completions-compatible
// endpoint (OpenAI itself, or Groq's OpenAI-compatible base URL).
type OpenAICompatProvider struct {
	client    openai.Client
	model     string
	providerName string
}

// NewOpenAICompatProvider builds a provider against baseURL with apiKey,
// labeled providerName for error classification and logging.
func NewOpenAICompatProvider(apiKey, baseURL, model, providerName string) *OpenAICompatProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &OpenAICompatProvider{client: client, model: model, providerName: providerName}
}

func (p *OpenAICompatProvider) Name() string { return p.providerName }

func (p *OpenAICompatProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classifyOpenAIError(p.providerName, err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.Empty, p.providerName, fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyGenkitError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.Timeout, provider, err)
	}
	if errs.RateLimitSignal(err.Error()) {
		return errs.New(errs.RateLimit, provider, err)
	}
	return errs.New(errs.ProviderError, provider, err)
}

func classifyOpenAIError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.Timeout, provider, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || errs.RateLimitSignal(msg) {
		return errs.New(errs.RateLimit, provider, err)
	}
	return errs.New(errs.ProviderError, provider, err)
}
