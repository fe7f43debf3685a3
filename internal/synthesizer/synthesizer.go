// Package synthesizer implements the Synthesizer Agent (C9): it trims a
// tiered evidence bundle to a prompt-sized budget, calls the Model
// Gateway for a reasoned verdict, and falls back to a deterministic
// heuristic when every provider fails or returns unparseable JSON.
// Grounded on app/agent_synthesizer.py's execute_final_analysis,
// _trim_evidence_bundle, and _heuristic_summarize.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zerofake-go/verifier/internal/domain"
	"github.com/zerofake-go/verifier/internal/limits"
	"github.com/zerofake-go/verifier/internal/modelgw"
)

// Synthesizer ties the Model Gateway and the evidence trim policy behind
// the single Synthesize operation.
type Synthesizer struct {
	gateway        *modelgw.Gateway
	limiter        *limits.EvidenceLimiter
	promptTemplate string
}

// New builds a Synthesizer. promptTemplate is the opaque, loaded-once
// prompt with "{evidence_bundle_json}", "{claim}", and "{current_date}"
// placeholders (A1 Config owns loading it from disk at startup).
func New(gateway *modelgw.Gateway, limiter *limits.EvidenceLimiter, promptTemplate string) *Synthesizer {
	if limiter == nil {
		limiter = limits.NewEvidenceLimiter(nil)
	}
	return &Synthesizer{gateway: gateway, limiter: limiter, promptTemplate: promptTemplate}
}

// rawVerdict is the shape the LLM is prompted to emit.
type rawVerdict struct {
	Conclusion         string  `json:"conclusion"`
	Reason             string  `json:"reason"`
	StyleAnalysis      string  `json:"style_analysis"`
	KeyEvidenceSnippet string  `json:"key_evidence_snippet"`
	KeyEvidenceSource  string  `json:"key_evidence_source"`
	Confidence         float64 `json:"confidence"`
}

type trimmedItem struct {
	Source    string  `json:"source"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	RankScore float64 `json:"rank_score"`
	Date      string  `json:"date"`
}

type trimmedBundle struct {
	Layer1Tools     []domain.ToolResult `json:"layer_1_tools"`
	Layer2HighTrust []trimmedItem       `json:"layer_2_high_trust"`
	Layer3General   []trimmedItem       `json:"layer_3_general"`
	Layer4SocialLow []trimmedItem       `json:"layer_4_social_low"`
}

// Synthesize runs the full algorithm: trim, render, call, parse, and —
// on any failure along the way — heuristic fallback. It never returns an
// error: a complete LLM failure still produces a well-formed Verdict from
// the heuristic fallback.
func (s *Synthesizer) Synthesize(ctx context.Context, claim string, bundle *domain.EvidenceBundle, currentDate, feedbackExamples string) *domain.Verdict {
	trimmed := s.trim(bundle)
	bundleJSON, _ := json.MarshalIndent(trimmed, "", "  ")
	prompt := renderPrompt(s.promptTemplate, string(bundleJSON), claim, currentDate, feedbackExamples)

	rv, err := modelgw.GenerateData[rawVerdict](ctx, s.gateway, prompt)
	if err == nil && rv != nil && rv.Conclusion != "" {
		return &domain.Verdict{
			Conclusion:         normalizeConclusion(rv.Conclusion),
			Reason:             rv.Reason,
			StyleAnalysis:      rv.StyleAnalysis,
			KeyEvidenceSnippet: rv.KeyEvidenceSnippet,
			KeyEvidenceSource:  rv.KeyEvidenceSource,
			Cached:             false,
			Confidence:         rv.Confidence,
		}
	}

	return heuristicSummarize(trimmed)
}

// trim applies the configured caps per tier and collapses+truncates
// every snippet, keeping the prompt under provider context budgets.
func (s *Synthesizer) trim(bundle *domain.EvidenceBundle) trimmedBundle {
	if bundle == nil {
		bundle = &domain.EvidenceBundle{}
	}
	lim := s.limiter.GetLimits()
	return trimmedBundle{
		Layer1Tools:     trimLayer1(limits.CapSlice(bundle.Layer1Tools, lim.MaxL1Entries), lim.MaxSnippetChars),
		Layer2HighTrust: trimItems(limits.CapSlice(bundle.Layer2HighTrust, lim.MaxL2Entries), lim.MaxSnippetChars),
		Layer3General:   trimItems(limits.CapSlice(bundle.Layer3General, lim.MaxL3Entries), lim.MaxSnippetChars),
		Layer4SocialLow: trimItems(limits.CapSlice(bundle.Layer4SocialLow, lim.MaxL4Entries), lim.MaxSnippetChars),
	}
}

func trimLayer1(items []domain.ToolResult, maxChars int) []domain.ToolResult {
	out := make([]domain.ToolResult, len(items))
	for i, it := range items {
		out[i] = it
		if it.Data == nil {
			continue
		}
		data := make(map[string]any, len(it.Data))
		for k, v := range it.Data {
			data[k] = v
		}
		if desc, ok := data["description"].(string); ok {
			data["description"] = trimSnippet(desc, maxChars)
		}
		out[i].Data = data
	}
	return out
}

func trimItems(items []domain.EvidenceItem, maxChars int) []trimmedItem {
	out := make([]trimmedItem, 0, len(items))
	for _, it := range items {
		out = append(out, trimmedItem{
			Source:    it.SourceDomain,
			URL:       it.URL,
			Snippet:   trimSnippet(it.Snippet, maxChars),
			RankScore: it.RankScore,
			Date:      it.Date,
		})
	}
	return out
}

func trimSnippet(s string, maxChars int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxChars > 0 && utf8.RuneCountInString(s) > maxChars {
		runes := []rune(s)
		return string(runes[:maxChars])
	}
	return s
}

func renderPrompt(template, bundleJSON, claim, currentDate, feedbackExamples string) string {
	return strings.NewReplacer(
		"{evidence_bundle_json}", bundleJSON,
		"{claim}", claim,
		"{current_date}", currentDate,
		"{feedback_examples}", feedbackExamples,
	).Replace(template)
}

// normalizeConclusion maps the LLM's raw label — which may come back in
// either English or the Vietnamese the source's own heuristic emits — to
// the closed domain.Conclusion set. Anything unrecognized defaults to
// UNVERIFIED rather than guessing.
func normalizeConclusion(raw string) domain.Conclusion {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(domain.ConclusionTrue), "TIN THẬT", "ĐÚNG":
		return domain.ConclusionTrue
	case string(domain.ConclusionFalse), "TIN GIẢ", "SAI":
		return domain.ConclusionFalse
	case string(domain.ConclusionMisleading), "GÂY HIỂU LẦM":
		return domain.ConclusionMisleading
	default:
		return domain.ConclusionUnverified
	}
}

// heuristicSummarize is the deterministic fallback used when every
// model in the gateway's chain failed or returned unparseable JSON: TRUE
// iff ≥2 L2 sources agree (quoting the top one); else TRUE iff L1 holds
// a successful weather reading (quoting its description); else
// UNVERIFIED with an explanatory reason.
func heuristicSummarize(trimmed trimmedBundle) *domain.Verdict {
	if len(trimmed.Layer2HighTrust) >= 2 {
		top := trimmed.Layer2HighTrust[0]
		return &domain.Verdict{
			Conclusion:         domain.ConclusionTrue,
			Reason:             fmt.Sprintf("Heuristic: at least two high-trust sources agree, e.g. %s (%s).", top.Source, top.Date),
			KeyEvidenceSnippet: top.Snippet,
			KeyEvidenceSource:  top.Source,
			Cached:             false,
		}
	}

	for _, tr := range trimmed.Layer1Tools {
		if tr.ToolName == domain.ToolWeather && tr.Status == domain.StatusSuccess {
			src, _ := tr.Data["location"].(string)
			if src == "" {
				src = "openweathermap"
			}
			desc, _ := tr.Data["description"].(string)
			return &domain.Verdict{
				Conclusion:         domain.ConclusionTrue,
				Reason:             "Heuristic: structured weather data matches the stated time and place.",
				KeyEvidenceSnippet: desc,
				KeyEvidenceSource:  src,
				Cached:             false,
			}
		}
	}

	return &domain.Verdict{
		Conclusion: domain.ConclusionUnverified,
		Reason:     "Heuristic fallback: not enough L2/L3 corroboration and no successful weather tool.",
		Cached:     false,
	}
}
