// File path: internal/classifier/classifier.go
package classifier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/extract"
	"github.com/geekygoose/gander/internal/llm"
	"github.com/geekygoose/gander/internal/prompt"
)

// Classifier turns a document's extracted text into at most one control
// suggestion. Hosted backends take a single-shot path; local backends take
// the two-step summarize-then-map path, which keeps each expected output
// shape small enough for local models to produce reliably.
type Classifier struct {
	provider llm.Provider
	cfg      config.Provider
}

func New(provider llm.Provider, cfg config.Provider) *Classifier {
	return &Classifier{provider: provider, cfg: cfg}
}

// AnalyzeDocument classifies a document against the candidate catalog. The
// result is at most one suggestion; every failure along the AI path degrades
// to the filename fallback rather than an error.
func (c *Classifier) AnalyzeDocument(ctx context.Context, filename, text string, candidates []compliance.Control) []compliance.Suggestion {
	if c == nil || c.provider == nil || len(candidates) == 0 {
		return FallbackSuggestions(filename, candidates)
	}
	settings := c.cfg.Current()
	logger := common.Logger()

	var suggestion *compliance.Suggestion
	if c.provider.Name() == "ollama" {
		suggestion = c.twoStep(ctx, filename, text, candidates, settings)
	} else {
		suggestion = c.singleShot(ctx, filename, text, candidates, settings)
	}
	if suggestion == nil {
		logger.Info("classifier: ai analysis produced no suggestion, using filename fallback", "filename", filename)
		return FallbackSuggestions(filename, candidates)
	}
	logger.Info("classifier: document classified",
		"filename", filename, "control", suggestion.ControlCode, "confidence", suggestion.Confidence)
	return []compliance.Suggestion{*suggestion}
}

type suggestionsPayload struct {
	Suggestions []rawSuggestion `json:"suggestions"`
}

type rawSuggestion struct {
	ControlCode  string  `json:"control_code"`
	ControlTitle string  `json:"control_title"`
	Framework    string  `json:"framework_name"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// singleShot asks a hosted backend to pick a control in one request.
func (c *Classifier) singleShot(ctx context.Context, filename, text string, candidates []compliance.Control, settings config.Settings) *compliance.Suggestion {
	logger := common.Logger()
	rendered := prompt.BuildClassify(filename, text, candidates, settings.DocumentBudget, settings.CandidateLimit)
	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.ClassifySystemPrompt},
			{Role: "user", Content: rendered},
		},
		Temperature: 0.1,
		MaxTokens:   500,
		ForceJSON:   true,
	})
	if err != nil {
		logger.Warn("classifier: single-shot request failed", "filename", filename, "error", err)
		return nil
	}
	result, err := extract.JSONObjectWithSecondary(resp.Content, resp.Thinking, "suggestions")
	if err != nil {
		logger.Warn("classifier: single-shot response had no structured data", "filename", filename, "error", err)
		return nil
	}
	var payload suggestionsPayload
	if err := json.Unmarshal(result.Raw, &payload); err != nil {
		logger.Warn("classifier: single-shot payload malformed", "filename", filename, "error", err)
		return nil
	}
	return c.bestValid(payload.Suggestions, candidates, settings)
}

// bestValid keeps the highest-confidence suggestion whose control code exists
// in the candidate catalog, normalising fields along the way.
func (c *Classifier) bestValid(raw []rawSuggestion, candidates []compliance.Control, settings config.Settings) *compliance.Suggestion {
	byCode := make(map[string]compliance.Control, len(candidates))
	for _, control := range candidates {
		byCode[strings.ToUpper(control.Code)] = control
	}
	var best *compliance.Suggestion
	for _, entry := range raw {
		control, ok := byCode[strings.ToUpper(strings.TrimSpace(entry.ControlCode))]
		if !ok {
			common.Logger().Warn("classifier: suggestion references unknown control", "control_code", entry.ControlCode)
			continue
		}
		candidate := compliance.Suggestion{
			ControlCode:  control.Code,
			ControlTitle: control.Title,
			Framework:    control.Framework,
			Confidence:   compliance.ClampConfidence(entry.Confidence),
			Reasoning:    compliance.TruncateReasoning(entry.Reasoning, settings.ReasoningBudget),
		}
		if best == nil || candidate.Confidence > best.Confidence {
			best = &candidate
		}
	}
	return best
}
