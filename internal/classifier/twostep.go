// File path: internal/classifier/twostep.go
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

type mapSelection struct {
	SelectedNumber int     `json:"selected_number"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// twoStep runs the summarize-then-map protocol against a local backend. The
// backend's reachability is checked first so an unreachable endpoint degrades
// immediately instead of timing out across two chat calls. Any failure in
// either step returns nil so the caller can degrade to the filename fallback.
func (c *Classifier) twoStep(ctx context.Context, filename, text string, candidates []compliance.Control, settings config.Settings) *compliance.Suggestion {
	if err := c.provider.CheckReachability(ctx); err != nil {
		common.Logger().Warn("classifier: local backend unreachable, skipping ai analysis", "filename", filename, "error", err)
		return nil
	}
	summary := c.summarize(ctx, filename, text, settings)
	if summary == "" {
		return nil
	}
	return c.mapToControl(ctx, filename, summary, candidates, settings)
}

// summarize asks the model for a compact fixed-shape summary of the document
// and returns the recovered JSON, or empty on failure.
func (c *Classifier) summarize(ctx context.Context, filename, text string, settings config.Settings) string {
	logger := common.Logger()
	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt.BuildSummary(filename, text, settings.DocumentBudget)}},
		Temperature: 0.1,
		MaxTokens:   400,
		ForceJSON:   true,
	})
	if err != nil {
		logger.Warn("classifier: summary request failed", "filename", filename, "error", err)
		return ""
	}
	result, err := extract.JSONObjectWithSecondary(resp.Content, resp.Thinking, "document_type", "primary_topic")
	if err != nil {
		logger.Warn("classifier: summary response had no structured data", "filename", filename, "error", err)
		return ""
	}
	if result.FromSecondary {
		logger.Warn("classifier: summary recovered from thinking channel", "filename", filename, "strategy", result.Strategy)
	}
	return string(result.Raw)
}

// mapToControl asks the model to select one control from a numbered candidate
// list using the step-one summary. Selections outside the list bounds are
// rejected.
func (c *Classifier) mapToControl(ctx context.Context, filename, summary string, candidates []compliance.Control, settings config.Settings) *compliance.Suggestion {
	logger := common.Logger()
	bounded := candidates
	if settings.MapLimit > 0 && len(bounded) > settings.MapLimit {
		bounded = bounded[:settings.MapLimit]
	}
	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt.BuildMap(summary, bounded, settings.MapLimit)}},
		Temperature: 0.1,
		MaxTokens:   200,
		ForceJSON:   true,
	})
	if err != nil {
		logger.Warn("classifier: map request failed", "filename", filename, "error", err)
		return nil
	}
	result, err := extract.JSONObjectWithSecondary(resp.Content, resp.Thinking, "selected_number")
	if err != nil {
		logger.Warn("classifier: map response had no structured data", "filename", filename, "error", err)
		return nil
	}
	if result.FromSecondary {
		logger.Warn("classifier: map selection recovered from thinking channel", "filename", filename, "strategy", result.Strategy)
	}
	var selection mapSelection
	if err := json.Unmarshal(result.Raw, &selection); err != nil {
		logger.Warn("classifier: map payload malformed", "filename", filename, "error", err)
		return nil
	}
	if selection.SelectedNumber < 1 || selection.SelectedNumber > len(bounded) {
		logger.Warn("classifier: map selection out of range",
			"filename", filename, "selected", selection.SelectedNumber, "candidates", len(bounded))
		return nil
	}
	control := bounded[selection.SelectedNumber-1]
	return &compliance.Suggestion{
		ControlCode:  control.Code,
		ControlTitle: control.Title,
		Framework:    control.Framework,
		Confidence:   compliance.ClampConfidence(selection.Confidence),
		Reasoning:    compliance.TruncateReasoning(strings.TrimSpace(selection.Reasoning), settings.ReasoningBudget),
	}
}
