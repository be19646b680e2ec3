// File path: internal/scan/scanner.go
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/extract"
	"github.com/geekygoose/gander/internal/llm"
	"github.com/geekygoose/gander/internal/prompt"
)

// Scanner turns one (control, evidence-set) pairing into a compliance
// report. Transport failures surface as errors; a response the extractor
// cannot recover yields an empty report instead, so a scan never sticks in
// an error state over malformed model output.
type Scanner struct {
	provider llm.Provider
	cfg      config.Provider
}

func NewScanner(provider llm.Provider, cfg config.Provider) *Scanner {
	return &Scanner{provider: provider, cfg: cfg}
}

type rawScanResponse struct {
	Requirements []rawRequirementResult `json:"requirements"`
	Gaps         []rawGap               `json:"gaps"`
}

type rawRequirementResult struct {
	RequirementID string                `json:"requirement_id"`
	Outcome       string                `json:"outcome"`
	Confidence    float64               `json:"confidence"`
	Rationale     string                `json:"rationale"`
	Citations     []compliance.Citation `json:"citations"`
}

type rawGap struct {
	RequirementID      string      `json:"requirement_id"`
	Summary            string      `json:"summary"`
	RecommendedActions []rawAction `json:"recommended_actions"`
}

type rawAction struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Priority string `json:"priority"`
}

// Run performs the provider call and normalises the response into a report
// with exactly one result per requirement.
func (s *Scanner) Run(ctx context.Context, control compliance.Control, requirements []compliance.Requirement, evidence []compliance.EvidenceExcerpt) (compliance.Report, error) {
	if s == nil || s.provider == nil {
		return compliance.Report{}, fmt.Errorf("scanner not configured")
	}
	settings := s.cfg.Current()
	logger := common.Logger()

	rendered := prompt.BuildScan(control, requirements, evidence, settings.EvidenceBudget)
	resp, err := s.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.ScanSystemPrompt},
			{Role: "user", Content: rendered},
		},
		Temperature: 0.1,
		MaxTokens:   4000,
		ForceJSON:   true,
	})
	if err != nil {
		return compliance.Report{}, fmt.Errorf("scan request: %w", err)
	}

	result, err := extract.JSONObjectWithSecondary(resp.Content, resp.Thinking, "requirements", "gaps")
	if err != nil {
		logger.Warn("scan: response had no structured data, returning empty report",
			"control", control.Code, "error", err)
		return compliance.Report{}, nil
	}
	if result.FromSecondary {
		logger.Warn("scan: report recovered from thinking channel", "control", control.Code, "strategy", result.Strategy)
	}
	var raw rawScanResponse
	if err := json.Unmarshal(result.Raw, &raw); err != nil {
		logger.Warn("scan: payload shape malformed, returning empty report", "control", control.Code, "error", err)
		return compliance.Report{}, nil
	}
	return normalize(raw, requirements), nil
}

// normalize guarantees the report invariants: exactly one result per known
// requirement (missing ones become NOT_FOUND), unknown or duplicate
// requirement references dropped, confidences clamped, and gaps only for
// non-passing requirements.
func normalize(raw rawScanResponse, requirements []compliance.Requirement) compliance.Report {
	logger := common.Logger()
	known := make(map[string]bool, len(requirements))
	for _, req := range requirements {
		known[req.ID] = true
	}

	results := make(map[string]compliance.RequirementResult, len(requirements))
	for _, entry := range raw.Requirements {
		id := strings.TrimSpace(entry.RequirementID)
		if !known[id] {
			logger.Warn("scan: dropping result for unknown requirement", "requirement_id", entry.RequirementID)
			continue
		}
		if _, dup := results[id]; dup {
			logger.Warn("scan: dropping duplicate requirement result", "requirement_id", id)
			continue
		}
		outcome := compliance.Outcome(strings.ToUpper(strings.TrimSpace(entry.Outcome)))
		if !compliance.ValidOutcome(string(outcome)) {
			outcome = compliance.OutcomeNotFound
		}
		results[id] = compliance.RequirementResult{
			RequirementID: id,
			Outcome:       outcome,
			Confidence:    compliance.ClampConfidence(entry.Confidence),
			Rationale:     strings.TrimSpace(entry.Rationale),
			Citations:     entry.Citations,
		}
	}

	report := compliance.Report{}
	outcomes := make(map[string]compliance.Outcome, len(requirements))
	for _, req := range requirements {
		result, ok := results[req.ID]
		if !ok {
			result = compliance.RequirementResult{
				RequirementID: req.ID,
				Outcome:       compliance.OutcomeNotFound,
				Confidence:    0,
				Rationale:     "No assessment returned for this requirement.",
			}
		}
		outcomes[req.ID] = result.Outcome
		report.Requirements = append(report.Requirements, result)
	}

	seenGaps := make(map[string]bool)
	for _, entry := range raw.Gaps {
		id := strings.TrimSpace(entry.RequirementID)
		outcome, ok := outcomes[id]
		if !ok || seenGaps[id] {
			continue
		}
		if outcome == compliance.OutcomePass {
			logger.Warn("scan: dropping gap for passing requirement", "requirement_id", id)
			continue
		}
		seenGaps[id] = true
		gap := compliance.Gap{
			RequirementID: id,
			Summary:       strings.TrimSpace(entry.Summary),
		}
		for _, action := range entry.RecommendedActions {
			gap.RecommendedActions = append(gap.RecommendedActions, compliance.RecommendedAction{
				Title:    strings.TrimSpace(action.Title),
				Detail:   strings.TrimSpace(action.Detail),
				Priority: compliance.NormalizePriority(action.Priority),
			})
		}
		report.Gaps = append(report.Gaps, gap)
	}
	return report
}
