// File path: internal/compliance/types.go
package compliance

import (
	"strings"
	"time"
)

// Outcome classifies how well gathered evidence satisfies a requirement.
type Outcome string

const (
	OutcomePass     Outcome = "PASS"
	OutcomePartial  Outcome = "PARTIAL"
	OutcomeFail     Outcome = "FAIL"
	OutcomeNotFound Outcome = "NOT_FOUND"
)

// ValidOutcome reports whether the value is one of the recognised outcomes.
func ValidOutcome(value string) bool {
	switch Outcome(strings.ToUpper(strings.TrimSpace(value))) {
	case OutcomePass, OutcomePartial, OutcomeFail, OutcomeNotFound:
		return true
	}
	return false
}

// Priority ranks a recommended remediation action.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// NormalizePriority maps free-form model output onto a recognised priority,
// defaulting to MEDIUM.
func NormalizePriority(value string) Priority {
	switch Priority(strings.ToUpper(strings.TrimSpace(value))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Control is a named grouping of requirements inside a framework. Controls are
// immutable for the duration of a scan.
type Control struct {
	ID          string `json:"id"`
	FrameworkID string `json:"framework_id"`
	Framework   string `json:"framework_name"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Requirement is one assessable statement under a control.
type Requirement struct {
	ID            string `json:"id"`
	ControlID     string `json:"control_id"`
	Code          string `json:"req_code"`
	Text          string `json:"text"`
	MaturityLevel int    `json:"maturity_level"`
	Guidance      string `json:"guidance,omitempty"`
}

// EvidenceExcerpt is the unit of evidence the classifier reasons over: one
// page of extracted text attributed to a document. The pipeline never mutates
// excerpts.
type EvidenceExcerpt struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	PageNum      int    `json:"page_num"`
	Text         string `json:"text"`
}

// Suggestion is a transient document-to-control classification proposal. The
// linker decides whether a suggestion is materialised as a ControlLink.
type Suggestion struct {
	ControlCode  string  `json:"control_code"`
	ControlTitle string  `json:"control_title"`
	Framework    string  `json:"framework_name"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// ControlLink is a persisted document-to-control association. At most one
// link may exist per (document, control) pair; the storage layer enforces the
// uniqueness.
type ControlLink struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ControlID  string    `json:"control_id"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	CreatedAt  time.Time `json:"created_at"`
}

// Citation references text that appears in the supplied evidence. Quotes are
// bounded to roughly thirty words and must never be fabricated.
type Citation struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	PageNum      int    `json:"page_num"`
	Quote        string `json:"quote"`
}

// RequirementResult is the per-requirement verdict of a scan.
type RequirementResult struct {
	RequirementID string     `json:"requirement_id"`
	Outcome       Outcome    `json:"outcome"`
	Confidence    float64    `json:"confidence"`
	Rationale     string     `json:"rationale"`
	Citations     []Citation `json:"citations"`
}

// RecommendedAction describes one remediation step for a gap.
type RecommendedAction struct {
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
	Priority Priority `json:"priority"`
}

// Gap records what is missing for a requirement whose outcome is not PASS.
type Gap struct {
	RequirementID      string              `json:"requirement_id"`
	Summary            string              `json:"summary"`
	RecommendedActions []RecommendedAction `json:"recommended_actions"`
}

// Report is the ordered result set of one scan invocation over one
// (control, evidence-set) pairing. Reports are immutable once stored.
type Report struct {
	Requirements []RequirementResult `json:"requirements"`
	Gaps         []Gap               `json:"gaps"`
}

// ClampConfidence forces a confidence score into [0.0, 1.0].
func ClampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// TruncateReasoning bounds a reasoning string to the given rune budget.
func TruncateReasoning(text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget])
}
