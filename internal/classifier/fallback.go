// File path: internal/classifier/fallback.go
package classifier

import (
	"strings"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
)

// fallbackRule maps filename keywords onto a control category. Rules are
// evaluated in order and the first rule whose keywords appear in the filename
// wins, so more specific categories must precede generic ones (a backup
// policy should classify as backup, not as policy).
type fallbackRule struct {
	keywords   []string
	category   string
	confidence float64
}

var fallbackRules = []fallbackRule{
	{keywords: []string{"backup", "recovery", "restore"}, category: "backup", confidence: 0.5},
	{keywords: []string{"mfa", "multi-factor", "2fa", "authentication", "auth"}, category: "authentication", confidence: 0.5},
	{keywords: []string{"patch", "update", "upgrade"}, category: "patch", confidence: 0.5},
	{keywords: []string{"macro"}, category: "macro", confidence: 0.5},
	{keywords: []string{"access", "identity", "user", "login", "privilege", "admin"}, category: "privilege", confidence: 0.5},
	{keywords: []string{"harden", "config", "configuration", "setting"}, category: "harden", confidence: 0.5},
	{keywords: []string{"policy", "procedure", "governance"}, category: "policy", confidence: 0.5},
	{keywords: []string{"security", "incident", "response"}, category: "security", confidence: 0.5},
	{keywords: []string{"log", "audit", "monitoring", "compliance"}, category: "audit", confidence: 0.5},
}

// FallbackSuggestions infers likely controls from the filename alone. It is
// the last resort when every AI path returned nothing usable; confidences are
// deliberately moderate and the result is at most two suggestions. It never
// fails: unmatched filenames yield an empty list.
func FallbackSuggestions(filename string, candidates []compliance.Control) []compliance.Suggestion {
	filenameLower := strings.ToLower(strings.TrimSpace(filename))
	if filenameLower == "" || len(candidates) == 0 {
		return nil
	}
	for _, rule := range fallbackRules {
		if !containsAny(filenameLower, rule.keywords) {
			continue
		}
		suggestions := matchControls(filenameLower, rule, candidates)
		if len(suggestions) > 0 {
			common.Logger().Info("classifier: filename fallback matched",
				"filename", filename, "category", rule.category, "suggestions", len(suggestions))
			return suggestions
		}
	}
	return nil
}

func matchControls(filenameLower string, rule fallbackRule, candidates []compliance.Control) []compliance.Suggestion {
	var suggestions []compliance.Suggestion
	for _, control := range candidates {
		controlText := strings.ToLower(control.Title + " " + control.Description)
		if !strings.Contains(controlText, rule.category) && !containsAny(controlText, rule.keywords[:min(2, len(rule.keywords))]) {
			continue
		}
		confidence := rule.confidence
		if rule.category == "authentication" && strings.Contains(filenameLower, "mfa") {
			confidence = 0.6
		}
		suggestions = append(suggestions, compliance.Suggestion{
			ControlCode:  control.Code,
			ControlTitle: control.Title,
			Framework:    control.Framework,
			Confidence:   compliance.ClampConfidence(confidence),
			Reasoning:    "Filename suggests " + rule.category + "-related content",
		})
		if len(suggestions) >= 2 {
			break
		}
	}
	return suggestions
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
