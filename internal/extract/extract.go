// File path: internal/extract/extract.go
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoStructuredData is the definitive soft-failure signal: every recovery
// strategy was attempted and none produced a parseable object. Callers fall
// through to their fallback path; this is never a fatal condition.
var ErrNoStructuredData = errors.New("no structured data in response")

// Result carries a recovered JSON object together with the name of the
// strategy that produced it.
type Result struct {
	Raw           json.RawMessage
	Strategy      string
	FromSecondary bool
}

// A strategy is a pure transformation from raw text to candidate JSON
// substrings. Strategies are evaluated strictly in order; the first candidate
// that parses as a JSON object wins.
type strategy struct {
	name  string
	apply func(text string, hints []string) []string
}

var strategies = []strategy{
	{name: "direct", apply: func(text string, _ []string) []string {
		return []string{strings.TrimSpace(text)}
	}},
	{name: "fenced", apply: fencedCandidates},
	{name: "brace-matched", apply: braceCandidates},
	{name: "pattern-guided", apply: patternCandidates},
	{name: "last-resort", apply: lastResortCandidates},
}

// JSONObject recovers a structured payload from an arbitrary provider
// response. Hints name expected top-level keys and steer the pattern-guided
// stage; they are optional. Responses that are empty or recognisable as
// error/status messages short-circuit to failure without any extraction
// attempt.
func JSONObject(text string, hints ...string) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{}, ErrNoStructuredData
	}
	if looksLikeErrorMessage(trimmed) {
		return Result{}, ErrNoStructuredData
	}
	for _, s := range strategies {
		for _, candidate := range s.apply(trimmed, hints) {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" || candidate[0] != '{' {
				continue
			}
			if !json.Valid([]byte(candidate)) {
				continue
			}
			return Result{Raw: json.RawMessage(candidate), Strategy: s.name}, nil
		}
	}
	return Result{}, ErrNoStructuredData
}

// JSONObjectWithSecondary first tries the designated answer text and, when
// that is empty or unrecoverable, inspects the secondary channel (some local
// models emit their final payload in a separate reasoning field). A result
// recovered from the secondary channel is flagged so callers can log the
// lower-trust path.
func JSONObjectWithSecondary(primary, secondary string, hints ...string) (Result, error) {
	result, err := JSONObject(primary, hints...)
	if err == nil {
		return result, nil
	}
	if strings.TrimSpace(secondary) == "" {
		return Result{}, ErrNoStructuredData
	}
	result, err = JSONObject(secondary, hints...)
	if err != nil {
		return Result{}, ErrNoStructuredData
	}
	result.FromSecondary = true
	return result, nil
}

// looksLikeErrorMessage recognises transport error text (stack traces, HTTP
// status lines, gateway error pages) that must not be fed to the recovery
// strategies: a regex can find brace-shaped fragments inside a traceback.
func looksLikeErrorMessage(text string) bool {
	lower := strings.ToLower(text)
	if strings.HasPrefix(text, "HTTP/") {
		return true
	}
	if strings.Contains(lower, "internal server") {
		return true
	}
	if strings.Contains(lower, "error") && !strings.Contains(text, "{") {
		return true
	}
	return false
}

var fenceOpen = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func fencedCandidates(text string, _ []string) []string {
	if !strings.Contains(text, "```") {
		return nil
	}
	matches := fenceOpen.FindAllStringSubmatch(text, -1)
	candidates := make([]string, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, match[1])
	}
	if len(candidates) == 0 {
		// Unterminated fence: take everything after the opening marker.
		idx := strings.Index(text, "```")
		interior := text[idx+3:]
		interior = strings.TrimPrefix(interior, "json")
		candidates = append(candidates, interior)
	}
	return candidates
}

func braceCandidates(text string, _ []string) []string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}
	if candidate, ok := matchBraces(text, start); ok {
		return []string{candidate}
	}
	return nil
}

func patternCandidates(text string, hints []string) []string {
	var candidates []string
	for _, hint := range hints {
		hint = strings.TrimSpace(hint)
		if hint == "" {
			continue
		}
		pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(hint) + `"\s*:`)
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			start := strings.LastIndexByte(text[:loc[0]], '{')
			if start < 0 {
				continue
			}
			if candidate, ok := matchBraces(text, start); ok {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}

func lastResortCandidates(text string, _ []string) []string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}
	return []string{text[start : end+1]}
}

// matchBraces extracts the substring from the opening brace at start through
// its matching closing brace, tracking string literals and escapes so braces
// inside quoted values do not confuse the depth count.
func matchBraces(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
