// File path: internal/prompt/truncate.go
package prompt

import (
	"strings"

	"github.com/geekygoose/gander/internal/config"
)

// Truncate hard-cuts text at the rune budget and appends the truncation
// marker. Text within budget is returned unchanged; truncation is never
// silent.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget]) + config.TruncationMarker
}

// firstLine collapses text onto a single line so embedded newlines cannot
// break the enumerated list formats.
func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	return text
}
