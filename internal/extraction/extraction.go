// File path: internal/extraction/extraction.go
package extraction

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/geekygoose/gander/internal/common"
)

// pageCharBudget bounds how much text lands on one synthetic page when the
// source format has no page boundaries of its own.
const pageCharBudget = 4000

// Pages extracts per-page text from uploaded bytes. Text-like formats are
// decoded and split into synthetic pages; binary formats the service cannot
// parse degrade to a single descriptor page naming the file, so the
// classification pipeline always has something to reason over.
func Pages(content []byte, mimeType, filename string) []string {
	switch {
	case isTextual(mimeType, filename):
		pages := splitTextPages(decodeText(content, filename))
		if len(pages) > 0 {
			return pages
		}
		return []string{fmt.Sprintf("Text file: %s (no readable content)", filename)}
	case strings.HasPrefix(mimeType, "image/"):
		return []string{fmt.Sprintf("Screenshot/Image: %s", filename)}
	case mimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(filename), ".pdf"):
		return []string{fmt.Sprintf("PDF document: %s (text extraction unavailable)", filename)}
	default:
		common.Logger().Info("extraction: unsupported format, using descriptor page",
			"filename", filename, "mime_type", mimeType)
		return []string{fmt.Sprintf("Document: %s (type: %s)", filename, mimeType)}
	}
}

func isTextual(mimeType, filename string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	lower := strings.ToLower(filename)
	for _, ext := range []string{".txt", ".md", ".csv", ".html", ".htm", ".json", ".yaml", ".yml", ".log"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func decodeText(content []byte, filename string) string {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(content) {
		common.Logger().Warn("extraction: non-utf8 text content, replacing invalid bytes", "filename", filename)
		content = bytes.ToValidUTF8(content, []byte("�"))
	}
	return string(content)
}

// splitTextPages chunks text at paragraph boundaries, keeping each page
// under the character budget. Oversized paragraphs are hard-split.
func splitTextPages(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var pages []string
	var current strings.Builder
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for len([]rune(paragraph)) > pageCharBudget {
			runes := []rune(paragraph)
			flush(&pages, &current)
			pages = append(pages, string(runes[:pageCharBudget]))
			paragraph = string(runes[pageCharBudget:])
		}
		if current.Len() > 0 && current.Len()+len(paragraph)+2 > pageCharBudget {
			flush(&pages, &current)
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush(&pages, &current)
	return pages
}

func flush(pages *[]string, current *strings.Builder) {
	if current.Len() == 0 {
		return
	}
	*pages = append(*pages, current.String())
	current.Reset()
}
