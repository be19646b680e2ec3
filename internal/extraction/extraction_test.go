// File path: internal/extraction/extraction_test.go
package extraction

import (
	"strings"
	"testing"
)

func TestPagesPlainText(t *testing.T) {
	pages := Pages([]byte("Backup policy.\n\nBackups run nightly."), "text/plain", "policy.txt")
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	if !strings.Contains(pages[0], "Backups run nightly.") {
		t.Fatalf("content lost: %q", pages[0])
	}
}

func TestPagesSplitsLongText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(strings.Repeat("a", 300))
		b.WriteString("\n\n")
	}
	pages := Pages([]byte(b.String()), "text/plain", "long.txt")
	if len(pages) < 2 {
		t.Fatalf("expected multiple pages, got %d", len(pages))
	}
	for i, page := range pages {
		if len([]rune(page)) > pageCharBudget {
			t.Fatalf("page %d exceeds budget: %d runes", i+1, len([]rune(page)))
		}
	}
}

func TestPagesOversizedParagraphHardSplit(t *testing.T) {
	pages := Pages([]byte(strings.Repeat("b", pageCharBudget*2+100)), "text/plain", "wall.txt")
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
}

func TestPagesEmptyTextFile(t *testing.T) {
	pages := Pages([]byte("   \n  "), "text/plain", "empty.txt")
	if len(pages) != 1 || !strings.Contains(pages[0], "empty.txt") {
		t.Fatalf("expected descriptor page, got %+v", pages)
	}
}

func TestPagesImageDescriptor(t *testing.T) {
	pages := Pages([]byte{0x89, 0x50, 0x4E, 0x47}, "image/png", "mfa_screenshot.png")
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	if !strings.Contains(pages[0], "mfa_screenshot.png") {
		t.Fatalf("descriptor missing filename: %q", pages[0])
	}
}

func TestPagesUnknownFormatDescriptor(t *testing.T) {
	pages := Pages([]byte{0x00, 0x01}, "application/octet-stream", "data.bin")
	if len(pages) != 1 || !strings.Contains(pages[0], "data.bin") {
		t.Fatalf("expected descriptor page, got %+v", pages)
	}
}

func TestPagesInvalidUTF8Degrades(t *testing.T) {
	pages := Pages([]byte{'o', 'k', 0xFF, 0xFE, 'x'}, "text/plain", "odd.txt")
	if len(pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(pages))
	}
	if !strings.Contains(pages[0], "ok") {
		t.Fatalf("valid prefix lost: %q", pages[0])
	}
}
