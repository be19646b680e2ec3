// File path: internal/prompt/prompt_test.go
package prompt

import (
	"strings"
	"testing"

	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
)

func sampleControl() compliance.Control {
	return compliance.Control{
		ID:          "ctl-1",
		Code:        "EE-1",
		Title:       "Application Control",
		Framework:   "Essential Eight",
		Description: "Prevent execution of unapproved programs.\nSecond line is omitted from candidate listings.",
	}
}

func sampleRequirements() []compliance.Requirement {
	return []compliance.Requirement{
		{ID: "req-10", Code: "EE-1.1", Text: "Application control is implemented on workstations.", MaturityLevel: 1},
		{ID: "req-11", Code: "EE-1.2", Text: "Application control is implemented on servers.", MaturityLevel: 2},
	}
}

func TestBuildScanDeterministic(t *testing.T) {
	control := sampleControl()
	reqs := sampleRequirements()
	evidence := []compliance.EvidenceExcerpt{
		{DocumentID: "doc-7", DocumentName: "allowlist_config.png", PageNum: 1, Text: "AppLocker rules applied to all workstations."},
	}
	first := BuildScan(control, reqs, evidence, 15000)
	second := BuildScan(control, reqs, evidence, 15000)
	if first != second {
		t.Fatalf("scan prompt not deterministic")
	}
	for _, want := range []string{"EE-1.1", "EE-1.2", "allowlist_config.png", control.Title} {
		if !strings.Contains(first, want) {
			t.Fatalf("scan prompt missing %q", want)
		}
	}
}

func TestBuildScanTruncatesEvidenceToBudget(t *testing.T) {
	budget := 2000
	long := strings.Repeat("a", 2500)
	evidence := []compliance.EvidenceExcerpt{
		{DocumentID: "doc-3", DocumentName: "policy.pdf", PageNum: 4, Text: long},
	}
	rendered := BuildScan(sampleControl(), sampleRequirements(), evidence, budget)

	var contentLine string
	for _, line := range strings.Split(rendered, "\n") {
		if strings.HasPrefix(line, "Content: ") {
			contentLine = strings.TrimPrefix(line, "Content: ")
			break
		}
	}
	if contentLine == "" {
		t.Fatalf("no evidence content line rendered")
	}
	want := budget + len(config.TruncationMarker)
	if len(contentLine) != want {
		t.Fatalf("evidence content length = %d, want %d", len(contentLine), want)
	}
	if !strings.HasSuffix(contentLine, config.TruncationMarker) {
		t.Fatalf("truncated evidence missing marker")
	}
}

func TestBuildScanKeepsShortEvidenceIntact(t *testing.T) {
	evidence := []compliance.EvidenceExcerpt{
		{DocumentID: "doc-3", DocumentName: "policy.pdf", PageNum: 1, Text: "short excerpt"},
	}
	rendered := BuildScan(sampleControl(), sampleRequirements(), evidence, 2000)
	if strings.Contains(rendered, config.TruncationMarker) {
		t.Fatalf("short evidence should not carry truncation marker")
	}
	if !strings.Contains(rendered, "Content: short excerpt") {
		t.Fatalf("short evidence not rendered verbatim")
	}
}

func TestBuildClassifyCapsCandidates(t *testing.T) {
	candidates := make([]compliance.Control, 60)
	for i := range candidates {
		candidates[i] = compliance.Control{
			Code:      "C-" + strings.Repeat("0", 2) + string(rune('A'+i%26)),
			Title:     "Control",
			Framework: "Essential Eight",
		}
	}
	candidates[49].Code = "LAST-INCLUDED"
	candidates[50].Code = "FIRST-EXCLUDED"

	rendered := BuildClassify("policy.pdf", "text", candidates, 2000, 50)
	if !strings.Contains(rendered, "LAST-INCLUDED") {
		t.Fatalf("candidate within limit dropped")
	}
	if strings.Contains(rendered, "FIRST-EXCLUDED") {
		t.Fatalf("candidate beyond limit rendered")
	}
}

func TestBuildClassifyTruncatesDocumentText(t *testing.T) {
	long := strings.Repeat("b", 5000)
	rendered := BuildClassify("policy.pdf", long, []compliance.Control{sampleControl()}, 2000, 50)
	if !strings.Contains(rendered, config.TruncationMarker) {
		t.Fatalf("document text not truncated")
	}
	if strings.Contains(rendered, strings.Repeat("b", 2001)) {
		t.Fatalf("document text exceeds budget")
	}
}

func TestBuildMapNumbersCandidates(t *testing.T) {
	candidates := []compliance.Control{
		{Code: "EE-1", Title: "Application Control", Framework: "Essential Eight"},
		{Code: "EE-8", Title: "Regular Backups", Framework: "Essential Eight"},
	}
	rendered := BuildMap(`{"document_type":"policy"}`, candidates, 20)
	if !strings.Contains(rendered, "1. EE-1:") || !strings.Contains(rendered, "2. EE-8:") {
		t.Fatalf("candidates not numbered: %s", rendered)
	}
	if !strings.Contains(rendered, "1-2") {
		t.Fatalf("selected_number range not rendered")
	}
}

func TestBuildMapCapsCandidates(t *testing.T) {
	candidates := make([]compliance.Control, 25)
	for i := range candidates {
		candidates[i] = compliance.Control{Code: "C", Title: "Control", Framework: "F"}
	}
	rendered := BuildMap("{}", candidates, 20)
	if strings.Contains(rendered, "21. ") {
		t.Fatalf("candidate beyond map limit rendered")
	}
	if !strings.Contains(rendered, "20. ") {
		t.Fatalf("candidate within map limit dropped")
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 10)
	got := Truncate(text, 4)
	if !strings.HasSuffix(got, config.TruncationMarker) {
		t.Fatalf("marker missing")
	}
	body := strings.TrimSuffix(got, config.TruncationMarker)
	if len([]rune(body)) != 4 {
		t.Fatalf("rune count = %d, want 4", len([]rune(body)))
	}
}
