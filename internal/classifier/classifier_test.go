// File path: internal/classifier/classifier_test.go
package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/llm"
)

type fakeProvider struct {
	name      string
	responses []llm.ChatResponse
	errs      []error
	reachErr  error
	requests  []llm.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	var resp llm.ChatResponse
	if idx < len(f.responses) {
		resp = f.responses[idx]
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return resp, err
}

func (f *fakeProvider) CheckReachability(context.Context) error { return f.reachErr }

func (f *fakeProvider) Name() string { return f.name }

func essentialEight() []compliance.Control {
	return []compliance.Control{
		{ID: "c1", Code: "EE-1", Title: "Application Control", Framework: "Essential Eight", Description: "Prevent execution of unapproved applications."},
		{ID: "c5", Code: "EE-5", Title: "Restrict Administrative Privileges", Framework: "Essential Eight", Description: "Limit privileged access to systems and applications."},
		{ID: "c7", Code: "EE-7", Title: "Multi-Factor Authentication", Framework: "Essential Eight", Description: "Require multi-factor authentication for users."},
		{ID: "c8", Code: "EE-8", Title: "Regular Backups", Framework: "Essential Eight", Description: "Perform and retain backups of important data."},
	}
}

func staticSettings() config.Provider {
	return config.Static{Settings: config.Default()}
}

func TestFallbackBackupBeatsPolicy(t *testing.T) {
	suggestions := FallbackSuggestions("Q3_backup_recovery_policy.pdf", essentialEight())
	if len(suggestions) == 0 {
		t.Fatalf("expected fallback suggestion")
	}
	got := suggestions[0]
	if got.ControlCode != "EE-8" {
		t.Fatalf("control = %s, want EE-8", got.ControlCode)
	}
	if got.Confidence > 0.9 {
		t.Fatalf("fallback confidence %f exceeds 0.9", got.Confidence)
	}
	if got.Reasoning != "Filename suggests backup-related content" {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
}

func TestFallbackMFAConfidenceBoost(t *testing.T) {
	suggestions := FallbackSuggestions("mfa_rollout_plan.docx", essentialEight())
	if len(suggestions) == 0 {
		t.Fatalf("expected fallback suggestion")
	}
	if suggestions[0].ControlCode != "EE-7" {
		t.Fatalf("control = %s, want EE-7", suggestions[0].ControlCode)
	}
	if suggestions[0].Confidence != 0.6 {
		t.Fatalf("confidence = %f, want 0.6", suggestions[0].Confidence)
	}
}

func TestFallbackUnmatchedFilename(t *testing.T) {
	if got := FallbackSuggestions("holiday_photos.zip", essentialEight()); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %d", len(got))
	}
	if got := FallbackSuggestions("", essentialEight()); len(got) != 0 {
		t.Fatalf("expected no suggestions for empty filename")
	}
}

func TestFallbackReturnsAtMostTwo(t *testing.T) {
	candidates := essentialEight()
	// Every control mentions "applications" or similar; use a filename that
	// matches the privilege rule against multiple candidates.
	got := FallbackSuggestions("user_access_review.xlsx", candidates)
	if len(got) > 2 {
		t.Fatalf("fallback returned %d suggestions, want at most 2", len(got))
	}
}

func TestSingleShotReturnsBestValidSuggestion(t *testing.T) {
	provider := &fakeProvider{
		name: "openai",
		responses: []llm.ChatResponse{{Content: `{
			"suggestions": [
				{"control_code": "ZZ-99", "control_title": "Bogus", "framework_name": "None", "confidence": 0.99, "reasoning": "made up"},
				{"control_code": "EE-1", "control_title": "Application Control", "framework_name": "Essential Eight", "confidence": 1.7, "reasoning": "allowlisting discussed"}
			]
		}`}},
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "allowlist.pdf", "AppLocker configuration", essentialEight())
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(got))
	}
	if got[0].ControlCode != "EE-1" {
		t.Fatalf("control = %s, want EE-1", got[0].ControlCode)
	}
	if got[0].Confidence != 1.0 {
		t.Fatalf("confidence not clamped: %f", got[0].Confidence)
	}
}

func TestSingleShotFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{
		name: "openai",
		errs: []error{errors.New("boom")},
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "backup_schedule.pdf", "text", essentialEight())
	if len(got) == 0 {
		t.Fatalf("expected fallback suggestion after provider failure")
	}
	if got[0].ControlCode != "EE-8" {
		t.Fatalf("control = %s, want EE-8", got[0].ControlCode)
	}
}

func TestTwoStepHappyPath(t *testing.T) {
	provider := &fakeProvider{
		name: "ollama",
		responses: []llm.ChatResponse{
			{Content: `{"document_type": "policy", "primary_topic": "data backups", "key_content": ["retention"], "compliance_areas": ["backup"], "distinguishing_features": "quarterly schedule"}`},
			{Content: `{"selected_number": 4, "confidence": 0.92, "reasoning": "Backup retention policy maps to regular backups."}`},
		},
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "retention.pdf", "backup retention details", essentialEight())
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(got))
	}
	if got[0].ControlCode != "EE-8" {
		t.Fatalf("control = %s, want EE-8", got[0].ControlCode)
	}
	if got[0].Confidence != 0.92 {
		t.Fatalf("confidence = %f, want 0.92", got[0].Confidence)
	}
	if len(provider.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(provider.requests))
	}
}

func TestTwoStepUnreachableBackendFallsBack(t *testing.T) {
	provider := &fakeProvider{
		name:     "ollama",
		reachErr: errors.New("dial tcp 127.0.0.1:11434: connection refused"),
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "backup_schedule.pdf", "text", essentialEight())
	if len(got) == 0 || got[0].ControlCode != "EE-8" {
		t.Fatalf("expected filename fallback for unreachable backend, got %+v", got)
	}
	if len(provider.requests) != 0 {
		t.Fatalf("chat requests = %d, want 0 when backend is unreachable", len(provider.requests))
	}
}

func TestTwoStepSelectionOutOfRange(t *testing.T) {
	provider := &fakeProvider{
		name: "ollama",
		responses: []llm.ChatResponse{
			{Content: `{"document_type": "report"}`},
			{Content: `{"selected_number": 9, "confidence": 0.8, "reasoning": "nope"}`},
		},
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "meeting_notes.txt", "notes", essentialEight())
	if len(got) != 0 {
		t.Fatalf("out-of-range selection should yield no ai suggestion and no fallback match, got %d", len(got))
	}
}

func TestTwoStepRecoversFromThinkingChannel(t *testing.T) {
	provider := &fakeProvider{
		name: "ollama",
		responses: []llm.ChatResponse{
			{Content: "", Thinking: `The user wants a summary. {"document_type": "policy", "primary_topic": "backups"}`},
			{Content: `{"selected_number": 4, "confidence": 0.9, "reasoning": "backups"}`},
		},
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "retention.pdf", "backup retention", essentialEight())
	if len(got) != 1 || got[0].ControlCode != "EE-8" {
		t.Fatalf("expected EE-8 suggestion via thinking-channel recovery, got %+v", got)
	}
}

func TestTwoStepReasoningTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	provider := &fakeProvider{
		name: "ollama",
		responses: []llm.ChatResponse{
			{Content: `{"document_type": "policy"}`},
			{Content: `{"selected_number": 1, "confidence": 0.95, "reasoning": "` + long + `"}`},
		},
	}
	c := New(provider, staticSettings())
	got := c.AnalyzeDocument(context.Background(), "notes.txt", "text", essentialEight())
	if len(got) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(got))
	}
	budget := config.Default().ReasoningBudget
	if len([]rune(got[0].Reasoning)) > budget {
		t.Fatalf("reasoning length %d exceeds budget %d", len([]rune(got[0].Reasoning)), budget)
	}
}
