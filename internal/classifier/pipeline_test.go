// File path: internal/classifier/pipeline_test.go
package classifier

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/linker"
	"github.com/geekygoose/gander/internal/llm"
)

type fakeLinkStore struct {
	links map[string]compliance.ControlLink
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: make(map[string]compliance.ControlLink)}
}

func (s *fakeLinkStore) CreateLink(_ context.Context, link compliance.ControlLink) (compliance.ControlLink, bool, error) {
	key := link.DocumentID + "/" + link.ControlID
	if existing, ok := s.links[key]; ok {
		return existing, false, nil
	}
	link.ID = uuid.NewString()
	s.links[key] = link
	return link, true, nil
}

func singleShot(code, confidence string) llm.ChatResponse {
	return llm.ChatResponse{Content: `{"suggestions": [{"control_code": "` + code +
		`", "control_title": "t", "framework_name": "Essential Eight", "confidence": ` + confidence +
		`, "reasoning": "r"}]}`}
}

func pipelineConfig(dual bool) config.Provider {
	settings := config.Default()
	settings.DualValidation = dual
	return config.Static{Settings: settings}
}

func TestPipelineLinksAboveThreshold(t *testing.T) {
	store := newFakeLinkStore()
	cfg := pipelineConfig(false)
	primary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-8", "0.95")}}
	p := NewPipeline(primary, nil, linker.New(store, cfg), cfg)

	suggestions, link, err := p.ClassifyAndLink(context.Background(), "doc-1", "backups.pdf", "text", essentialEight())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].ControlCode != "EE-8" {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
	if link == nil || link.ControlID != "c8" {
		t.Fatalf("expected link to c8, got %+v", link)
	}
}

func TestPipelineBelowThresholdReturnsSuggestionsWithoutLink(t *testing.T) {
	store := newFakeLinkStore()
	cfg := pipelineConfig(false)
	primary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-8", "0.70")}}
	p := NewPipeline(primary, nil, linker.New(store, cfg), cfg)

	suggestions, link, err := p.ClassifyAndLink(context.Background(), "doc-1", "notes.pdf", "text", essentialEight())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(suggestions))
	}
	if link != nil {
		t.Fatalf("expected no link below threshold, got %+v", link)
	}
	if len(store.links) != 0 {
		t.Fatalf("store should be empty")
	}
}

func TestPipelineDualValidationAgreementUsesMinimumConfidence(t *testing.T) {
	store := newFakeLinkStore()
	cfg := pipelineConfig(true)
	primary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-8", "0.95")}}
	secondary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-8", "0.92")}}
	p := NewPipeline(primary, secondary, linker.New(store, cfg), cfg)

	_, link, err := p.ClassifyAndLink(context.Background(), "doc-1", "backups.pdf", "text", essentialEight())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link == nil {
		t.Fatalf("expected consensus link")
	}
	if link.Confidence != 0.92 {
		t.Fatalf("confidence = %f, want minimum 0.92", link.Confidence)
	}
}

func TestPipelineDualValidationDisagreementCreatesNoLink(t *testing.T) {
	store := newFakeLinkStore()
	cfg := pipelineConfig(true)
	primary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-1", "0.95")}}
	secondary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-8", "0.96")}}
	p := NewPipeline(primary, secondary, linker.New(store, cfg), cfg)

	suggestions, link, err := p.ClassifyAndLink(context.Background(), "doc-1", "backups.pdf", "text", essentialEight())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != nil {
		t.Fatalf("disagreement must not link, got %+v", link)
	}
	if len(store.links) != 0 {
		t.Fatalf("store should be empty")
	}
	if len(suggestions) == 0 {
		t.Fatalf("primary suggestions should still be surfaced")
	}
}

func TestPipelineDualValidationMissingSecondaryDegrades(t *testing.T) {
	store := newFakeLinkStore()
	cfg := pipelineConfig(true)
	primary := &fakeProvider{name: "openai", responses: []llm.ChatResponse{singleShot("EE-8", "0.95")}}
	p := NewPipeline(primary, nil, linker.New(store, cfg), cfg)

	_, link, err := p.ClassifyAndLink(context.Background(), "doc-1", "backups.pdf", "text", essentialEight())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link == nil {
		t.Fatalf("single validation should still link")
	}
}
