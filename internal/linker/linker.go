// File path: internal/linker/linker.go
package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
)

// Store persists document-to-control links. CreateLink reports created=false
// when a link for the (document, control) pair already exists, which is how
// re-classification stays idempotent.
type Store interface {
	CreateLink(ctx context.Context, link compliance.ControlLink) (compliance.ControlLink, bool, error)
}

// Linker decides whether a classification suggestion becomes a persisted
// link. A suggestion below the configured confidence threshold is dropped
// and logged, never treated as an error.
type Linker struct {
	store Store
	cfg   config.Provider
}

func New(store Store, cfg config.Provider) *Linker {
	return &Linker{store: store, cfg: cfg}
}

// Collapse reduces a suggestion list to the single highest-confidence entry.
// A document is linked to at most one control, so multi-match outputs from
// single-shot analysis are collapsed before linking.
func Collapse(suggestions []compliance.Suggestion) *compliance.Suggestion {
	var best *compliance.Suggestion
	for i := range suggestions {
		if best == nil || suggestions[i].Confidence > best.Confidence {
			best = &suggestions[i]
		}
	}
	return best
}

// Consensus merges independent selections from two backends. Both must pick
// the identical control code; the stored confidence is the lower of the two.
// Disagreement yields no suggestion and an audit log entry.
func Consensus(primary, secondary *compliance.Suggestion) *compliance.Suggestion {
	if primary == nil || secondary == nil {
		return nil
	}
	if !strings.EqualFold(primary.ControlCode, secondary.ControlCode) {
		common.Logger().Warn("linker: dual validation disagreement, no link created",
			"primary_control", primary.ControlCode, "primary_confidence", primary.Confidence,
			"secondary_control", secondary.ControlCode, "secondary_confidence", secondary.Confidence)
		return nil
	}
	agreed := *primary
	if secondary.Confidence < agreed.Confidence {
		agreed.Confidence = secondary.Confidence
		agreed.Reasoning = secondary.Reasoning
	}
	return &agreed
}

// Apply collapses the suggestions and persists a link when the winner clears
// the confidence threshold. The returned link is nil when nothing was
// persisted; that is an expected outcome, not an error.
func (l *Linker) Apply(ctx context.Context, documentID string, suggestions []compliance.Suggestion, controls []compliance.Control) (*compliance.ControlLink, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("linker not configured")
	}
	best := Collapse(suggestions)
	if best == nil {
		return nil, nil
	}
	logger := common.Logger()
	threshold := l.cfg.Current().MinConfidence
	if best.Confidence < threshold {
		logger.Info("linker: suggestion below confidence threshold",
			"document", documentID, "control", best.ControlCode,
			"confidence", best.Confidence, "threshold", threshold)
		return nil, nil
	}
	control, ok := controlByCode(controls, best.ControlCode)
	if !ok {
		logger.Warn("linker: suggestion references unknown control", "document", documentID, "control", best.ControlCode)
		return nil, nil
	}
	link, created, err := l.store.CreateLink(ctx, compliance.ControlLink{
		DocumentID: documentID,
		ControlID:  control.ID,
		Confidence: best.Confidence,
		Reasoning:  best.Reasoning,
	})
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	if !created {
		logger.Info("linker: link already exists", "document", documentID, "control", best.ControlCode)
		return &link, nil
	}
	logger.Info("linker: link created",
		"document", documentID, "control", best.ControlCode, "confidence", best.Confidence)
	return &link, nil
}

func controlByCode(controls []compliance.Control, code string) (compliance.Control, bool) {
	for _, control := range controls {
		if strings.EqualFold(control.Code, code) {
			return control, true
		}
	}
	return compliance.Control{}, false
}
