// File path: internal/classifier/pipeline.go
package classifier

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/linker"
	"github.com/geekygoose/gander/internal/llm"
)

// Pipeline runs the full classify-then-link flow for one document. When dual
// validation is enabled and a second backend is available, both backends
// classify independently and a link is only persisted on agreement.
type Pipeline struct {
	primary   *Classifier
	secondary *Classifier
	links     *linker.Linker
	cfg       config.Provider
}

// NewPipeline wires the classification pipeline. secondary may be nil, in
// which case dual validation degrades to single validation with a log entry.
func NewPipeline(primary, secondary llm.Provider, links *linker.Linker, cfg config.Provider) *Pipeline {
	p := &Pipeline{
		primary: New(primary, cfg),
		links:   links,
		cfg:     cfg,
	}
	if secondary != nil {
		p.secondary = New(secondary, cfg)
	}
	return p
}

// ClassifyAndLink classifies the document and persists a link when the
// confidence gate (and, if enabled, backend consensus) allows it. The
// returned suggestions are always populated from the primary path so callers
// can surface them even when no link was created.
func (p *Pipeline) ClassifyAndLink(ctx context.Context, documentID, filename, text string, candidates []compliance.Control) ([]compliance.Suggestion, *compliance.ControlLink, error) {
	settings := p.cfg.Current()
	logger := common.Logger()

	if !settings.DualValidation || p.secondary == nil {
		if settings.DualValidation {
			logger.Warn("classifier: dual validation enabled but no secondary backend, using single validation",
				"document", documentID)
		}
		suggestions := p.primary.AnalyzeDocument(ctx, filename, text, candidates)
		link, err := p.links.Apply(ctx, documentID, suggestions, candidates)
		return suggestions, link, err
	}

	var primarySuggestions, secondarySuggestions []compliance.Suggestion
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		primarySuggestions = p.primary.AnalyzeDocument(groupCtx, filename, text, candidates)
		return nil
	})
	group.Go(func() error {
		secondarySuggestions = p.secondary.AnalyzeDocument(groupCtx, filename, text, candidates)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	agreed := linker.Consensus(linker.Collapse(primarySuggestions), linker.Collapse(secondarySuggestions))
	if agreed == nil {
		return primarySuggestions, nil, nil
	}
	link, err := p.links.Apply(ctx, documentID, []compliance.Suggestion{*agreed}, candidates)
	return primarySuggestions, link, err
}
