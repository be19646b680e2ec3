// File path: internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/extraction"
	"github.com/geekygoose/gander/internal/sqlite"
)

// Catalog is the store surface the retry sweep needs.
type Catalog interface {
	UnlinkedDocumentsBefore(ctx context.Context, cutoff time.Time) ([]sqlite.Document, error)
	ListControls(ctx context.Context) ([]compliance.Control, error)
	ReplacePages(ctx context.Context, documentID string, texts []string) error
	DocumentText(ctx context.Context, documentID string) (string, error)
}

// Blobs re-downloads stored document content for re-processing.
type Blobs interface {
	Get(key string) ([]byte, error)
}

// Pipeline classifies a document and links it when confidence allows. The
// API server satisfies this with whatever provider the current settings
// select, so the sweep picks up settings changes without a restart.
type Pipeline interface {
	ClassifyAndLink(ctx context.Context, documentID, filename, text string, candidates []compliance.Control) ([]compliance.Suggestion, *compliance.ControlLink, error)
}

// Scheduler periodically re-runs classification for documents that never
// gained a control link. The sweep tolerates per-document failures; a failed
// sweep pass backs off for a cooldown before resuming the regular cadence.
type Scheduler struct {
	catalog  Catalog
	blobs    Blobs
	pipeline Pipeline
	cfg      config.Provider
}

func New(catalog Catalog, blobs Blobs, pipeline Pipeline, cfg config.Provider) *Scheduler {
	return &Scheduler{catalog: catalog, blobs: blobs, pipeline: pipeline, cfg: cfg}
}

// Run blocks until ctx is cancelled. Each tick sweeps once; a sweep error
// delays the next attempt by the configured cooldown instead of stopping the
// loop.
func (s *Scheduler) Run(ctx context.Context) {
	logger := common.Logger()
	settings := s.cfg.Current()
	logger.Info("scheduler: retry sweep started",
		"interval", settings.SweepInterval, "grace_period", settings.GracePeriod)
	timer := time.NewTimer(settings.SweepInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler: retry sweep stopped")
			return
		case <-timer.C:
		}
		settings = s.cfg.Current()
		wait := settings.SweepInterval
		if err := s.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("scheduler: retry sweep stopped")
				return
			}
			logger.Error("scheduler: sweep failed, cooling down",
				"error", err, "cooldown", settings.SweepCooldown)
			wait = settings.SweepCooldown
		}
		timer.Reset(wait)
	}
}

// Sweep re-classifies every document past the grace period that has no link.
// Per-document failures are logged and skipped so one bad blob cannot stall
// the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) error {
	logger := common.Logger()
	settings := s.cfg.Current()
	cutoff := time.Now().UTC().Add(-settings.GracePeriod)
	docs, err := s.catalog.UnlinkedDocumentsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		logger.Debug("scheduler: no unlinked documents past grace period")
		return nil
	}
	controls, err := s.catalog.ListControls(ctx)
	if err != nil {
		return err
	}
	logger.Info("scheduler: retrying classification", "documents", len(docs))
	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.retryDocument(ctx, doc, controls); err != nil {
			logger.Warn("scheduler: document retry failed",
				"document", doc.ID, "filename", doc.Filename, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) retryDocument(ctx context.Context, doc sqlite.Document, controls []compliance.Control) error {
	content, err := s.blobs.Get(doc.StorageKey)
	if err != nil {
		return err
	}
	pages := extraction.Pages(content, doc.MimeType, doc.Filename)
	if err := s.catalog.ReplacePages(ctx, doc.ID, pages); err != nil {
		return err
	}
	text, err := s.catalog.DocumentText(ctx, doc.ID)
	if err != nil {
		return err
	}
	suggestions, link, err := s.pipeline.ClassifyAndLink(ctx, doc.ID, doc.Filename, text, controls)
	if err != nil {
		return err
	}
	logger := common.Logger()
	if link != nil {
		logger.Info("scheduler: retry linked document",
			"document", doc.ID, "control", link.ControlID, "confidence", link.Confidence)
	} else {
		logger.Info("scheduler: retry produced no link",
			"document", doc.ID, "suggestions", len(suggestions))
	}
	return nil
}
