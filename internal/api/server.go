// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/geekygoose/gander/internal/classifier"
	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/linker"
	"github.com/geekygoose/gander/internal/llm"
	"github.com/geekygoose/gander/internal/scan"
	"github.com/geekygoose/gander/internal/sqlite"
	"github.com/geekygoose/gander/internal/storage"
	"github.com/geekygoose/gander/internal/tasks"
)

// ValidatorFactory builds the primary and optional secondary AI providers
// for a settings snapshot. Tests inject fakes through this hook.
type ValidatorFactory func(config.Settings) (llm.Provider, llm.Provider, error)

type Server struct {
	router     chi.Router
	catalog    *sqlite.Store
	blobs      *storage.Store
	cfg        *config.Runtime
	dispatcher *tasks.Dispatcher
	validators ValidatorFactory

	mu           sync.RWMutex
	pipeline     *classifier.Pipeline
	orchestrator *scan.Orchestrator
}

func NewServer(catalog *sqlite.Store, blobs *storage.Store, cfg *config.Runtime, dispatcher *tasks.Dispatcher, validators ValidatorFactory) (*Server, error) {
	logger := common.Logger()
	if catalog == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("runtime config required")
	}
	if validators == nil {
		validators = llm.ResolveValidators
	}
	srv := &Server{
		router:     chi.NewRouter(),
		catalog:    catalog,
		blobs:      blobs,
		cfg:        cfg,
		dispatcher: dispatcher,
		validators: validators,
	}
	settings := cfg.Current()
	if err := srv.rebuild(settings); err != nil {
		if !errors.Is(err, llm.ErrMissingCredential) {
			return nil, fmt.Errorf("build AI pipeline: %w", err)
		}
		logger.Warn("api: no AI credential configured, classification and scanning disabled until settings are saved")
	}
	srv.routes()
	logger.Info("api: server ready", "provider", settings.AIProvider, "dual_validation", settings.DualValidation)
	return srv, nil
}

// rebuild swaps the classification pipeline and scan orchestrator for the
// given settings. Called at startup and whenever settings are saved.
func (s *Server) rebuild(settings config.Settings) error {
	primary, secondary, err := s.validators(settings)
	if err != nil {
		return err
	}
	links := linker.New(s.catalog, s.cfg)
	pipeline := classifier.NewPipeline(primary, secondary, links, s.cfg)
	scanner := scan.NewScanner(primary, s.cfg)
	orchestrator := scan.NewOrchestrator(s.catalog, scanner, s.cfg)
	s.mu.Lock()
	s.pipeline = pipeline
	s.orchestrator = orchestrator
	s.mu.Unlock()
	return nil
}

// ClassifyAndLink routes through whatever pipeline the current settings
// built. The retry scheduler depends on this so settings changes apply to
// sweeps without a restart.
func (s *Server) ClassifyAndLink(ctx context.Context, documentID, filename, text string, candidates []compliance.Control) ([]compliance.Suggestion, *compliance.ControlLink, error) {
	s.mu.RLock()
	pipeline := s.pipeline
	s.mu.RUnlock()
	if pipeline == nil {
		return nil, nil, fmt.Errorf("ai provider not configured")
	}
	return pipeline.ClassifyAndLink(ctx, documentID, filename, text, candidates)
}

// audit records a trail entry; failures are logged and never surface to the
// caller since the originating action already succeeded.
func (s *Server) audit(ctx context.Context, action, entityType, entityID, detail string) {
	if err := s.catalog.RecordAudit(ctx, action, entityType, entityID, detail); err != nil {
		common.Logger().Warn("api: audit record failed", "action", action, "entity", entityID, "error", err)
	}
}

func (s *Server) currentOrchestrator() *scan.Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orchestrator
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/documents/upload", s.handleDocumentUpload)
	s.router.Get("/v1/documents", s.handleDocumentList)
	s.router.Get("/v1/documents/{documentID}", s.handleDocumentGet)
	s.router.Delete("/v1/documents/{documentID}", s.handleDocumentDelete)
	s.router.Post("/v1/documents/{documentID}/evidence", s.handleLinkEvidence)

	s.router.Get("/v1/frameworks", s.handleFrameworks)
	s.router.Get("/v1/controls", s.handleControls)
	s.router.Get("/v1/controls/{controlID}", s.handleControlDetail)
	s.router.Get("/v1/controls/{controlID}/evidence", s.handleControlEvidence)
	s.router.Post("/v1/controls/{controlID}/scans", s.handleScanCreate)
	s.router.Get("/v1/controls/{controlID}/scans", s.handleScanList)
	s.router.Get("/v1/scans/{scanID}", s.handleScanStatus)

	s.router.Get("/v1/settings/ai", s.handleSettingsGet)
	s.router.Post("/v1/settings/ai", s.handleSettingsSave)
	s.router.Post("/v1/settings/ai/test", s.handleSettingsTest)

	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := common.LogEntries()
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
