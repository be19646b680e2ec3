// File path: internal/api/scans_handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/sqlite"
)

func (s *Server) handleScanCreate(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	controlID := chi.URLParam(r, "controlID")
	if _, err := s.catalog.ControlByID(ctx, controlID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("control not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	evidence, err := s.catalog.EvidenceForControl(ctx, controlID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(evidence) == 0 {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("no evidence linked to this control, upload and link evidence documents first"))
		return
	}
	requirements, err := s.catalog.RequirementsForControl(ctx, controlID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	orchestrator := s.currentOrchestrator()
	if orchestrator == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("ai provider not configured, save settings first"))
		return
	}
	settings := s.cfg.Current()
	scanRow, err := s.catalog.CreateScan(ctx, controlID, scanModel(settings), len(requirements))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	err = s.dispatcher.Submit("scan "+scanRow.ID, func(ctx context.Context) error {
		return orchestrator.Execute(ctx, scanRow.ID)
	})
	if err != nil {
		failStep := "Error: scan queue unavailable"
		if setErr := s.catalog.SetScanStatus(ctx, scanRow.ID, sqlite.ScanStatusFailed, failStep); setErr != nil {
			logger.Error("api: scan status update failed", "scan", scanRow.ID, "error", setErr)
		}
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("queue scan: %w", err))
		return
	}
	s.audit(ctx, "scan.create", "scan", scanRow.ID, controlID)
	logger.Info("api: scan queued",
		"scan", scanRow.ID, "control", controlID, "requirements", len(requirements), "evidence_pages", len(evidence))
	writeJSON(w, http.StatusOK, map[string]string{
		"scan_id": scanRow.ID,
		"status":  scanRow.Status,
		"message": "scan started, poll the scan id for progress",
	})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scanID := chi.URLParam(r, "scanID")
	scanRow, err := s.catalog.ScanByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("scan not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	control, err := s.catalog.ControlByID(ctx, scanRow.ControlID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	requirements, err := s.catalog.RequirementsForControl(ctx, scanRow.ControlID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	byID := make(map[string]compliance.Requirement, len(requirements))
	for _, requirement := range requirements {
		byID[requirement.ID] = requirement
	}
	resp := scanStatusResponse{
		scanSummaryResponse: scanToSummary(scanRow),
		Control:             controlToResponse(control),
		Results:             []scanResultResponse{},
		Gaps:                []scanGapResponse{},
	}
	if scanRow.Status == sqlite.ScanStatusCompleted {
		report, err := s.catalog.ReportForScan(ctx, scanID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, result := range report.Requirements {
			resp.Results = append(resp.Results, scanResultResponse{
				Requirement: byID[result.RequirementID],
				Outcome:     result.Outcome,
				Confidence:  result.Confidence,
				Rationale:   result.Rationale,
				Citations:   result.Citations,
			})
		}
		for _, gap := range report.Gaps {
			resp.Gaps = append(resp.Gaps, scanGapResponse{
				Requirement:        byID[gap.RequirementID],
				Summary:            gap.Summary,
				RecommendedActions: gap.RecommendedActions,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScanList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	controlID := chi.URLParam(r, "controlID")
	if _, err := s.catalog.ControlByID(ctx, controlID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("control not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rows, err := s.catalog.ListScans(ctx, controlID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]scanSummaryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanToSummary(row))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scans": out})
}

func scanModel(settings config.Settings) string {
	if settings.AIProvider == config.ProviderOllama {
		return settings.Ollama.Model
	}
	return settings.OpenAI.Model
}
