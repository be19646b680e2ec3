// File path: internal/api/catalog_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/sqlite"
)

func (s *Server) handleFrameworks(w http.ResponseWriter, r *http.Request) {
	frameworks, err := s.catalog.ListFrameworks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]frameworkResponse, 0, len(frameworks))
	for _, fw := range frameworks {
		out = append(out, frameworkResponse{
			ID:          fw.ID,
			Name:        fw.Name,
			Version:     fw.Version,
			Description: fw.Description,
			CreatedAt:   fw.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"frameworks": out})
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	controls, err := s.catalog.ListControls(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]controlResponse, 0, len(controls))
	for _, control := range controls {
		out = append(out, controlToResponse(control))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"controls": out})
}

func (s *Server) handleControlDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "controlID")
	control, err := s.catalog.ControlByID(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("control not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	requirements, err := s.catalog.RequirementsForControl(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, controlDetailResponse{
		controlResponse: controlToResponse(control),
		Requirements:    requirements,
	})
}

func (s *Server) handleLinkEvidence(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	documentID := chi.URLParam(r, "documentID")
	var req linkEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.ControlID = strings.TrimSpace(req.ControlID)
	if req.ControlID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("control_id is required"))
		return
	}
	if _, err := s.catalog.DocumentByID(ctx, documentID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("document not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := s.catalog.ControlByID(ctx, req.ControlID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("control not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	requirementID := strings.TrimSpace(req.RequirementID)
	if requirementID != "" {
		requirements, err := s.catalog.RequirementsForControl(ctx, req.ControlID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		found := false
		for _, requirement := range requirements {
			if requirement.ID == requirementID {
				found = true
				break
			}
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("requirement not found"))
			return
		}
	}
	link, err := s.catalog.CreateEvidenceLink(ctx, req.ControlID, requirementID, documentID, strings.TrimSpace(req.Note))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.audit(ctx, "evidence.link", "control", req.ControlID, documentID)
	logger.Info("api: evidence linked",
		"document", documentID, "control", req.ControlID, "requirement", requirementID, "link", link.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "evidence linked",
		"link_id": link.ID,
	})
}

func (s *Server) handleControlEvidence(w http.ResponseWriter, r *http.Request) {
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
	links, err := s.catalog.EvidenceLinksForControl(ctx, controlID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]evidenceItemResponse, 0, len(links))
	for _, link := range links {
		doc, err := s.catalog.DocumentByID(ctx, link.DocumentID)
		if err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				continue
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		item := evidenceItemResponse{
			ID:        link.ID,
			Document:  documentToResponse(doc),
			Note:      link.Note,
			CreatedAt: link.CreatedAt,
		}
		if link.RequirementID.Valid {
			item.RequirementID = link.RequirementID.String
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"evidence": out})
}
