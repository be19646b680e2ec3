// File path: internal/api/documents_handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/geekygoose/gander/internal/classifier"
	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/extraction"
	"github.com/geekygoose/gander/internal/sqlite"
)

// maxUploadBytes caps a single evidence file at 50 MiB.
const maxUploadBytes = 50 << 20

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
	"image/png":  {},
	"image/jpeg": {},
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("api: upload form parse failed", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file field required"))
		return
	}
	defer file.Close()

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file name required"))
		return
	}
	mimeType := normalizeMime(header.Header.Get("Content-Type"))
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file type %s not allowed", mimeType))
		return
	}
	if header.Size > maxUploadBytes {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file too large, maximum size is %d MB", maxUploadBytes>>20))
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("read upload: %w", err))
		return
	}
	if len(content) > maxUploadBytes {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file too large, maximum size is %d MB", maxUploadBytes>>20))
		return
	}

	key, err := s.blobs.Put(content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}
	doc, err := s.catalog.CreateDocument(ctx, filename, mimeType, key, key, int64(len(content)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	pages := extraction.Pages(content, mimeType, filename)
	if err := s.catalog.ReplacePages(ctx, doc.ID, pages); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	controls, err := s.catalog.ListControls(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Respond at once with filename heuristics; the AI pass runs detached
	// and records a link on its own when confident enough.
	suggestions := classifier.FallbackSuggestions(filename, controls)
	s.dispatchClassification(doc, controls)

	s.audit(ctx, "document.upload", "document", doc.ID, filename)
	logger.Info("api: document uploaded",
		"document", doc.ID, "filename", filename, "size", doc.FileSize, "pages", len(pages))
	writeJSON(w, http.StatusOK, uploadResponse{
		documentResponse:  documentToResponse(doc),
		SuggestedControls: suggestions,
	})
}

// dispatchClassification queues the full AI classification for an uploaded
// document. A full queue is tolerated; the retry scheduler sweeps unlinked
// documents later.
func (s *Server) dispatchClassification(doc sqlite.Document, controls []compliance.Control) {
	if s.dispatcher == nil {
		return
	}
	name := "classify " + doc.ID
	err := s.dispatcher.Submit(name, func(ctx context.Context) error {
		text, err := s.catalog.DocumentText(ctx, doc.ID)
		if err != nil {
			return err
		}
		_, _, err = s.ClassifyAndLink(ctx, doc.ID, doc.Filename, text, controls)
		return err
	})
	if err != nil {
		common.Logger().Warn("api: classification not queued", "document", doc.ID, "error", err)
	}
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentToResponse(doc))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": out})
}

func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	doc, err := s.catalog.DocumentByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("document not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(doc))
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	id := chi.URLParam(r, "documentID")
	doc, err := s.catalog.DocumentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("document not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.blobs.Delete(doc.StorageKey); err != nil {
		logger.Warn("api: blob delete failed", "document", id, "key", doc.StorageKey, "error", err)
	}
	if err := s.catalog.DeleteDocument(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.audit(ctx, "document.delete", "document", id, doc.Filename)
	logger.Info("api: document deleted", "document", id, "filename", doc.Filename)
	writeJSON(w, http.StatusOK, map[string]string{"message": "document deleted"})
}

func normalizeMime(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}
