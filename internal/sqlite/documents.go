// File path: internal/sqlite/documents.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geekygoose/gander/internal/compliance"
)

// CreateDocument inserts a document catalog entry for uploaded bytes.
func (s *Store) CreateDocument(ctx context.Context, filename, mimeType, storageKey, sha256 string, fileSize int64) (Document, error) {
	if s == nil || s.db == nil {
		return Document{}, fmt.Errorf("sqlite store not initialised")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return Document{}, fmt.Errorf("document filename required")
	}
	doc := Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		MimeType:   mimeType,
		StorageKey: storageKey,
		FileSize:   fileSize,
		SHA256:     sha256,
		CreatedAt:  time.Now().UTC(),
	}
	doc.UpdatedAt = doc.CreatedAt
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, filename, mime_type, storage_key, file_size, sha256, created_at, updated_at)
                VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.MimeType, doc.StorageKey, doc.FileSize, doc.SHA256, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// DocumentByID fetches one document.
func (s *Store) DocumentByID(ctx context.Context, id string) (Document, error) {
	if s == nil || s.db == nil {
		return Document{}, fmt.Errorf("sqlite store not initialised")
	}
	var doc Document
	if err := s.db.GetContext(ctx, &doc, `SELECT * FROM documents WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	docs := []Document{}
	if err := s.db.SelectContext(ctx, &docs, `SELECT * FROM documents ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document; pages, links and evidence cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplacePages swaps a document's extracted pages in one transaction.
func (s *Store) ReplacePages(ctx context.Context, documentID string, texts []string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_pages WHERE document_id = ?`, documentID); err != nil {
			return fmt.Errorf("clear pages: %w", err)
		}
		for i, text := range texts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO document_pages(id, document_id, page_num, text) VALUES(?, ?, ?, ?)`,
				uuid.NewString(), documentID, i+1, text); err != nil {
				return fmt.Errorf("insert page %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// PagesForDocument returns a document's extracted pages in page order.
func (s *Store) PagesForDocument(ctx context.Context, documentID string) ([]Page, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	pages := []Page{}
	if err := s.db.SelectContext(ctx, &pages,
		`SELECT * FROM document_pages WHERE document_id = ? ORDER BY page_num`, documentID); err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	return pages, nil
}

// DocumentText concatenates a document's pages for classification.
func (s *Store) DocumentText(ctx context.Context, documentID string) (string, error) {
	pages, err := s.PagesForDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, page := range pages {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(page.Text)
	}
	return b.String(), nil
}

// CreateEvidenceLink attaches a document to a control as scan evidence.
// requirementID may be empty to attach at the control level.
func (s *Store) CreateEvidenceLink(ctx context.Context, controlID, requirementID, documentID, note string) (EvidenceLink, error) {
	if s == nil || s.db == nil {
		return EvidenceLink{}, fmt.Errorf("sqlite store not initialised")
	}
	link := EvidenceLink{
		ID:         uuid.NewString(),
		ControlID:  controlID,
		DocumentID: documentID,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}
	if trimmed := strings.TrimSpace(requirementID); trimmed != "" {
		link.RequirementID = sql.NullString{String: trimmed, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence_links(id, control_id, requirement_id, document_id, note, created_at)
                VALUES(?, ?, ?, ?, ?, ?)`,
		link.ID, link.ControlID, nullIfEmpty(requirementID), link.DocumentID, link.Note, link.CreatedAt); err != nil {
		return EvidenceLink{}, fmt.Errorf("insert evidence link: %w", err)
	}
	return link, nil
}

// EvidenceLinksForControl lists the manual evidence attachments for a
// control, newest first.
func (s *Store) EvidenceLinksForControl(ctx context.Context, controlID string) ([]EvidenceLink, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	links := []EvidenceLink{}
	query := `SELECT id, control_id, requirement_id, document_id, note, created_at
                FROM evidence_links WHERE control_id = ? ORDER BY created_at DESC, id`
	if err := s.db.SelectContext(ctx, &links, query, controlID); err != nil {
		return nil, fmt.Errorf("select evidence links: %w", err)
	}
	return links, nil
}

// EvidenceForControl gathers every evidence page attached to a control,
// whether linked manually or by the AI classifier, ordered by document then
// page so prompts render deterministically.
func (s *Store) EvidenceForControl(ctx context.Context, controlID string) ([]compliance.EvidenceExcerpt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	type evidenceRow struct {
		DocumentID   string `db:"document_id"`
		DocumentName string `db:"filename"`
		PageNum      int    `db:"page_num"`
		Text         string `db:"text"`
	}
	rows := []evidenceRow{}
	query := `SELECT DISTINCT d.id AS document_id, d.filename, p.page_num, p.text
                FROM documents d
                INNER JOIN document_pages p ON p.document_id = d.id
                WHERE d.id IN (
                        SELECT document_id FROM evidence_links WHERE control_id = ?
                        UNION
                        SELECT document_id FROM document_control_links WHERE control_id = ?
                )
                ORDER BY d.filename, d.id, p.page_num`
	if err := s.db.SelectContext(ctx, &rows, query, controlID, controlID); err != nil {
		return nil, fmt.Errorf("select evidence: %w", err)
	}
	excerpts := make([]compliance.EvidenceExcerpt, 0, len(rows))
	for _, row := range rows {
		excerpts = append(excerpts, compliance.EvidenceExcerpt{
			DocumentID:   row.DocumentID,
			DocumentName: row.DocumentName,
			PageNum:      row.PageNum,
			Text:         row.Text,
		})
	}
	return excerpts, nil
}
