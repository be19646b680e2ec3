// File path: internal/sqlite/links.go
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/geekygoose/gander/internal/compliance"
)

// CreateLink persists an AI-derived document-to-control association. The
// (document, control) pair is unique; inserting an existing pair leaves the
// stored row untouched and reports created=false, which keeps
// re-classification idempotent.
func (s *Store) CreateLink(ctx context.Context, link compliance.ControlLink) (compliance.ControlLink, bool, error) {
	if s == nil || s.db == nil {
		return compliance.ControlLink{}, false, fmt.Errorf("sqlite store not initialised")
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO document_control_links(id, document_id, control_id, confidence, reasoning, created_at, updated_at)
                VALUES(?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(document_id, control_id) DO NOTHING`,
		id, link.DocumentID, link.ControlID, link.Confidence, link.Reasoning, now, now)
	if err != nil {
		return compliance.ControlLink{}, false, fmt.Errorf("insert link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return compliance.ControlLink{}, false, fmt.Errorf("insert link: %w", err)
	}
	var row LinkRow
	if err := s.db.GetContext(ctx, &row,
		`SELECT * FROM document_control_links WHERE document_id = ? AND control_id = ?`,
		link.DocumentID, link.ControlID); err != nil {
		return compliance.ControlLink{}, false, fmt.Errorf("select link: %w", err)
	}
	return linkFromRow(row), affected > 0, nil
}

// LinksForDocument lists the stored links for one document.
func (s *Store) LinksForDocument(ctx context.Context, documentID string) ([]compliance.ControlLink, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	rows := []LinkRow{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM document_control_links WHERE document_id = ? ORDER BY confidence DESC`, documentID); err != nil {
		return nil, fmt.Errorf("select links: %w", err)
	}
	links := make([]compliance.ControlLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, linkFromRow(row))
	}
	return links, nil
}

// UnlinkedDocumentsBefore returns documents created before the cutoff that
// have no control link at all. The retry sweep re-runs classification for
// these.
func (s *Store) UnlinkedDocumentsBefore(ctx context.Context, cutoff time.Time) ([]Document, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	docs := []Document{}
	query := `SELECT d.* FROM documents d
                LEFT JOIN document_control_links l ON l.document_id = d.id
                WHERE l.id IS NULL AND d.created_at < ?
                ORDER BY d.created_at`
	if err := s.db.SelectContext(ctx, &docs, query, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("select unlinked documents: %w", err)
	}
	return docs, nil
}

func linkFromRow(row LinkRow) compliance.ControlLink {
	return compliance.ControlLink{
		ID:         row.ID,
		DocumentID: row.DocumentID,
		ControlID:  row.ControlID,
		Confidence: row.Confidence,
		Reasoning:  row.Reasoning,
		CreatedAt:  row.CreatedAt,
	}
}
