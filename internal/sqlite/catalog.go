// File path: internal/sqlite/catalog.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geekygoose/gander/internal/compliance"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ListFrameworks returns all frameworks ordered by name.
func (s *Store) ListFrameworks(ctx context.Context) ([]Framework, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	frameworks := []Framework{}
	if err := s.db.SelectContext(ctx, &frameworks, `SELECT * FROM frameworks ORDER BY name`); err != nil {
		return nil, fmt.Errorf("select frameworks: %w", err)
	}
	return frameworks, nil
}

const controlColumns = `c.id, c.framework_id, f.name AS framework_name, c.code, c.title, c.description, c.created_at, c.updated_at`

// ListControls returns every control with its framework name, ordered by code.
func (s *Store) ListControls(ctx context.Context) ([]compliance.Control, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	rows := []ControlRow{}
	query := `SELECT ` + controlColumns + ` FROM controls c
                INNER JOIN frameworks f ON f.id = c.framework_id
                ORDER BY c.code`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select controls: %w", err)
	}
	return controlsFromRows(rows), nil
}

// ControlByID fetches one control with its framework name.
func (s *Store) ControlByID(ctx context.Context, id string) (compliance.Control, error) {
	if s == nil || s.db == nil {
		return compliance.Control{}, fmt.Errorf("sqlite store not initialised")
	}
	var row ControlRow
	query := `SELECT ` + controlColumns + ` FROM controls c
                INNER JOIN frameworks f ON f.id = c.framework_id
                WHERE c.id = ?`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return compliance.Control{}, ErrNotFound
		}
		return compliance.Control{}, fmt.Errorf("select control: %w", err)
	}
	return controlFromRow(row), nil
}

// RequirementsForControl returns a control's requirements ordered by code.
func (s *Store) RequirementsForControl(ctx context.Context, controlID string) ([]compliance.Requirement, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	rows := []RequirementRow{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM requirements WHERE control_id = ? ORDER BY req_code`, controlID); err != nil {
		return nil, fmt.Errorf("select requirements: %w", err)
	}
	requirements := make([]compliance.Requirement, 0, len(rows))
	for _, row := range rows {
		requirements = append(requirements, compliance.Requirement{
			ID:            row.ID,
			ControlID:     row.ControlID,
			Code:          row.Code,
			Text:          row.Text,
			MaturityLevel: row.MaturityLevel,
			Guidance:      row.Guidance,
		})
	}
	return requirements, nil
}

func controlFromRow(row ControlRow) compliance.Control {
	return compliance.Control{
		ID:          row.ID,
		FrameworkID: row.FrameworkID,
		Framework:   row.Framework,
		Code:        row.Code,
		Title:       row.Title,
		Description: row.Description,
	}
}

func controlsFromRows(rows []ControlRow) []compliance.Control {
	controls := make([]compliance.Control, 0, len(rows))
	for _, row := range rows {
		controls = append(controls, controlFromRow(row))
	}
	return controls
}

// RecordAudit appends an audit log entry outside any transaction.
func (s *Store) RecordAudit(ctx context.Context, action, entityType, entityID, detail string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs(id, action, entity_type, entity_id, detail) VALUES(?, ?, ?, ?, ?)`,
		uuid.NewString(), action, entityType, entityID, detail); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
