// File path: internal/sqlite/scans.go
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geekygoose/gander/internal/compliance"
)

// Scan status values.
const (
	ScanStatusPending    = "pending"
	ScanStatusProcessing = "processing"
	ScanStatusCompleted  = "completed"
	ScanStatusFailed     = "failed"
)

// CreateScan records a new pending scan for a control.
func (s *Store) CreateScan(ctx context.Context, controlID, model string, totalRequirements int) (ScanRow, error) {
	if s == nil || s.db == nil {
		return ScanRow{}, fmt.Errorf("sqlite store not initialised")
	}
	scan := ScanRow{
		ID:                uuid.NewString(),
		ControlID:         controlID,
		Status:            ScanStatusPending,
		Model:             model,
		CurrentStep:       "Initializing...",
		TotalRequirements: totalRequirements,
		CreatedAt:         time.Now().UTC(),
	}
	scan.UpdatedAt = scan.CreatedAt
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scans(id, control_id, status, model, current_step, total_requirements, created_at, updated_at)
                VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.ControlID, scan.Status, scan.Model, scan.CurrentStep, scan.TotalRequirements,
		scan.CreatedAt, scan.UpdatedAt); err != nil {
		return ScanRow{}, fmt.Errorf("insert scan: %w", err)
	}
	return scan, nil
}

// UpdateScanProgress moves a scan's progress forward. Progress is monotonic:
// an update with a lower percentage than the stored one is ignored.
func (s *Store) UpdateScanProgress(ctx context.Context, scanID string, percentage int, step string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE scans SET progress_percentage = MAX(progress_percentage, ?), current_step = ?, updated_at = ?
                WHERE id = ?`,
		percentage, step, time.Now().UTC(), scanID); err != nil {
		return fmt.Errorf("update scan progress: %w", err)
	}
	return nil
}

// SetScanStatus transitions a scan's lifecycle status.
func (s *Store) SetScanStatus(ctx context.Context, scanID, status, step string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, current_step = ?, updated_at = ? WHERE id = ?`,
		status, step, time.Now().UTC(), scanID); err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	return nil
}

// ScanByID fetches one scan.
func (s *Store) ScanByID(ctx context.Context, scanID string) (ScanRow, error) {
	if s == nil || s.db == nil {
		return ScanRow{}, fmt.Errorf("sqlite store not initialised")
	}
	var scan ScanRow
	if err := s.db.GetContext(ctx, &scan, `SELECT * FROM scans WHERE id = ?`, scanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScanRow{}, ErrNotFound
		}
		return ScanRow{}, fmt.Errorf("select scan: %w", err)
	}
	return scan, nil
}

// ListScans returns scans newest first, optionally filtered by control.
func (s *Store) ListScans(ctx context.Context, controlID string) ([]ScanRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialised")
	}
	scans := []ScanRow{}
	if controlID == "" {
		if err := s.db.SelectContext(ctx, &scans, `SELECT * FROM scans ORDER BY created_at DESC`); err != nil {
			return nil, fmt.Errorf("select scans: %w", err)
		}
		return scans, nil
	}
	if err := s.db.SelectContext(ctx, &scans,
		`SELECT * FROM scans WHERE control_id = ? ORDER BY created_at DESC`, controlID); err != nil {
		return nil, fmt.Errorf("select scans: %w", err)
	}
	return scans, nil
}

// SaveReport stores a scan's requirement results and gaps in one
// transaction, replacing any results from an earlier attempt of the same
// scan. Rows keep the report's ordering, and the scan's processed
// requirement count is advanced to the number of results stored.
func (s *Store) SaveReport(ctx context.Context, scanID string, report compliance.Report) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scan_results WHERE scan_id = ?`, scanID); err != nil {
			return fmt.Errorf("clear scan results: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM gaps WHERE scan_id = ?`, scanID); err != nil {
			return fmt.Errorf("clear gaps: %w", err)
		}
		for i, result := range report.Requirements {
			citations, err := json.Marshal(result.Citations)
			if err != nil {
				return fmt.Errorf("encode citations: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO scan_results(id, scan_id, requirement_id, position, outcome, confidence, rationale, citations_json)
                                VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), scanID, result.RequirementID, i, string(result.Outcome),
				result.Confidence, result.Rationale, string(citations)); err != nil {
				return fmt.Errorf("insert scan result: %w", err)
			}
		}
		for i, gap := range report.Gaps {
			actions, err := json.Marshal(gap.RecommendedActions)
			if err != nil {
				return fmt.Errorf("encode recommended actions: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO gaps(id, scan_id, requirement_id, position, gap_summary, recommended_actions_json)
                                VALUES(?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), scanID, gap.RequirementID, i, gap.Summary, string(actions)); err != nil {
				return fmt.Errorf("insert gap: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE scans SET processed_requirements = ?, updated_at = ? WHERE id = ?`,
			len(report.Requirements), time.Now().UTC(), scanID); err != nil {
			return fmt.Errorf("update processed requirements: %w", err)
		}
		return nil
	})
}

// ReportForScan reassembles a stored report from its result and gap rows.
func (s *Store) ReportForScan(ctx context.Context, scanID string) (compliance.Report, error) {
	if s == nil || s.db == nil {
		return compliance.Report{}, fmt.Errorf("sqlite store not initialised")
	}
	resultRows := []ScanResultRow{}
	if err := s.db.SelectContext(ctx, &resultRows,
		`SELECT * FROM scan_results WHERE scan_id = ? ORDER BY position, id`, scanID); err != nil {
		return compliance.Report{}, fmt.Errorf("select scan results: %w", err)
	}
	gapRows := []GapRow{}
	if err := s.db.SelectContext(ctx, &gapRows,
		`SELECT * FROM gaps WHERE scan_id = ? ORDER BY position, id`, scanID); err != nil {
		return compliance.Report{}, fmt.Errorf("select gaps: %w", err)
	}
	report := compliance.Report{}
	for _, row := range resultRows {
		result := compliance.RequirementResult{
			RequirementID: row.RequirementID,
			Outcome:       compliance.Outcome(row.Outcome),
			Confidence:    row.Confidence,
			Rationale:     row.Rationale,
		}
		if row.CitationsJSON != "" {
			if err := json.Unmarshal([]byte(row.CitationsJSON), &result.Citations); err != nil {
				return compliance.Report{}, fmt.Errorf("decode citations: %w", err)
			}
		}
		report.Requirements = append(report.Requirements, result)
	}
	for _, row := range gapRows {
		gap := compliance.Gap{
			RequirementID: row.RequirementID,
			Summary:       row.GapSummary,
		}
		if row.RecommendedActionsJSON != "" {
			if err := json.Unmarshal([]byte(row.RecommendedActionsJSON), &gap.RecommendedActions); err != nil {
				return compliance.Report{}, fmt.Errorf("decode recommended actions: %w", err)
			}
		}
		report.Gaps = append(report.Gaps, gap)
	}
	return report, nil
}
