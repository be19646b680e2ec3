// File path: internal/scan/orchestrator.go
package scan

import (
	"context"
	"fmt"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/sqlite"
)

// Store is the catalog surface the orchestrator needs.
type Store interface {
	ScanByID(ctx context.Context, scanID string) (sqlite.ScanRow, error)
	SetScanStatus(ctx context.Context, scanID, status, step string) error
	UpdateScanProgress(ctx context.Context, scanID string, percentage int, step string) error
	SaveReport(ctx context.Context, scanID string, report compliance.Report) error
	ControlByID(ctx context.Context, id string) (compliance.Control, error)
	RequirementsForControl(ctx context.Context, controlID string) ([]compliance.Requirement, error)
	EvidenceForControl(ctx context.Context, controlID string) ([]compliance.EvidenceExcerpt, error)
}

// Orchestrator drives one scan through its lifecycle:
// pending -> processing -> completed | failed. Progress milestones are fixed
// and monotonic so a polling UI always sees forward motion.
type Orchestrator struct {
	store   Store
	scanner *Scanner
	cfg     config.Provider
}

func NewOrchestrator(store Store, scanner *Scanner, cfg config.Provider) *Orchestrator {
	return &Orchestrator{store: store, scanner: scanner, cfg: cfg}
}

// Execute runs the scan with the given id to a terminal state. The returned
// error is non-nil only for transport-level failures, which mark the scan
// failed and remain eligible for the task dispatcher's retry policy.
func (o *Orchestrator) Execute(ctx context.Context, scanID string) error {
	logger := common.Logger()
	scan, err := o.store.ScanByID(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load scan: %w", err)
	}
	if scan.Status == sqlite.ScanStatusCompleted || scan.Status == sqlite.ScanStatusFailed {
		logger.Warn("scan: already in terminal state", "scan", scanID, "status", scan.Status)
		return nil
	}

	if err := o.store.SetScanStatus(ctx, scanID, sqlite.ScanStatusProcessing, "Initializing scan..."); err != nil {
		return err
	}

	control, err := o.store.ControlByID(ctx, scan.ControlID)
	if err != nil {
		return o.fail(ctx, scanID, fmt.Errorf("load control: %w", err))
	}
	evidence, err := o.store.EvidenceForControl(ctx, scan.ControlID)
	if err != nil {
		return o.fail(ctx, scanID, fmt.Errorf("gather evidence: %w", err))
	}
	if len(evidence) == 0 {
		if err := o.store.UpdateScanProgress(ctx, scanID, 100, "No evidence to scan"); err != nil {
			return err
		}
		if err := o.store.SetScanStatus(ctx, scanID, sqlite.ScanStatusCompleted, "No evidence to scan"); err != nil {
			return err
		}
		logger.Info("scan: completed with no evidence", "scan", scanID, "control", control.Code)
		return nil
	}
	if err := o.store.UpdateScanProgress(ctx, scanID, 10,
		fmt.Sprintf("Gathering evidence from %d pages...", len(evidence))); err != nil {
		return err
	}

	requirements, err := o.store.RequirementsForControl(ctx, scan.ControlID)
	if err != nil {
		return o.fail(ctx, scanID, fmt.Errorf("load requirements: %w", err))
	}
	if err := o.store.UpdateScanProgress(ctx, scanID, 20,
		fmt.Sprintf("Analyzing %d requirements with AI...", len(requirements))); err != nil {
		return err
	}

	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.Current().ScanTimeout)
	defer cancel()
	report, err := o.scanner.Run(scanCtx, control, requirements, evidence)
	if err != nil {
		return o.fail(ctx, scanID, err)
	}

	if err := o.store.UpdateScanProgress(ctx, scanID, 80, "Storing scan results..."); err != nil {
		return err
	}
	if err := o.store.SaveReport(ctx, scanID, report); err != nil {
		return o.fail(ctx, scanID, fmt.Errorf("store report: %w", err))
	}
	if err := o.store.UpdateScanProgress(ctx, scanID, 100, "Scan completed"); err != nil {
		return err
	}
	if err := o.store.SetScanStatus(ctx, scanID, sqlite.ScanStatusCompleted, "Scan completed"); err != nil {
		return err
	}
	logger.Info("scan: completed", "scan", scanID, "control", control.Code,
		"results", len(report.Requirements), "gaps", len(report.Gaps))
	return nil
}

// fail marks the scan failed with a truncated diagnostic in the step field
// and passes the original error back for the retry layer.
func (o *Orchestrator) fail(ctx context.Context, scanID string, cause error) error {
	step := "Error: " + truncateError(cause, 100)
	if err := o.store.SetScanStatus(ctx, scanID, sqlite.ScanStatusFailed, step); err != nil {
		common.Logger().Error("scan: failed to record failure", "scan", scanID, "error", err)
	}
	common.Logger().Error("scan: failed", "scan", scanID, "error", cause)
	return cause
}

func truncateError(err error, limit int) string {
	msg := err.Error()
	runes := []rune(msg)
	if len(runes) <= limit {
		return msg
	}
	return string(runes[:limit])
}
