// File path: internal/sqlite/types.go
package sqlite

import (
	"database/sql"
	"time"
)

// Framework represents a compliance framework row.
type Framework struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Version     string    `db:"version"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ControlRow is a persisted control with its framework name joined in.
type ControlRow struct {
	ID          string    `db:"id"`
	FrameworkID string    `db:"framework_id"`
	Framework   string    `db:"framework_name"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// RequirementRow is a persisted requirement.
type RequirementRow struct {
	ID            string    `db:"id"`
	ControlID     string    `db:"control_id"`
	Code          string    `db:"req_code"`
	Text          string    `db:"text"`
	MaturityLevel int       `db:"maturity_level"`
	Guidance      string    `db:"guidance"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Document is an uploaded evidence file's catalog entry. The bytes live in
// the blob store under StorageKey.
type Document struct {
	ID         string    `db:"id"`
	Filename   string    `db:"filename"`
	MimeType   string    `db:"mime_type"`
	StorageKey string    `db:"storage_key"`
	FileSize   int64     `db:"file_size"`
	SHA256     string    `db:"sha256"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Page is one page of extracted document text.
type Page struct {
	ID         string    `db:"id"`
	DocumentID string    `db:"document_id"`
	PageNum    int       `db:"page_num"`
	Text       string    `db:"text"`
	CreatedAt  time.Time `db:"created_at"`
}

// EvidenceLink is a manual attachment of a document to a control, optionally
// narrowed to one requirement.
type EvidenceLink struct {
	ID            string         `db:"id"`
	ControlID     string         `db:"control_id"`
	RequirementID sql.NullString `db:"requirement_id"`
	DocumentID    string         `db:"document_id"`
	Note          string         `db:"note"`
	CreatedAt     time.Time      `db:"created_at"`
}

// LinkRow is an AI-derived document-to-control association.
type LinkRow struct {
	ID         string    `db:"id"`
	DocumentID string    `db:"document_id"`
	ControlID  string    `db:"control_id"`
	Confidence float64   `db:"confidence"`
	Reasoning  string    `db:"reasoning"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ScanRow tracks one compliance scan's lifecycle.
type ScanRow struct {
	ID                    string    `db:"id"`
	ControlID             string    `db:"control_id"`
	Status                string    `db:"status"`
	Model                 string    `db:"model"`
	ProgressPercentage    int       `db:"progress_percentage"`
	CurrentStep           string    `db:"current_step"`
	TotalRequirements     int       `db:"total_requirements"`
	ProcessedRequirements int       `db:"processed_requirements"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// ScanResultRow is one requirement verdict inside a stored scan report.
type ScanResultRow struct {
	ID            string    `db:"id"`
	ScanID        string    `db:"scan_id"`
	RequirementID string    `db:"requirement_id"`
	Position      int       `db:"position"`
	Outcome       string    `db:"outcome"`
	Confidence    float64   `db:"confidence"`
	Rationale     string    `db:"rationale"`
	CitationsJSON string    `db:"citations_json"`
	CreatedAt     time.Time `db:"created_at"`
}

// GapRow is one stored remediation gap.
type GapRow struct {
	ID                     string    `db:"id"`
	ScanID                 string    `db:"scan_id"`
	RequirementID          string    `db:"requirement_id"`
	Position               int       `db:"position"`
	GapSummary             string    `db:"gap_summary"`
	RecommendedActionsJSON string    `db:"recommended_actions_json"`
	CreatedAt              time.Time `db:"created_at"`
}

// SettingsRow is the singleton runtime-settings record.
type SettingsRow struct {
	ID                     int       `db:"id"`
	AIProvider             string    `db:"ai_provider"`
	OpenAIAPIKey           string    `db:"openai_api_key"`
	OpenAIModel            string    `db:"openai_model"`
	OpenAIEndpoint         string    `db:"openai_endpoint"`
	OllamaEndpoint         string    `db:"ollama_endpoint"`
	OllamaModel            string    `db:"ollama_model"`
	OllamaContextSize      int       `db:"ollama_context_size"`
	MinConfidenceThreshold float64   `db:"min_confidence_threshold"`
	DualValidation         bool      `db:"dual_validation"`
	UpdatedAt              time.Time `db:"updated_at"`
}
