// File path: internal/api/types.go
package api

import (
	"time"

	"github.com/geekygoose/gander/internal/compliance"
	"github.com/geekygoose/gander/internal/sqlite"
)

type documentResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

type uploadResponse struct {
	documentResponse
	SuggestedControls []compliance.Suggestion `json:"suggested_controls"`
}

type linkEvidenceRequest struct {
	ControlID     string `json:"control_id"`
	RequirementID string `json:"requirement_id,omitempty"`
	Note          string `json:"note,omitempty"`
}

type frameworkResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type controlResponse struct {
	ID          string `json:"id"`
	FrameworkID string `json:"framework_id"`
	Framework   string `json:"framework_name"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type controlDetailResponse struct {
	controlResponse
	Requirements []compliance.Requirement `json:"requirements"`
}

type evidenceItemResponse struct {
	ID            string           `json:"id"`
	Document      documentResponse `json:"document"`
	RequirementID string           `json:"requirement_id,omitempty"`
	Note          string           `json:"note,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

type scanSummaryResponse struct {
	ID                    string    `json:"id"`
	Status                string    `json:"status"`
	Model                 string    `json:"model"`
	ProgressPercentage    int       `json:"progress_percentage"`
	CurrentStep           string    `json:"current_step"`
	TotalRequirements     int       `json:"total_requirements"`
	ProcessedRequirements int       `json:"processed_requirements"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type scanStatusResponse struct {
	scanSummaryResponse
	Control controlResponse      `json:"control"`
	Results []scanResultResponse `json:"results"`
	Gaps    []scanGapResponse    `json:"gaps"`
}

type scanResultResponse struct {
	Requirement compliance.Requirement `json:"requirement"`
	Outcome     compliance.Outcome     `json:"outcome"`
	Confidence  float64                `json:"confidence"`
	Rationale   string                 `json:"rationale"`
	Citations   []compliance.Citation  `json:"citations"`
}

type scanGapResponse struct {
	Requirement        compliance.Requirement         `json:"requirement"`
	Summary            string                         `json:"summary"`
	RecommendedActions []compliance.RecommendedAction `json:"recommended_actions"`
}

type settingsRequest struct {
	Provider       string   `json:"provider"`
	OpenAIAPIKey   string   `json:"openai_api_key,omitempty"`
	OpenAIModel    string   `json:"openai_model,omitempty"`
	OpenAIEndpoint string   `json:"openai_endpoint,omitempty"`
	OllamaEndpoint string   `json:"ollama_endpoint,omitempty"`
	OllamaModel    string   `json:"ollama_model,omitempty"`
	MinConfidence  *float64 `json:"min_confidence,omitempty"`
	DualValidation *bool    `json:"dual_validation,omitempty"`
}

type settingsResponse struct {
	Provider       string  `json:"provider"`
	OpenAIAPIKey   string  `json:"openai_api_key,omitempty"`
	OpenAIModel    string  `json:"openai_model"`
	OpenAIEndpoint string  `json:"openai_endpoint,omitempty"`
	OllamaEndpoint string  `json:"ollama_endpoint"`
	OllamaModel    string  `json:"ollama_model"`
	MinConfidence  float64 `json:"min_confidence"`
	DualValidation bool    `json:"dual_validation"`
}

func documentToResponse(doc sqlite.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		Filename:  doc.Filename,
		MimeType:  doc.MimeType,
		FileSize:  doc.FileSize,
		SHA256:    doc.SHA256,
		CreatedAt: doc.CreatedAt,
	}
}

func controlToResponse(control compliance.Control) controlResponse {
	return controlResponse{
		ID:          control.ID,
		FrameworkID: control.FrameworkID,
		Framework:   control.Framework,
		Code:        control.Code,
		Title:       control.Title,
		Description: control.Description,
	}
}

func scanToSummary(row sqlite.ScanRow) scanSummaryResponse {
	return scanSummaryResponse{
		ID:                    row.ID,
		Status:                row.Status,
		Model:                 row.Model,
		ProgressPercentage:    row.ProgressPercentage,
		CurrentStep:           row.CurrentStep,
		TotalRequirements:     row.TotalRequirements,
		ProcessedRequirements: row.ProcessedRequirements,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}
