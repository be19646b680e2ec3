// File path: internal/sqlite/settings.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geekygoose/gander/internal/config"
)

// LoadSettings reads the singleton settings row and overlays it on the given
// base configuration. A missing row returns the base unchanged.
func (s *Store) LoadSettings(ctx context.Context, base config.Settings) (config.Settings, error) {
	if s == nil || s.db == nil {
		return base, fmt.Errorf("sqlite store not initialised")
	}
	var row SettingsRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM settings WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return base, nil
		}
		return base, fmt.Errorf("select settings: %w", err)
	}
	cfg := base
	cfg.AIProvider = config.ProviderName(row.AIProvider)
	cfg.OpenAI.APIKey = row.OpenAIAPIKey
	cfg.OpenAI.Model = row.OpenAIModel
	cfg.OpenAI.Endpoint = row.OpenAIEndpoint
	cfg.Ollama.Endpoint = row.OllamaEndpoint
	cfg.Ollama.Model = row.OllamaModel
	cfg.Ollama.ContextWindow = row.OllamaContextSize
	cfg.MinConfidence = row.MinConfidenceThreshold
	cfg.DualValidation = row.DualValidation
	return cfg, nil
}

// SaveSettings upserts the singleton settings row from the given
// configuration.
func (s *Store) SaveSettings(ctx context.Context, cfg config.Settings) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	dual := 0
	if cfg.DualValidation {
		dual = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(id, ai_provider, openai_api_key, openai_model, openai_endpoint,
                        ollama_endpoint, ollama_model, ollama_context_size, min_confidence_threshold, dual_validation, updated_at)
                VALUES(1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(id) DO UPDATE SET
                        ai_provider = excluded.ai_provider,
                        openai_api_key = excluded.openai_api_key,
                        openai_model = excluded.openai_model,
                        openai_endpoint = excluded.openai_endpoint,
                        ollama_endpoint = excluded.ollama_endpoint,
                        ollama_model = excluded.ollama_model,
                        ollama_context_size = excluded.ollama_context_size,
                        min_confidence_threshold = excluded.min_confidence_threshold,
                        dual_validation = excluded.dual_validation,
                        updated_at = excluded.updated_at`,
		string(cfg.AIProvider), cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Endpoint,
		cfg.Ollama.Endpoint, cfg.Ollama.Model, cfg.Ollama.ContextWindow,
		cfg.MinConfidence, dual, time.Now().UTC()); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
