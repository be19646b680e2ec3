// File path: internal/api/settings_handler.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/llm"
)

const redactedAPIKey = "***"

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings := s.cfg.Current()
	resp := settingsResponse{
		Provider:       string(settings.AIProvider),
		OpenAIModel:    settings.OpenAI.Model,
		OpenAIEndpoint: settings.OpenAI.Endpoint,
		OllamaEndpoint: settings.Ollama.Endpoint,
		OllamaModel:    settings.Ollama.Model,
		MinConfidence:  settings.MinConfidence,
		DualValidation: settings.DualValidation,
	}
	if settings.OpenAI.APIKey != "" {
		resp.OpenAIAPIKey = redactedAPIKey
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings, err := mergeSettings(s.cfg.Current(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.rebuild(settings); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("apply settings: %w", err))
		return
	}
	if err := s.catalog.SaveSettings(ctx, settings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.cfg.Update(settings)
	s.audit(ctx, "settings.save", "settings", "ai", string(settings.AIProvider))
	logger.Info("api: settings saved",
		"provider", settings.AIProvider, "dual_validation", settings.DualValidation,
		"min_confidence", settings.MinConfidence)
	writeJSON(w, http.StatusOK, map[string]string{"message": "settings saved"})
}

func (s *Server) handleSettingsTest(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings, err := mergeSettings(s.cfg.Current(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	provider, err := llm.NewProvider(settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("connection test failed: %w", err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := provider.CheckReachability(ctx); err != nil {
		logger.Warn("api: provider test failed", "provider", provider.Name(), "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("connection test failed: %w", err))
		return
	}
	logger.Info("api: provider test succeeded", "provider", provider.Name())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"provider": provider.Name(),
		"model":    scanModel(settings),
	})
}

// mergeSettings overlays a settings request onto the current snapshot. The
// stored API key survives when the request omits it or echoes the redaction
// marker back.
func mergeSettings(current config.Settings, req settingsRequest) (config.Settings, error) {
	merged := current
	provider := config.ProviderName(strings.ToLower(strings.TrimSpace(req.Provider)))
	switch provider {
	case config.ProviderOpenAI, config.ProviderOllama:
		merged.AIProvider = provider
	case "":
	default:
		return config.Settings{}, fmt.Errorf("unknown provider %q", req.Provider)
	}
	if key := strings.TrimSpace(req.OpenAIAPIKey); key != "" && key != redactedAPIKey {
		merged.OpenAI.APIKey = key
	}
	if model := strings.TrimSpace(req.OpenAIModel); model != "" {
		merged.OpenAI.Model = model
	}
	merged.OpenAI.Endpoint = strings.TrimSpace(req.OpenAIEndpoint)
	if endpoint := strings.TrimSpace(req.OllamaEndpoint); endpoint != "" {
		merged.Ollama.Endpoint = endpoint
	}
	if model := strings.TrimSpace(req.OllamaModel); model != "" {
		merged.Ollama.Model = model
	}
	if req.MinConfidence != nil {
		if *req.MinConfidence <= 0 || *req.MinConfidence > 1 {
			return config.Settings{}, fmt.Errorf("min_confidence must be in (0, 1]")
		}
		merged.MinConfidence = *req.MinConfidence
	}
	if req.DualValidation != nil {
		merged.DualValidation = *req.DualValidation
	}
	return merged, nil
}
