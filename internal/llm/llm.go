// File path: internal/llm/llm.go
package llm

import (
	"errors"
	"strings"

	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/llm/providers"
)

type Message = providers.Message

type ChatRequest = providers.ChatRequest

type ChatResponse = providers.ChatResponse

type Provider = providers.Provider

var ErrUnreachable = providers.ErrUnreachable

var (
	ErrUnknownProvider   = errors.New("unknown ai provider")
	ErrMissingCredential = errors.New("missing api credential")
)

// PlaceholderAPIKey satisfies OpenAI-compatible local servers that require a
// bearer token but do not validate it. It is only used when a custom endpoint
// is configured without a credential.
const PlaceholderAPIKey = "sk-gander-local-placeholder"

// NewProvider resolves the configured AI backend.
func NewProvider(cfg config.Settings) (Provider, error) {
	return newBackend(cfg, cfg.AIProvider)
}

func newBackend(cfg config.Settings, name config.ProviderName) (Provider, error) {
	logger := common.Logger()
	switch name {
	case config.ProviderOpenAI:
		apiKey := strings.TrimSpace(cfg.OpenAI.APIKey)
		endpoint := strings.TrimSpace(cfg.OpenAI.Endpoint)
		if apiKey == "" {
			if endpoint == "" {
				return nil, ErrMissingCredential
			}
			logger.Info("llm: no api key set, using placeholder for custom endpoint", "endpoint", endpoint)
			apiKey = PlaceholderAPIKey
		}
		return providers.NewOpenAIProvider(apiKey, cfg.OpenAI.Model, endpoint), nil
	case config.ProviderOllama:
		return providers.NewOllamaProvider(cfg.Ollama.Endpoint, cfg.Ollama.Model, cfg.Ollama.ContextWindow, cfg.ChatTimeout), nil
	default:
		return nil, ErrUnknownProvider
	}
}

// ResolveValidators returns the primary backend plus, when dual validation is
// enabled, a second backend of the other kind. The secondary is nil when the
// other backend is not configured; it is never silently the same backend as
// the primary.
func ResolveValidators(cfg config.Settings) (Provider, Provider, error) {
	primary, err := NewProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.DualValidation {
		return primary, nil, nil
	}
	other := config.ProviderOllama
	if cfg.AIProvider == config.ProviderOllama {
		other = config.ProviderOpenAI
	}
	secondary, err := newBackend(cfg, other)
	if err != nil {
		common.Logger().Warn("llm: dual validation requested but secondary backend unavailable", "backend", string(other), "error", err)
		return primary, nil, nil
	}
	return primary, secondary, nil
}
