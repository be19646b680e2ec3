// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProviderName identifies an AI backend kind.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderOllama ProviderName = "ollama"
)

// TruncationMarker is appended wherever a text field is hard-cut at its budget.
const TruncationMarker = "... [truncated]"

// OpenAISettings holds the hosted provider connection parameters.
type OpenAISettings struct {
	APIKey   string
	Model    string
	Endpoint string
}

// OllamaSettings holds the local provider connection parameters.
type OllamaSettings struct {
	Endpoint      string
	Model         string
	ContextWindow int
}

// Settings is the complete runtime-tunable configuration surface for the
// classification and scanning pipeline.
type Settings struct {
	AIProvider ProviderName
	OpenAI     OpenAISettings
	Ollama     OllamaSettings

	MinConfidence  float64
	DualValidation bool

	EvidenceBudget  int
	DocumentBudget  int
	ReasoningBudget int
	CandidateLimit  int
	MapLimit        int

	ChatTimeout time.Duration
	ScanTimeout time.Duration

	SweepInterval time.Duration
	GracePeriod   time.Duration
	SweepCooldown time.Duration

	TaskRetries uint64
	TaskBackoff time.Duration

	CatalogPath string
	StoragePath string
}

// Provider supplies the current settings snapshot to pipeline components.
// Components hold a Provider rather than reading ambient state so that tests
// can swap configurations deterministically.
type Provider interface {
	Current() Settings
}

// Static is a Provider returning a fixed Settings value.
type Static struct {
	Settings Settings
}

func (s Static) Current() Settings { return s.Settings }

// Runtime is a Provider whose settings can be replaced at runtime, used by the
// API settings endpoints.
type Runtime struct {
	mu       sync.RWMutex
	settings Settings
}

// NewRuntime wraps the provided settings in a mutable Provider.
func NewRuntime(settings Settings) *Runtime {
	return &Runtime{settings: settings}
}

func (r *Runtime) Current() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// Update replaces the current settings snapshot.
func (r *Runtime) Update(settings Settings) {
	r.mu.Lock()
	r.settings = applyDefaults(settings)
	r.mu.Unlock()
}

// Default returns the baseline settings used when no overrides are supplied.
func Default() Settings {
	return Settings{
		AIProvider: ProviderOpenAI,
		OpenAI: OpenAISettings{
			Model: "gpt-4o-mini",
		},
		Ollama: OllamaSettings{
			Endpoint:      "http://localhost:11434",
			Model:         "qwen2.5:14b",
			ContextWindow: 131072,
		},
		MinConfidence:   0.90,
		DualValidation:  false,
		EvidenceBudget:  15000,
		DocumentBudget:  2000,
		ReasoningBudget: 200,
		CandidateLimit:  50,
		MapLimit:        20,
		ChatTimeout:     time.Minute,
		ScanTimeout:     3 * time.Minute,
		SweepInterval:   time.Hour,
		GracePeriod:     time.Hour,
		SweepCooldown:   5 * time.Minute,
		TaskRetries:     3,
		TaskBackoff:     5 * time.Second,
		CatalogPath:     filepath.Join("data", "gander.db"),
		StoragePath:     filepath.Join("data", "blobs"),
	}
}

// Load builds Settings from defaults and GANDER_* environment variables.
func Load() (Settings, error) {
	cfg := Default()
	if value := strings.TrimSpace(os.Getenv("GANDER_AI_PROVIDER")); value != "" {
		cfg.AIProvider = ProviderName(strings.ToLower(value))
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_OPENAI_API_KEY")); value != "" {
		cfg.OpenAI.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_OPENAI_MODEL")); value != "" {
		cfg.OpenAI.Model = value
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_OPENAI_ENDPOINT")); value != "" {
		cfg.OpenAI.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_OLLAMA_ENDPOINT")); value != "" {
		cfg.Ollama.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_OLLAMA_MODEL")); value != "" {
		cfg.Ollama.Model = value
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_OLLAMA_CONTEXT")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GANDER_OLLAMA_CONTEXT: %w", err)
		}
		cfg.Ollama.ContextWindow = parsed
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_MIN_CONFIDENCE")); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GANDER_MIN_CONFIDENCE: %w", err)
		}
		cfg.MinConfidence = parsed
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_DUAL_VALIDATION")); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GANDER_DUAL_VALIDATION: %w", err)
		}
		cfg.DualValidation = parsed
	}
	intVars := []struct {
		env    string
		target *int
	}{
		{"GANDER_EVIDENCE_BUDGET", &cfg.EvidenceBudget},
		{"GANDER_DOCUMENT_BUDGET", &cfg.DocumentBudget},
		{"GANDER_REASONING_BUDGET", &cfg.ReasoningBudget},
		{"GANDER_CANDIDATE_LIMIT", &cfg.CandidateLimit},
		{"GANDER_MAP_LIMIT", &cfg.MapLimit},
	}
	for _, v := range intVars {
		value := strings.TrimSpace(os.Getenv(v.env))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", v.env, err)
		}
		*v.target = parsed
	}
	durationVars := []struct {
		env    string
		target *time.Duration
	}{
		{"GANDER_CHAT_TIMEOUT", &cfg.ChatTimeout},
		{"GANDER_SCAN_TIMEOUT", &cfg.ScanTimeout},
		{"GANDER_SWEEP_INTERVAL", &cfg.SweepInterval},
		{"GANDER_GRACE_PERIOD", &cfg.GracePeriod},
		{"GANDER_SWEEP_COOLDOWN", &cfg.SweepCooldown},
		{"GANDER_TASK_BACKOFF", &cfg.TaskBackoff},
	}
	for _, v := range durationVars {
		value := strings.TrimSpace(os.Getenv(v.env))
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", v.env, err)
		}
		*v.target = parsed
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_TASK_RETRIES")); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Settings{}, fmt.Errorf("parse GANDER_TASK_RETRIES: %w", err)
		}
		cfg.TaskRetries = parsed
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_CATALOG_PATH")); value != "" {
		cfg.CatalogPath = value
	}
	if value := strings.TrimSpace(os.Getenv("GANDER_STORAGE_PATH")); value != "" {
		cfg.StoragePath = value
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Settings) Settings {
	defaults := Default()
	if cfg.AIProvider == "" {
		cfg.AIProvider = defaults.AIProvider
	}
	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		cfg.OpenAI.Model = defaults.OpenAI.Model
	}
	if strings.TrimSpace(cfg.Ollama.Endpoint) == "" {
		cfg.Ollama.Endpoint = defaults.Ollama.Endpoint
	}
	if strings.TrimSpace(cfg.Ollama.Model) == "" {
		cfg.Ollama.Model = defaults.Ollama.Model
	}
	if cfg.Ollama.ContextWindow <= 0 {
		cfg.Ollama.ContextWindow = defaults.Ollama.ContextWindow
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = defaults.MinConfidence
	}
	if cfg.EvidenceBudget <= 0 {
		cfg.EvidenceBudget = defaults.EvidenceBudget
	}
	if cfg.DocumentBudget <= 0 {
		cfg.DocumentBudget = defaults.DocumentBudget
	}
	if cfg.ReasoningBudget <= 0 {
		cfg.ReasoningBudget = defaults.ReasoningBudget
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaults.CandidateLimit
	}
	if cfg.MapLimit <= 0 {
		cfg.MapLimit = defaults.MapLimit
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = defaults.ChatTimeout
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaults.ScanTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaults.GracePeriod
	}
	if cfg.SweepCooldown <= 0 {
		cfg.SweepCooldown = defaults.SweepCooldown
	}
	if cfg.TaskBackoff <= 0 {
		cfg.TaskBackoff = defaults.TaskBackoff
	}
	if strings.TrimSpace(cfg.CatalogPath) == "" {
		cfg.CatalogPath = defaults.CatalogPath
	}
	if strings.TrimSpace(cfg.StoragePath) == "" {
		cfg.StoragePath = defaults.StoragePath
	}
	return cfg
}
