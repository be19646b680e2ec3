// File path: internal/llm/providers/ollama.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/geekygoose/gander/internal/common"
)

// OllamaProvider speaks the native Ollama generate API. The native API is
// used instead of the OpenAI-compatible shim because it exposes the thinking
// channel, which the extraction layer falls back to when a reasoning model
// leaves the response body empty.
type OllamaProvider struct {
	httpClient    *http.Client
	baseURL       string
	model         string
	contextWindow int
}

// NewOllamaProvider builds a provider for a local Ollama daemon.
func NewOllamaProvider(endpoint, model string, contextWindow int, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = time.Minute
	}
	logger := common.Logger()
	logger.Info("llm: ollama provider configured", "endpoint", endpoint, "model", model, "context_window", contextWindow)
	return &OllamaProvider{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		model:         model,
		contextWindow: contextWindow,
	}
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Thinking string `json:"thinking"`
	Done     bool   `json:"done"`
}

func (o *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if o == nil {
		return ChatResponse{}, fmt.Errorf("ollama provider not configured")
	}
	payload := ollamaGenerateRequest{
		Model:  o.model,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if o.contextWindow > 0 {
		payload.Options["num_ctx"] = o.contextWindow
	}
	if req.MaxTokens > 0 {
		payload.Options["num_predict"] = req.MaxTokens
	}
	if req.ForceJSON {
		payload.Format = "json"
	}
	payload.System, payload.Prompt = flattenMessages(req.Messages)

	var out ollamaGenerateResponse
	if err := o.doRequest(ctx, http.MethodPost, "/api/generate", payload, &out); err != nil {
		common.Logger().Error("llm: ollama generate failed", "model", o.model, "error", err)
		return ChatResponse{}, err
	}
	return ChatResponse{Content: out.Response, Thinking: out.Thinking}, nil
}

// flattenMessages folds a chat exchange into the generate API's single
// system/prompt pair. Assistant turns are inlined as transcript context.
func flattenMessages(messages []Message) (system, prompt string) {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += msg.Content
		case RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
		default:
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(msg.Content)
		}
	}
	return system, b.String()
}

func (o *OllamaProvider) CheckReachability(ctx context.Context) error {
	if o == nil {
		return fmt.Errorf("ollama provider not configured")
	}
	if err := o.doRequest(ctx, http.MethodGet, "/api/tags", nil, nil); err != nil {
		return err
	}
	return nil
}

func (o *OllamaProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	endpoint := o.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama %s %s failed: %s", method, path, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (o *OllamaProvider) Name() string {
	return "ollama"
}
