// File path: internal/llm/providers/openai_client.go
package providers

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/geekygoose/gander/internal/common"
)

// OpenAIProvider speaks the OpenAI chat-completions API, either against the
// hosted service or any compatible endpoint.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider builds a provider for the given credential, model and
// optional base URL. An empty endpoint targets the hosted service.
func NewOpenAIProvider(apiKey, model, endpoint string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	logger := common.Logger()
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		logger.Info("llm: openai provider using custom endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	logger.Info("llm: openai provider configured", "model", model)
	return &OpenAIProvider{client: openai.NewClient(opts...), model: model}
}

func (o *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if o == nil {
		return ChatResponse{}, fmt.Errorf("openai provider not configured")
	}
	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}
	logger := common.Logger()
	if req.ForceJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err == nil {
			return firstChoice(resp)
		}
		// Compatible endpoints often reject response_format; retry plain.
		logger.Warn("llm: json response format rejected, retrying without", "model", o.model, "error", err)
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{}
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("llm: chat completion failed", "model", o.model, "error", err)
		return ChatResponse{}, fmt.Errorf("openai chat: %w", err)
	}
	return firstChoice(resp)
}

func firstChoice(resp *openai.ChatCompletion) (ChatResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai chat: no choices returned")
	}
	return ChatResponse{Content: resp.Choices[0].Message.Content}, nil
}

func (o *OpenAIProvider) CheckReachability(ctx context.Context) error {
	if o == nil {
		return fmt.Errorf("openai provider not configured")
	}
	if _, err := o.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}
