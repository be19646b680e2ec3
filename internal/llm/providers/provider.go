// File path: internal/llm/providers/provider.go
package providers

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// ChatRequest carries one model invocation. ForceJSON asks the backend to
// constrain output to a JSON object when it supports that; backends that
// cannot honour it still return plain text.
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int64
	ForceJSON   bool
}

// ChatResponse is the raw model output. Thinking carries the reasoning
// channel some local models emit alongside the response body; it is empty
// for backends without one.
type ChatResponse struct {
	Content  string
	Thinking string
}

// Provider is a chat-capable AI backend.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	CheckReachability(ctx context.Context) error
	Name() string
}

// ErrUnreachable reports that the backend could not be contacted at all, as
// opposed to the backend returning a bad response.
var ErrUnreachable = errors.New("provider unreachable")
