// Package llm provides the language model clients used by the planner.
package llm

import (
	"context"
	"fmt"

	"hdrp/internal/config"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Request is a completion request. JSONOutput asks the backend for a strict
// JSON object response where the API supports it.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSONOutput  bool
}

// Client is implemented by each model backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the configured backend.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
