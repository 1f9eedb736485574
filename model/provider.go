package model

import (
	"context"

	"chatd/mcp"
	"chatd/ollama"
)

// Provider abstracts LLM provider implementations (Ollama, OpenAI, OpenRouter,
// Anthropic) using provider-agnostic types.
//
// This interface lives in the model package (not provider) to avoid import
// cycles: provider implementations import model, and the chat orchestrator
// consumes the interface without importing any concrete provider.
type Provider interface {
	// Chat sends messages and streams responses back via callback.
	Chat(ctx context.Context, messages []Message, callback StreamCallback) error

	// ChatWithTools sends messages with available tools and streams responses.
	// The callback receives text fragments or tool-call requests; chatd makes
	// no assumption about fragment granularity.
	ChatWithTools(ctx context.Context, messages []Message, tools []mcp.ToolDescriptor, callback StreamCallback) error

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)

	// GetModel returns the currently selected model name.
	GetModel() string

	// GetDisplayName returns the model name formatted for display.
	// For OpenRouter this strips the vendor prefix.
	GetDisplayName() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each chunk of streamed response. A chunk is
// either a text fragment (possibly containing partial inline tags) or one or
// more tool-call requests; both may be empty on a given invocation.
type StreamCallback func(chunk string, toolCalls []ToolCall) error
