// Package provider implements the LLM backends behind the model.Provider
// interface.
//
// chatd talks to multiple model backends (local Ollama, OpenRouter, OpenAI,
// Anthropic) through one provider-agnostic contract so the turn orchestrator
// never sees backend-specific types. The conversion functions in this package
// translate between chatd's message/tool-call types and each SDK's shapes.
//
// The Provider interface itself lives in the model package (model/provider.go)
// to avoid import cycles: backends import model, and the orchestrator consumes
// the interface without importing any concrete backend.
package provider

// ProviderType identifies the backend implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds backend-specific construction parameters.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama
}
