package provider

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"chatd/mcp"
	"chatd/model"
	"chatd/ollama"
)

// OllamaProvider wraps ollama.Client behind the Provider interface. It owns
// the conversions between chatd's message/tool types and the Ollama API
// types.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a backend for a local or remote Ollama server.
// An empty baseURL falls back to the client's default.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

// Chat streams a plain conversation; it is ChatWithTools with no tools.
func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools streams the conversation with the qualified tool set
// exposed. Tool calls arriving in the stream are converted to the
// provider-agnostic form before reaching the callback.
func (p *OllamaProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcp.ToolDescriptor, callback model.StreamCallback) error {
	ollamaMessages := ConvertToOllamaMessages(messages)

	var ollamaTools []api.Tool
	if len(tools) > 0 {
		ollamaTools = mcp.DescriptorsToOllama(tools)
	}

	ollamaCallback := func(chunk string, ollamaCalls []api.ToolCall) error {
		if callback == nil {
			return nil
		}
		return callback(chunk, ConvertToProviderToolCalls(ollamaCalls))
	}

	return p.client.ChatWithTools(ctx, ollamaMessages, ollamaTools, ollamaCallback)
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// GetDisplayName is the model name unchanged; Ollama has no vendor prefix.
func (p *OllamaProvider) GetDisplayName() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
