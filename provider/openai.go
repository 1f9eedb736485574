package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chatd/mcp"
	"chatd/model"
	"chatd/ollama"
)

// OpenAIProvider implements the Provider interface over the official OpenAI
// Go SDK.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

// NewOpenAIProvider creates an OpenAI backend. The API key is required; the
// base URL and model fall back to sensible defaults.
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// Chat delegates to ChatWithTools with no tools.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools streams a completion. Structured tool calls surface through
// the accumulator; as a fallback, tool calls the model leaked as plain text
// are recovered after the stream ends.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcp.ToolDescriptor, callback model.StreamCallback) error {
	messagesWithInstructions := messages
	if len(tools) > 0 {
		toolInstruction := model.Message{
			Role:    model.RoleSystem,
			Content: buildDirectToolInstructions(tools),
		}
		messagesWithInstructions = append([]model.Message{toolInstruction}, messages...)
	}

	openaiMessages := ConvertToOpenAIMessages(messagesWithInstructions)

	params := openai.ChatCompletionNewParams{
		Messages: openaiMessages,
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = mcp.DescriptorsToOpenAI(sanitizeDescriptorNames(tools))
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	var apiToolCallsDetected bool
	var contentBuilder strings.Builder

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			apiToolCallsDetected = true
			if callback != nil {
				toolCall := model.ToolCall{
					Name:      restoreQualifiedName(tool.Name),
					Arguments: ParseToolArguments(tool.Arguments),
				}
				if err := callback("", []model.ToolCall{toolCall}); err != nil {
					return err
				}
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			content := chunk.Choices[0].Delta.Content
			contentBuilder.WriteString(content)
			if callback != nil {
				if err := callback(content, nil); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("OpenAI streaming error: %w", err)
	}

	// Safety net for models that emit tool calls as plain text.
	if !apiToolCallsDetected && callback != nil {
		fullContent := contentBuilder.String()

		if leakedCalls := ParseLeakedJSONToolCalls(fullContent); len(leakedCalls) > 0 {
			for i := range leakedCalls {
				leakedCalls[i].Name = restoreQualifiedName(leakedCalls[i].Name)
			}
			if err := callback("", leakedCalls); err != nil {
				return err
			}
		}
		if leakedCalls := ParseLeakedXMLToolCalls(fullContent); len(leakedCalls) > 0 {
			for i := range leakedCalls {
				leakedCalls[i].Name = restoreQualifiedName(leakedCalls[i].Name)
			}
			if err := callback("", leakedCalls); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]ollama.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, ollama.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Size:         0, // not reported by the API
			Provider:     "openai",
		})
	}
	return result, nil
}

func (p *OpenAIProvider) GetModel() string {
	return p.model
}

func (p *OpenAIProvider) GetDisplayName() string {
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping lists models; OpenAI has no dedicated health endpoint.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}
