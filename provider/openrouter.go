package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"chatd/config"
	"chatd/mcp"
	"chatd/model"
	"chatd/ollama"
)

// OpenRouterProvider implements the Provider interface against OpenRouter's
// OpenAI-compatible API, reusing the official OpenAI Go SDK with a custom
// base URL.
type OpenRouterProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

func NewOpenRouterProvider(baseURL, apiKey, model string) (*OpenRouterProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if model == "" {
		model = "meta-llama/llama-3.2-90b-instruct"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenRouterProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// shouldSkipToolInstructions reports whether a model breaks with explicit
// tool instructions. Most models benefit from them, but some understand
// tools natively and leak XML when prompted explicitly.
func shouldSkipToolInstructions(modelName string) bool {
	modelLower := strings.ToLower(modelName)

	skipInstructions := []string{
		"qwen", // leaks XML with instructions, works natively without them
	}
	for _, prefix := range skipInstructions {
		if strings.Contains(modelLower, prefix) {
			return true
		}
	}
	return false
}

// Chat delegates to ChatWithTools with no tools.
func (p *OpenRouterProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools streams a completion through OpenRouter. Qualified tool
// names are sanitized for the API and restored on every returned call.
func (p *OpenRouterProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcp.ToolDescriptor, callback model.StreamCallback) error {
	messagesWithInstructions := messages
	if len(tools) > 0 && !shouldSkipToolInstructions(p.model) {
		toolInstruction := model.Message{
			Role:    model.RoleSystem,
			Content: buildDirectToolInstructions(tools),
		}
		messagesWithInstructions = append([]model.Message{toolInstruction}, messages...)
	}

	if config.DebugLog != nil && len(tools) > 0 {
		if shouldSkipToolInstructions(p.model) {
			config.DebugLog.Printf("[OpenRouter] Model '%s': skipping tool instructions (native tool understanding)", p.model)
		} else {
			config.DebugLog.Printf("[OpenRouter] Model '%s': adding tool instructions", p.model)
		}
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
		return fmt.Errorf("OpenRouter streaming error: %w", err)
	}

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

// ListModels strips the vendor prefix for display but keeps the full id for
// API calls.
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenRouter models: %w", err)
	}

	result := make([]ollama.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, ollama.ModelInfo{
			Name:         stripProviderPrefix(m.ID),
			InternalName: m.ID,
			Size:         0,
			Provider:     "openrouter",
		})
	}
	return result, nil
}

func (p *OpenRouterProvider) GetModel() string {
	return p.model
}

// GetDisplayName drops the vendor prefix:
// "qwen/qwen3-coder:free" → "qwen3-coder:free".
func (p *OpenRouterProvider) GetDisplayName() string {
	return stripProviderPrefix(p.model)
}

func (p *OpenRouterProvider) SetModel(model string) {
	p.model = model
}

func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenRouter ping failed: %w", err)
	}
	return nil
}

// stripProviderPrefix removes the vendor segment from an OpenRouter model id.
func stripProviderPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}

// ConvertToOpenAIMessages maps history entries to the OpenAI message union.
// Tool results travel as user messages; the OpenAI tool-message form needs a
// call id that chatd's provider-agnostic history does not carry.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleUser:
			result[i] = openai.UserMessage(msg.Content)
		case model.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		case model.RoleTool:
			result[i] = openai.UserMessage(msg.Content)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}
