package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"chatd/mcp"
	"chatd/model"
	"chatd/ollama"
)

// AnthropicProvider implements the Provider interface against the official
// Anthropic API using the Anthropic Go SDK.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	apiKey  string
}

func NewAnthropicProvider(baseURL, apiKey, model string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	var anthropicModel anthropic.Model
	if model == "" {
		anthropicModel = anthropic.ModelClaudeSonnet4_5_20250929
	} else {
		anthropicModel = anthropic.Model(model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// Chat delegates to ChatWithTools with no tools.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return p.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools streams a completion from the Anthropic API. Tool-use blocks
// are accumulated across the stream and surfaced once the message is
// complete, with qualified names restored.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcp.ToolDescriptor, callback model.StreamCallback) error {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	// Tool execution guidance leads the system blocks, user prompts follow.
	finalSystemPrompt := systemPrompt
	if len(tools) > 0 {
		toolInstructionBlock := anthropic.TextBlockParam{
			Text: buildDirectToolInstructions(tools),
		}
		finalSystemPrompt = append([]anthropic.TextBlockParam{toolInstructionBlock}, systemPrompt...)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: 4096, // required by the Anthropic API
	}
	if len(finalSystemPrompt) > 0 {
		params.System = finalSystemPrompt
	}
	if len(tools) > 0 {
		params.Tools = mcp.DescriptorsToAnthropic(sanitizeDescriptorNames(tools))
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			return fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if callback != nil {
					if err := callback(deltaVariant.Text, nil); err != nil {
						return err
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Anthropic streaming error: %w", err)
	}

	if callback != nil {
		toolCalls := extractAnthropicToolCalls(msg.Content)
		if len(toolCalls) > 0 {
			if err := callback("", toolCalls); err != nil {
				return err
			}
		}
	}

	return nil
}

// ListModels returns a curated list of Claude models; the Anthropic API has
// no models endpoint.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]ollama.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, ollama.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Size:         0,
			Provider:     "anthropic",
		})
	}
	return result, nil
}

func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

func (p *AnthropicProvider) GetDisplayName() string {
	return string(p.model)
}

func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// Ping sends a one-token message; the Anthropic API has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// convertToAnthropicMessages splits history into the message array and the
// system blocks the Anthropic API keeps separate.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})
		case model.RoleUser:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		case model.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)),
			)
		case model.RoleTool:
			// Tool results travel as user messages; the agnostic history
			// carries no tool_use ids.
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}

// extractAnthropicToolCalls pulls tool-use blocks out of a completed message
// and restores the qualified provider::tool names.
func extractAnthropicToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var toolCalls []model.ToolCall

	for _, block := range content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				continue
			}
			toolCalls = append(toolCalls, model.ToolCall{
				Name:      restoreQualifiedName(toolUse.Name),
				Arguments: args,
			})
		}
	}

	return toolCalls
}
