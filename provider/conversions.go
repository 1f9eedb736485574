package provider

import (
	"encoding/json"

	"github.com/ollama/ollama/api"

	"chatd/model"
)

// ConvertToOllamaMessages maps conversation history to Ollama API messages.
// Only role and content travel; timestamps and tracked metadata stay on the
// chatd side.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// ConvertFromOllamaMessages maps Ollama API messages back to history entries.
// Timestamps are left zero; Ollama messages carry none.
func ConvertFromOllamaMessages(messages []api.Message) []model.Message {
	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = model.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// ParseToolArguments parses a JSON arguments string into a map. Used by the
// OpenAI-compatible backends, whose SDKs deliver arguments as raw JSON text.
// Unparseable input yields an empty map rather than an error.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// ConvertToProviderToolCalls converts Ollama tool calls to the
// provider-agnostic form. Returns nil for empty input.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts provider-agnostic tool calls to the
// Ollama form. Primarily used by tests.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}
