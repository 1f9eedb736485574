package chat

import (
	"fmt"
	"strings"

	"chatd/mcp"
	"chatd/model"
)

// buildToolPrompt creates minimal tool instructions. Keeping this short
// works across model sizes; long instruction blocks overload small models.
func buildToolPrompt(descriptors []mcp.ToolDescriptor) string {
	toolNames := make([]string, 0, len(descriptors))
	for _, desc := range descriptors {
		toolNames = append(toolNames, desc.Name)
	}

	return fmt.Sprintf(
		"TOOLS: %s\n\n"+
			"If you don't know something → use a tool.\n"+
			"Otherwise → answer directly.\n\n"+
			"Don't tell the user how you will use a tool. Just execute the tool call.\n\n"+
			"Summarize what you did in a short and concise way after you are done",
		strings.Join(toolNames, ", "),
	)
}

// titleInstruction asks the model to open with a tagged title. Only added
// when the chat has no persisted title yet.
const titleInstruction = "Start your reply with a short conversation title wrapped in <title></title> tags, then answer normally. " +
	"If you need to reason first, put that reasoning inside <thought></thought> tags."

// escapeQuotesForOllama escapes quotes in system prompts. Ollama has a known
// issue where unescaped quotes in system prompts break tool calling.
// Reference: https://github.com/ollama/ollama/issues/12751
func escapeQuotesForOllama(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

// buildModelMessages assembles the message list sent to the provider:
// tool instructions first (only when tools are present), then the behavioral
// system prompt, then the conversation.
func buildModelMessages(history []model.Message, systemPrompt string, descriptors []mcp.ToolDescriptor, wantTitle bool) []model.Message {
	var messages []model.Message
	hasTools := len(descriptors) > 0

	if hasTools {
		messages = append(messages, model.Message{
			Role:    model.RoleSystem,
			Content: buildToolPrompt(descriptors),
		})
	}

	if wantTitle {
		messages = append(messages, model.Message{
			Role:    model.RoleSystem,
			Content: titleInstruction,
		})
	}

	if systemPrompt != "" {
		content := systemPrompt
		if hasTools {
			content = escapeQuotesForOllama(content)
		}
		messages = append(messages, model.Message{
			Role:    model.RoleSystem,
			Content: content,
		})
	}

	messages = append(messages, history...)
	return messages
}
