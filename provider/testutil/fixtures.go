package testutil

import (
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatd/mcp"
	"chatd/model"
)

// TestMessages returns a sample conversation for testing.
func TestMessages() []model.Message {
	return []model.Message{
		{
			Role:      model.RoleUser,
			Content:   "Hello, how are you?",
			Timestamp: time.Now(),
		},
		{
			Role:      model.RoleAssistant,
			Content:   "I'm doing well, thank you!",
			Timestamp: time.Now(),
		},
		{
			Role:      model.RoleUser,
			Content:   "Can you help me with a task?",
			Timestamp: time.Now(),
		},
	}
}

// SingleUserMessage returns a single user message for simple tests.
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{
			Role:      model.RoleUser,
			Content:   content,
			Timestamp: time.Now(),
		},
	}
}

// TestToolDescriptors returns sample qualified tool descriptors for testing.
func TestToolDescriptors() []mcp.ToolDescriptor {
	return []mcp.ToolDescriptor{
		{
			Name:        "weather::get_weather",
			Description: "Get the current weather for a location",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				Required: []string{"location"},
			},
			ProviderID:   "weather",
			ProviderName: "weather",
			Transport:    mcp.TransportSpawn,
		},
		{
			Name:        "math::calculate",
			Description: "Perform a mathematical calculation",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "The mathematical expression to evaluate",
					},
				},
				Required: []string{"expression"},
			},
			ProviderID:   "math",
			ProviderName: "math",
			Transport:    mcp.TransportSpawn,
		},
	}
}

// EmptyMessages returns an empty message slice for edge case testing.
func EmptyMessages() []model.Message {
	return []model.Message{}
}

// SystemMessage returns a system message for testing.
func SystemMessage(content string) model.Message {
	return model.Message{
		Role:      model.RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}
