// Package chat drives one user turn end to end: it streams the model's
// output through the tag demultiplexer, detours through the tool service
// when the model requests a tool, feeds results back for follow-up
// generation, and persists the finished transcript.
package chat

import (
	"chatd/mcp"
	"chatd/model"
)

// EventType tags events sent to the caller's sink.
type EventType string

const (
	EventTitle      EventType = "title"
	EventReasoning  EventType = "reasoning"
	EventContent    EventType = "content"
	EventToolCall   EventType = "toolCall"
	EventToolResult EventType = "toolResult"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

// Event is one ordered emission of a turn. Every event carries the owning
// conversation id; the payload fields are populated per type.
type Event struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chatId"`

	// Content holds the fragment for content/reasoning events, the title for
	// title events and the message for error events.
	Content string `json:"content,omitempty"`

	ToolCall   *model.ToolCall `json:"toolCall,omitempty"`
	ToolResult *mcp.ToolResult `json:"toolResult,omitempty"`

	// Message is the persisted assistant message on complete events.
	Message *model.Message `json:"message,omitempty"`
}

// Sink receives a turn's events in emission order. It is called from the
// turn's own goroutine; a slow sink slows the turn.
type Sink func(Event)
