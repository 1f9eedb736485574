package model

import "time"

// Role values for conversation history entries.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one conversation history entry. Tool-call and
// tool-result entries are appended by the turn orchestrator, never parsed out
// of the model's raw text.
type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	Reasoning []string          // completed <thought> segments, in emission order
	ToolCalls []TrackedToolCall // calls executed while producing this message
	Timestamp time.Time
}

// ToolCall is a provider-agnostic tool invocation request emitted by a model.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// Tracked tool call status values.
const (
	ToolCallExecuting = "executing"
	ToolCallCompleted = "completed"
	ToolCallError     = "error"
)

// TrackedToolCall records one tool invocation for the duration of a turn so
// the final assistant message can carry it as structured metadata.
type TrackedToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Status    string         `json:"status"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}
