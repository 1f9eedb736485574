package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatd/config"
	"chatd/mcp"
	"chatd/model"
	"chatd/storage"
	"chatd/stream"
	"chatd/tools"
)

// Orchestrator executes user turns. It is safe for concurrent use across
// turns; each turn gets its own parser and history view, so no turn-local
// state is shared.
type Orchestrator struct {
	provider model.Provider
	tools    *tools.Service
	store    *storage.Store

	systemPrompt  string
	maxIterations int
}

func NewOrchestrator(provider model.Provider, toolService *tools.Service, store *storage.Store, systemPrompt string, maxIterations int) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	return &Orchestrator{
		provider:      provider,
		tools:         toolService,
		store:         store,
		systemPrompt:  systemPrompt,
		maxIterations: maxIterations,
	}
}

// turnState is the task-local state of one running turn. It is owned by a
// single goroutine for the turn's lifetime.
type turnState struct {
	scope  string
	chatID string

	history []model.Message
	parser  *stream.Parser
	sink    Sink

	tracked    []model.TrackedToolCall
	iterations int
}

// RunTurn executes one user turn: it appends the user message to the
// in-memory history, streams the model through the tag parser, services tool
// calls, and persists the transcript once the model stops. A stream failure
// produces a single error event and persists nothing.
func (o *Orchestrator) RunTurn(ctx context.Context, scope, chatID, userText string, sink Sink) error {
	if sink == nil {
		sink = func(Event) {}
	}

	chat, err := o.store.GetChat(scope, chatID)
	if err != nil {
		sink(Event{Type: EventError, ChatID: chatID, Content: err.Error()})
		return err
	}

	history, err := o.store.LoadMessages(scope, chatID)
	if err != nil {
		sink(Event{Type: EventError, ChatID: chatID, Content: err.Error()})
		return err
	}

	userMsg := model.Message{
		Role:      model.RoleUser,
		Content:   userText,
		Timestamp: time.Now(),
	}

	turn := &turnState{
		scope:   scope,
		chatID:  chatID,
		history: append(history, userMsg),
		sink:    sink,
	}
	turn.parser = stream.NewParser(stream.Events{
		OnContent: func(fragment string) {
			sink(Event{Type: EventContent, ChatID: chatID, Content: fragment})
		},
		OnReasoning: func(fragment string) {
			sink(Event{Type: EventReasoning, ChatID: chatID, Content: fragment})
		},
		OnTitle: func(title string) {
			sink(Event{Type: EventTitle, ChatID: chatID, Content: title})
		},
	})

	descriptors, err := o.tools.ListTools(ctx, scope)
	if err != nil {
		// Tool layer trouble hides the tools; it does not end the turn.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[CHAT] RunTurn: tool listing failed for scope '%s': %v", scope, err)
		}
		descriptors = nil
	}

	wantTitle := chat.Title == ""

	if err := o.generate(ctx, turn, descriptors, wantTitle); err != nil {
		// Partial parser state is discarded; nothing is persisted.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[CHAT] RunTurn: stream failed for chat %s: %v", chatID, err)
		}
		sink(Event{Type: EventError, ChatID: chatID, Content: err.Error()})
		return err
	}

	result := turn.parser.Finalize()

	if ctx.Err() != nil {
		// Aborted turns persist nothing; late tool results are discarded.
		sink(Event{Type: EventError, ChatID: chatID, Content: ctx.Err().Error()})
		return ctx.Err()
	}

	if _, err := o.store.AppendMessage(scope, chatID, userMsg); err != nil {
		sink(Event{Type: EventError, ChatID: chatID, Content: err.Error()})
		return err
	}

	assistant := model.Message{
		Role:      model.RoleAssistant,
		Content:   scrubLeakedToolCalls(result.FullResponse),
		Reasoning: result.Thoughts,
		ToolCalls: turn.tracked,
		Timestamp: time.Now(),
	}
	persisted, err := o.store.AppendMessage(scope, chatID, assistant)
	if err != nil {
		sink(Event{Type: EventError, ChatID: chatID, Content: err.Error()})
		return err
	}

	if result.Title != "" {
		if _, err := o.store.UpdateChatTitleIfUnset(scope, chatID, result.Title); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[CHAT] RunTurn: title update failed for chat %s: %v", chatID, err)
		}
	}

	sink(Event{Type: EventComplete, ChatID: chatID, Message: persisted})
	return nil
}

// generate runs one model pass and recurses for follow-up passes after tool
// calls. All passes feed the same parser instance so channel state survives
// the tool detour.
func (o *Orchestrator) generate(ctx context.Context, turn *turnState, descriptors []mcp.ToolDescriptor, wantTitle bool) error {
	// Past the iteration bound the model must answer with what it has.
	toolsAllowed := turn.iterations < o.maxIterations
	activeDescriptors := descriptors
	if !toolsAllowed {
		activeDescriptors = nil
	}

	var passText strings.Builder
	var pendingCalls []model.ToolCall

	callback := func(chunk string, toolCalls []model.ToolCall) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if chunk != "" {
			passText.WriteString(chunk)
			turn.parser.Feed(chunk)
		}
		if len(toolCalls) > 0 {
			pendingCalls = append(pendingCalls, toolCalls...)
		}
		return nil
	}

	messages := buildModelMessages(turn.history, o.systemPrompt, activeDescriptors, wantTitle)

	var err error
	if len(activeDescriptors) > 0 {
		err = o.provider.ChatWithTools(ctx, messages, activeDescriptors, callback)
	} else {
		err = o.provider.Chat(ctx, messages, callback)
	}
	if err != nil {
		return fmt.Errorf("model stream failed: %w", err)
	}

	if len(pendingCalls) == 0 {
		return nil
	}

	// Emit buffered text before the tool-call events so the sink sees
	// everything in production order.
	turn.parser.Flush()

	turn.iterations++
	if config.DebugLog != nil {
		config.DebugLog.Printf("[CHAT] generate: iteration %d with %d tool calls", turn.iterations, len(pendingCalls))
	}

	// The assistant history entry for this pass carries the pass text plus
	// the calls' names and arguments only.
	assistantEntry := model.Message{
		Role:    model.RoleAssistant,
		Content: passText.String(),
	}
	for _, call := range pendingCalls {
		assistantEntry.ToolCalls = append(assistantEntry.ToolCalls, model.TrackedToolCall{
			Name:      call.Name,
			Arguments: call.Arguments,
		})
	}
	turn.history = append(turn.history, assistantEntry)

	for _, call := range pendingCalls {
		o.executeCall(ctx, turn, call)
	}

	// Follow-up pass over the updated history; nested tool calls recurse
	// through the same path.
	return o.generate(ctx, turn, descriptors, false)
}

// executeCall runs one tool call, emits its event pair and appends the
// result to the turn history. The tracked entry is appended as executing
// when the call event fires and settles to completed or error with the
// result. Failures never abort the turn; the model sees them on the next
// pass.
func (o *Orchestrator) executeCall(ctx context.Context, turn *turnState, call model.ToolCall) {
	idx := len(turn.tracked)
	turn.tracked = append(turn.tracked, model.TrackedToolCall{
		Name:      call.Name,
		Arguments: call.Arguments,
		Status:    model.ToolCallExecuting,
	})

	turn.sink(Event{Type: EventToolCall, ChatID: turn.chatID, ToolCall: &call})

	result, err := o.tools.ExecuteTool(ctx, turn.scope, call.Name, call.Arguments)
	if err != nil {
		result = mcp.FailureResult(call.Name, call.Arguments, err.Error())
	}

	turn.sink(Event{Type: EventToolResult, ChatID: turn.chatID, ToolResult: result})

	tracked := &turn.tracked[idx]
	if result.Success {
		tracked.Status = model.ToolCallCompleted
		tracked.Result = result.Output
	} else {
		tracked.Status = model.ToolCallError
		tracked.Error = result.Error
	}

	turn.history = append(turn.history, model.Message{
		Role:    model.RoleTool,
		Content: encodeToolResult(result),
	})
}

// encodeToolResult renders a tool result for the model's consumption.
func encodeToolResult(result *mcp.ToolResult) string {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to encode tool result: %v"}`, err)
	}
	return string(encoded)
}
