package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatd/model"
)

// Chat is one persisted conversation owned by a scope.
type Chat struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateChat creates an empty conversation for the scope. An empty title is
// allowed; the first turn may fill it in from an extracted stream title.
func (s *Store) CreateChat(scope, title, modelName string) (*Chat, error) {
	now := time.Now()
	chat := &Chat{
		ID:        uuid.New().String(),
		Scope:     scope,
		Title:     title,
		Model:     modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO chats (id, scope, title, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.Scope, chat.Title, chat.Model, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *Store) GetChat(scope, chatID string) (*Chat, error) {
	row := s.db.QueryRow(
		`SELECT id, scope, title, model, created_at, updated_at FROM chats WHERE id = ? AND scope = ?`,
		chatID, scope,
	)

	var chat Chat
	err := row.Scan(&chat.ID, &chat.Scope, &chat.Title, &chat.Model, &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chat %s not found", chatID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return &chat, nil
}

// ListChats returns the scope's conversations, most recently updated first.
func (s *Store) ListChats(scope string) ([]Chat, error) {
	rows, err := s.db.Query(
		`SELECT id, scope, title, model, created_at, updated_at FROM chats WHERE scope = ? ORDER BY updated_at DESC`,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Scope, &chat.Title, &chat.Model, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// UpdateChatTitleIfUnset sets the title only when the persisted title is
// still empty, so a stream-extracted title never overwrites a real one.
// It reports whether the title was applied.
func (s *Store) UpdateChatTitleIfUnset(scope, chatID, title string) (bool, error) {
	if title == "" {
		return false, nil
	}
	res, err := s.db.Exec(
		`UPDATE chats SET title = ?, updated_at = ? WHERE id = ? AND scope = ? AND title = ''`,
		title, time.Now(), chatID, scope,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update chat title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) DeleteChat(scope, chatID string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE chat_id IN (SELECT id FROM chats WHERE id = ? AND scope = ?)`, chatID, scope); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM chats WHERE id = ? AND scope = ?`, chatID, scope); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

// AppendMessage persists one message at the end of a conversation and bumps
// the chat's update time. The message ID is assigned here if empty.
func (s *Store) AppendMessage(scope, chatID string, msg model.Message) (*model.Message, error) {
	if _, err := s.GetChat(scope, chatID); err != nil {
		return nil, err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.ChatID = chatID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	reasoning, err := json.Marshal(msg.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reasoning: %w", err)
	}
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool calls: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO messages (id, chat_id, role, content, reasoning, tool_calls, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, string(reasoning), string(toolCalls), msg.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, msg.Timestamp, chatID); err != nil {
		return nil, fmt.Errorf("failed to touch chat: %w", err)
	}

	return &msg, nil
}

// LoadMessages returns a conversation's messages in append order.
func (s *Store) LoadMessages(scope, chatID string) ([]model.Message, error) {
	if _, err := s.GetChat(scope, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, chat_id, role, content, reasoning, tool_calls, created_at FROM messages WHERE chat_id = ? ORDER BY created_at ASC, id ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var reasoning, toolCalls string

		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &reasoning, &toolCalls, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if err := json.Unmarshal([]byte(reasoning), &msg.Reasoning); err != nil {
			return nil, fmt.Errorf("corrupt reasoning for message %s: %w", msg.ID, err)
		}
		if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("corrupt tool calls for message %s: %w", msg.ID, err)
		}

		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
