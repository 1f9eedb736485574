package storage

import (
	"testing"
	"time"

	"chatd/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChatRoundTrip(t *testing.T) {
	store := newTestStore(t)

	chat, err := store.CreateChat("alice", "", "llama3.2")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	if _, err := store.AppendMessage("alice", chat.ID, model.Message{
		Role:    model.RoleUser,
		Content: "check inventory for A1",
	}); err != nil {
		t.Fatalf("AppendMessage (user) failed: %v", err)
	}

	assistant := model.Message{
		Role:      model.RoleAssistant,
		Content:   "In stock: 4 units",
		Reasoning: []string{"check stock"},
		ToolCalls: []model.TrackedToolCall{
			{
				Name:      "inventory::check",
				Arguments: map[string]any{"sku": "A1"},
				Status:    model.ToolCallCompleted,
				Result:    "4",
			},
		},
	}
	if _, err := store.AppendMessage("alice", chat.ID, assistant); err != nil {
		t.Fatalf("AppendMessage (assistant) failed: %v", err)
	}

	messages, err := store.LoadMessages("alice", chat.ID)
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Role != model.RoleUser || messages[1].Role != model.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", messages[0].Role, messages[1].Role)
	}

	got := messages[1]
	if len(got.Reasoning) != 1 || got.Reasoning[0] != "check stock" {
		t.Errorf("reasoning = %v, want [\"check stock\"]", got.Reasoning)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(got.ToolCalls))
	}
	if got.ToolCalls[0].Name != "inventory::check" || got.ToolCalls[0].Status != model.ToolCallCompleted {
		t.Errorf("tool call = %+v", got.ToolCalls[0])
	}
}

func TestChatScopeIsolation(t *testing.T) {
	store := newTestStore(t)

	chat, err := store.CreateChat("alice", "private", "llama3.2")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	if _, err := store.GetChat("bob", chat.ID); err == nil {
		t.Error("expected chat lookup under another scope to fail")
	}

	chats, err := store.ListChats("bob")
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(chats) != 0 {
		t.Errorf("bob sees %d chats, want 0", len(chats))
	}
}

func TestUpdateChatTitleIfUnset(t *testing.T) {
	store := newTestStore(t)

	chat, err := store.CreateChat("alice", "", "llama3.2")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	applied, err := store.UpdateChatTitleIfUnset("alice", chat.ID, "Billing Question")
	if err != nil {
		t.Fatalf("UpdateChatTitleIfUnset failed: %v", err)
	}
	if !applied {
		t.Error("expected the first title to apply")
	}

	applied, err = store.UpdateChatTitleIfUnset("alice", chat.ID, "Another Title")
	if err != nil {
		t.Fatalf("UpdateChatTitleIfUnset failed: %v", err)
	}
	if applied {
		t.Error("an existing title must not be overwritten")
	}

	loaded, err := store.GetChat("alice", chat.ID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if loaded.Title != "Billing Question" {
		t.Errorf("title = %q, want %q", loaded.Title, "Billing Question")
	}
}

func TestProviderCRUD(t *testing.T) {
	store := newTestStore(t)

	rec := ProviderRecord{
		ID:        "inventory",
		Scope:     "alice",
		Name:      "inventory",
		Transport: "spawn",
		Command:   "/usr/local/bin/inventory-server",
		Args:      []string{"--stdio"},
		Env:       map[string]string{"INV_MODE": "ro"},
		Enabled:   true,
	}
	if err := store.SaveProvider(rec); err != nil {
		t.Fatalf("SaveProvider failed: %v", err)
	}

	loaded, err := store.GetProvider("alice", "inventory")
	if err != nil {
		t.Fatalf("GetProvider failed: %v", err)
	}
	if loaded.Command != rec.Command || len(loaded.Args) != 1 || loaded.Env["INV_MODE"] != "ro" {
		t.Errorf("loaded = %+v", loaded)
	}

	// Upsert flips the enabled flag in place.
	rec.Enabled = false
	if err := store.SaveProvider(rec); err != nil {
		t.Fatalf("SaveProvider (update) failed: %v", err)
	}
	loaded, err = store.GetProvider("alice", "inventory")
	if err != nil {
		t.Fatalf("GetProvider failed: %v", err)
	}
	if loaded.Enabled {
		t.Error("enabled flag did not update")
	}

	records, err := store.ListProviders("alice")
	if err != nil {
		t.Fatalf("ListProviders failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d providers, want 1", len(records))
	}

	if err := store.DeleteProvider("alice", "inventory"); err != nil {
		t.Fatalf("DeleteProvider failed: %v", err)
	}
	if _, err := store.GetProvider("alice", "inventory"); err == nil {
		t.Error("expected deleted provider lookup to fail")
	}
}

func TestProviderLastConnectedAt(t *testing.T) {
	store := newTestStore(t)

	rec := ProviderRecord{
		ID:        "inventory",
		Scope:     "alice",
		Name:      "inventory",
		Transport: "spawn",
		Command:   "/usr/local/bin/inventory-server",
		Enabled:   true,
	}
	if err := store.SaveProvider(rec); err != nil {
		t.Fatalf("SaveProvider failed: %v", err)
	}

	loaded, err := store.GetProvider("alice", "inventory")
	if err != nil {
		t.Fatalf("GetProvider failed: %v", err)
	}
	if !loaded.LastConnectedAt.IsZero() {
		t.Errorf("never-connected provider has a connect stamp: %v", loaded.LastConnectedAt)
	}

	at := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	if err := store.TouchProviderConnected("alice", "inventory", at); err != nil {
		t.Fatalf("TouchProviderConnected failed: %v", err)
	}

	loaded, err = store.GetProvider("alice", "inventory")
	if err != nil {
		t.Fatalf("GetProvider failed: %v", err)
	}
	if loaded.LastConnectedAt.Unix() != at.Unix() {
		t.Errorf("last connected = %v, want %v", loaded.LastConnectedAt, at)
	}

	// The stamp survives a registration upsert.
	rec.LastConnectedAt = loaded.LastConnectedAt
	rec.Enabled = false
	if err := store.SaveProvider(rec); err != nil {
		t.Fatalf("SaveProvider (update) failed: %v", err)
	}
	loaded, err = store.GetProvider("alice", "inventory")
	if err != nil {
		t.Fatalf("GetProvider failed: %v", err)
	}
	if loaded.LastConnectedAt.Unix() != at.Unix() {
		t.Errorf("upsert lost the connect stamp: %v", loaded.LastConnectedAt)
	}
}
