package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatd/config"
	"chatd/mcp"
	"chatd/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := NewService(store, nil, config.ToolsConfig{
		Enabled:                  true,
		MaxConcurrentConnections: 8,
		ConnectTimeoutSeconds:    5,
		CallTimeoutSeconds:       5,
	})
	return svc, store
}

// newDaemon runs a fake http-daemon tool provider serving one tool.
func newDaemon(t *testing.T, toolName string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/list-tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tools": []map[string]any{
				{"name": toolName, "description": "test tool"},
			},
		})
	})
	mux.HandleFunc("/call-tool", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"name":      req.Name,
			"arguments": req.Arguments,
			"output":    "ok",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func daemonRecord(id, name, baseURL string, autoConnect bool) storage.ProviderRecord {
	return storage.ProviderRecord{
		ID:          id,
		Name:        name,
		Transport:   string(mcp.TransportHTTPDaemon),
		BaseURL:     baseURL,
		AuthType:    mcp.AuthNone,
		Enabled:     true,
		AutoConnect: autoConnect,
	}
}

func TestEmptyScopeIsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ListTools(ctx, ""); err == nil {
		t.Error("expected error for empty scope")
	}
	if _, err := svc.ExecuteTool(ctx, "", "x::y", nil); err == nil {
		t.Error("expected error for empty scope")
	}
}

func TestCreateProviderConnectsWhenAutoConnect(t *testing.T) {
	svc, _ := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	rec := daemonRecord("files", "files", srv.URL, true)
	if err := svc.CreateProvider(ctx, "user-a", rec, ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	_, status, err := svc.GetProvider(ctx, "user-a", "files")
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if status != mcp.StatusConnected {
		t.Errorf("status = %s, want connected", status)
	}

	tools, err := svc.ListTools(ctx, "user-a")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "files::read_file" {
		t.Errorf("tools = %v, want files::read_file", tools)
	}
}

func TestCreateProviderWithoutAutoConnectStaysDisconnected(t *testing.T) {
	svc, _ := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	rec := daemonRecord("files", "files", srv.URL, false)
	if err := svc.CreateProvider(ctx, "user-a", rec, ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	_, status, err := svc.GetProvider(ctx, "user-a", "files")
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if status != mcp.StatusDisconnected {
		t.Errorf("status = %s, want disconnected", status)
	}

	// Connecting on demand works.
	if err := svc.Connect(ctx, "user-a", "files"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_, status, _ = svc.GetProvider(ctx, "user-a", "files")
	if status != mcp.StatusConnected {
		t.Errorf("status after Connect = %s, want connected", status)
	}
}

func TestBootstrapLoadsPersistedProviders(t *testing.T) {
	srv := newDaemon(t, "search")

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rec := daemonRecord("idx", "indexer", srv.URL, true)
	rec.Scope = "user-a"
	if err := store.SaveProvider(rec); err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}

	// A fresh service must pick the record up on the scope's first call.
	svc := NewService(store, nil, config.ToolsConfig{
		Enabled:                  true,
		MaxConcurrentConnections: 8,
		ConnectTimeoutSeconds:    5,
		CallTimeoutSeconds:       5,
	})

	tools, err := svc.ListTools(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "indexer::search" {
		t.Errorf("tools = %v, want indexer::search", tools)
	}
}

func TestScopesAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	if err := svc.CreateProvider(ctx, "user-a", daemonRecord("files", "files", srv.URL, true), ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	toolsB, err := svc.ListTools(ctx, "user-b")
	if err != nil {
		t.Fatalf("ListTools(user-b): %v", err)
	}
	if len(toolsB) != 0 {
		t.Errorf("user-b sees %d tools, want 0", len(toolsB))
	}
}

func TestUpdateProviderDisableDisconnects(t *testing.T) {
	svc, _ := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	if err := svc.CreateProvider(ctx, "user-a", daemonRecord("files", "files", srv.URL, true), ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	disabled := daemonRecord("files", "files", srv.URL, true)
	disabled.Enabled = false
	if err := svc.UpdateProvider(ctx, "user-a", disabled, ""); err != nil {
		t.Fatalf("UpdateProvider: %v", err)
	}

	rec, status, err := svc.GetProvider(ctx, "user-a", "files")
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if rec.Enabled {
		t.Error("record should be persisted as disabled")
	}
	if status != mcp.StatusDisconnected {
		t.Errorf("status = %s, want disconnected", status)
	}
}

func TestDeleteProviderRemovesEverything(t *testing.T) {
	svc, store := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	if err := svc.CreateProvider(ctx, "user-a", daemonRecord("files", "files", srv.URL, true), ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if err := svc.DeleteProvider(ctx, "user-a", "files"); err != nil {
		t.Fatalf("DeleteProvider: %v", err)
	}

	if _, err := store.GetProvider("user-a", "files"); err == nil {
		t.Error("record should be gone from the store")
	}
	tools, err := svc.ListTools(ctx, "user-a")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("tools after delete = %v, want none", tools)
	}
}

func TestExecuteToolRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	if err := svc.CreateProvider(ctx, "user-a", daemonRecord("files", "files", srv.URL, true), ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	res, err := svc.ExecuteTool(ctx, "user-a", "files::read_file", map[string]any{"path": "go.mod"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if !res.Success {
		t.Fatalf("call failed: %s", res.Error)
	}
	if res.Output != "ok" {
		t.Errorf("output = %q, want ok", res.Output)
	}
}

func TestExecuteToolUnknownProviderIsStructuredFailure(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.ExecuteTool(context.Background(), "user-a", "ghost::tool", nil)
	if err != nil {
		t.Fatalf("resolution failures must not surface as Go errors: %v", err)
	}
	if res.Success {
		t.Fatal("expected a failure result")
	}
	if res.Name != "ghost::tool" {
		t.Errorf("failure result name = %q, want the requested name", res.Name)
	}
}

func TestConnectStampsLastConnectedAt(t *testing.T) {
	svc, store := newTestService(t)
	srv := newDaemon(t, "read_file")
	ctx := context.Background()

	if err := svc.CreateProvider(ctx, "user-a", daemonRecord("files", "files", srv.URL, false), ""); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}

	rec, err := store.GetProvider("user-a", "files")
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if !rec.LastConnectedAt.IsZero() {
		t.Fatal("expected no connect stamp before the first connect")
	}

	if err := svc.Connect(ctx, "user-a", "files"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	rec, err = store.GetProvider("user-a", "files")
	if err != nil {
		t.Fatalf("GetProvider after connect: %v", err)
	}
	if rec.LastConnectedAt.IsZero() {
		t.Error("expected the connect time to be persisted")
	}
}

func TestScopeBootstrapRetriesAfterFailure(t *testing.T) {
	broken, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	broken.Close()

	svc := NewService(broken, nil, config.ToolsConfig{
		Enabled:                  true,
		MaxConcurrentConnections: 8,
		ConnectTimeoutSeconds:    5,
		CallTimeoutSeconds:       5,
	})

	ctx := context.Background()
	if _, err := svc.ListTools(ctx, "user-a"); err == nil {
		t.Fatal("expected a bootstrap failure against a closed store")
	}

	good, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { good.Close() })
	svc.store = good

	// A transient failure must not poison the scope.
	if _, err := svc.ListTools(ctx, "user-a"); err != nil {
		t.Fatalf("bootstrap did not retry after the first failure: %v", err)
	}
}
