// Package tools is the façade between the turn orchestrator and the
// tool-provider connection layer. It owns one connection manager per scope,
// initialized lazily on the scope's first tool-related call, and translates
// persisted provider records into live registrations.
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatd/config"
	"chatd/mcp"
	"chatd/storage"
)

// Service multiplexes tool access across scopes. Safe for concurrent use.
type Service struct {
	mu     sync.Mutex
	scopes map[string]*scopeState

	store *storage.Store
	creds *config.CredentialStore
	cfg   config.ToolsConfig
}

// scopeState carries one scope's manager. Its mutex serializes
// initialization so concurrent first calls share one bootstrap; a failed
// bootstrap leaves manager nil and the next call retries.
type scopeState struct {
	mu      sync.Mutex
	manager *mcp.Manager
}

func NewService(store *storage.Store, creds *config.CredentialStore, cfg config.ToolsConfig) *Service {
	return &Service{
		scopes: make(map[string]*scopeState),
		store:  store,
		creds:  creds,
		cfg:    cfg,
	}
}

// manager returns the scope's connection manager, bootstrapping it on first
// use: registrations are loaded from the store and auto-connect providers
// are connected.
func (s *Service) manager(ctx context.Context, scope string) (*mcp.Manager, error) {
	if scope == "" {
		return nil, fmt.Errorf("tool access requires a scope")
	}

	s.mu.Lock()
	state, ok := s.scopes[scope]
	if !ok {
		state = &scopeState{}
		s.scopes[scope] = state
	}
	s.mu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.manager == nil {
		manager, err := s.bootstrapScope(ctx, scope)
		if err != nil {
			return nil, err
		}
		state.manager = manager
	}
	return state.manager, nil
}

func (s *Service) bootstrapScope(ctx context.Context, scope string) (*mcp.Manager, error) {
	manager := mcp.NewManager(s.cfg)

	records, err := s.store.ListProviders(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers for scope %s: %w", scope, err)
	}

	for _, rec := range records {
		provider, err := s.recordToProvider(scope, rec)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[TOOLS] bootstrap: skipping provider '%s': %v", rec.ID, err)
			}
			continue
		}
		if err := manager.Register(provider); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[TOOLS] bootstrap: failed to register '%s': %v", rec.ID, err)
			}
			continue
		}
		if provider.Enabled && provider.AutoConnect {
			if err := manager.Connect(ctx, provider.ID); err != nil {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[TOOLS] bootstrap: auto-connect failed for '%s': %v", provider.ID, err)
				}
			} else {
				s.stampConnected(scope, provider.ID)
			}
		}
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[TOOLS] bootstrap: scope '%s' initialized with %d providers", scope, len(records))
	}
	return manager, nil
}

// stampConnected persists the last successful connect time. Failures are
// logged only; the live session is already established.
func (s *Service) stampConnected(scope, id string) {
	if err := s.store.TouchProviderConnected(scope, id, time.Now()); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[TOOLS] failed to stamp connect time for '%s': %v", id, err)
	}
}

// recordToProvider builds the manager's working copy from a persisted record,
// resolving any stored secret from the credential store.
func (s *Service) recordToProvider(scope string, rec storage.ProviderRecord) (mcp.ToolProvider, error) {
	provider := mcp.ToolProvider{
		ID:        rec.ID,
		Name:      rec.Name,
		Transport: mcp.TransportKind(rec.Transport),

		Command: rec.Command,
		Args:    rec.Args,
		Env:     rec.Env,

		BaseURL: rec.BaseURL,
		SubPaths: mcp.SubPaths{
			Health:        rec.SubPaths["health"],
			CallTool:      rec.SubPaths["call_tool"],
			ListTools:     rec.SubPaths["list_tools"],
			ListResources: rec.SubPaths["list_resources"],
		},

		AuthType: rec.AuthType,

		ConnectTimeout: time.Duration(rec.ConnectTimeoutSecs) * time.Second,
		CallTimeout:    time.Duration(rec.CallTimeoutSecs) * time.Second,
		MaxRetries:     rec.MaxRetries,
		RetryDelay:     time.Duration(rec.RetryDelayMs) * time.Millisecond,

		Enabled:       rec.Enabled,
		AutoConnect:   rec.AutoConnect,
		LastConnected: rec.LastConnectedAt,
	}

	if s.creds != nil && rec.AuthType != mcp.AuthNone && rec.AuthType != "" {
		secret, err := s.creds.Get(credentialKey(scope, rec.ID))
		if err != nil {
			return mcp.ToolProvider{}, fmt.Errorf("failed to load credential: %w", err)
		}
		switch rec.AuthType {
		case mcp.AuthAPIKey:
			provider.APIKey = secret
		case mcp.AuthBearer, mcp.AuthOAuth:
			provider.BearerToken = secret
		}
	}

	return provider, nil
}

func credentialKey(scope, providerID string) string {
	return scope + "/" + providerID
}

// CreateProvider persists a registration, stores its secret, registers it
// with the scope's manager and connects it when enabled and auto-connect.
func (s *Service) CreateProvider(ctx context.Context, scope string, rec storage.ProviderRecord, secret string) error {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return err
	}

	rec.Scope = scope
	if err := s.store.SaveProvider(rec); err != nil {
		return err
	}

	if secret != "" && s.creds != nil {
		if err := s.creds.Set(credentialKey(scope, rec.ID), secret); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
	}

	provider, err := s.recordToProvider(scope, rec)
	if err != nil {
		return err
	}
	if err := manager.Register(provider); err != nil {
		return err
	}

	if provider.Enabled && provider.AutoConnect {
		if err := manager.Connect(ctx, provider.ID); err != nil {
			return err
		}
		s.stampConnected(scope, provider.ID)
	}
	return nil
}

// UpdateProvider persists changes and applies the connect/disconnect side
// effects implied by the enabled and auto-connect flags.
func (s *Service) UpdateProvider(ctx context.Context, scope string, rec storage.ProviderRecord, secret string) error {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return err
	}

	previous, err := s.store.GetProvider(scope, rec.ID)
	if err != nil {
		return err
	}

	rec.Scope = scope
	rec.CreatedAt = previous.CreatedAt
	if err := s.store.SaveProvider(rec); err != nil {
		return err
	}

	if secret != "" && s.creds != nil {
		if err := s.creds.Set(credentialKey(scope, rec.ID), secret); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
	}

	provider, err := s.recordToProvider(scope, rec)
	if err != nil {
		return err
	}
	if err := manager.Update(ctx, provider); err != nil {
		return err
	}

	switch {
	case previous.Enabled && !rec.Enabled:
		manager.Disconnect(ctx, rec.ID)
	case rec.Enabled && rec.AutoConnect:
		if err := manager.Connect(ctx, rec.ID); err != nil {
			return err
		}
		s.stampConnected(scope, rec.ID)
	}
	return nil
}

// DeleteProvider removes the registration, its live session and its secret.
func (s *Service) DeleteProvider(ctx context.Context, scope, id string) error {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return err
	}

	manager.Unregister(ctx, id)

	if s.creds != nil {
		if err := s.creds.Delete(credentialKey(scope, id)); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[TOOLS] DeleteProvider: credential cleanup for '%s' failed: %v", id, err)
		}
	}

	return s.store.DeleteProvider(scope, id)
}

// GetProvider returns the persisted record plus live status.
func (s *Service) GetProvider(ctx context.Context, scope, id string) (*storage.ProviderRecord, mcp.ProviderStatus, error) {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return nil, mcp.StatusDisconnected, err
	}
	rec, err := s.store.GetProvider(scope, id)
	if err != nil {
		return nil, mcp.StatusDisconnected, err
	}
	status, _ := manager.Status(id)
	return rec, status, nil
}

func (s *Service) ListProviders(ctx context.Context, scope string) ([]storage.ProviderRecord, error) {
	if _, err := s.manager(ctx, scope); err != nil {
		return nil, err
	}
	return s.store.ListProviders(scope)
}

// Connect connects one provider on demand, subject to the admission gate.
func (s *Service) Connect(ctx context.Context, scope, id string) error {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return err
	}
	if err := manager.Connect(ctx, id); err != nil {
		return err
	}
	s.stampConnected(scope, id)
	return nil
}

func (s *Service) Disconnect(ctx context.Context, scope, id string) (bool, error) {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return false, err
	}
	return manager.Disconnect(ctx, id), nil
}

// ListTools returns the scope's flattened, provider-qualified tool list.
func (s *Service) ListTools(ctx context.Context, scope string) ([]mcp.ToolDescriptor, error) {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return nil, err
	}
	return manager.ListAvailableTools(ctx), nil
}

func (s *Service) ListResources(ctx context.Context, scope string) ([]mcp.ResourceDescriptor, error) {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return nil, err
	}
	return manager.ListAvailableResources(ctx), nil
}

// ExecuteTool resolves the (possibly legacy unqualified) name and invokes the
// tool. The result is always structured; a failed resolution or call comes
// back as success=false, never as a Go error.
func (s *Service) ExecuteTool(ctx context.Context, scope, name string, args map[string]any) (*mcp.ToolResult, error) {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return nil, err
	}
	return manager.CallTool(ctx, name, args), nil
}

// HealthCheck pings one provider and updates its status on failure.
func (s *Service) HealthCheck(ctx context.Context, scope, id string) error {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return err
	}
	return manager.HealthCheck(ctx, id)
}

// HealthCheckAll pings every live session in the scope. The map holds one
// entry per checked provider; nil means healthy.
func (s *Service) HealthCheckAll(ctx context.Context, scope string) (map[string]error, error) {
	manager, err := s.manager(ctx, scope)
	if err != nil {
		return nil, err
	}
	return manager.HealthCheckAll(ctx), nil
}

// Shutdown disconnects every scope's providers in parallel.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	managers := make([]*mcp.Manager, 0, len(s.scopes))
	for _, state := range s.scopes {
		if state.manager != nil {
			managers = append(managers, state.manager)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, manager := range managers {
		wg.Add(1)
		go func(m *mcp.Manager) {
			defer wg.Done()
			m.Shutdown(ctx)
		}(manager)
	}
	wg.Wait()
}
