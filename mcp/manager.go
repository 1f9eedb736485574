package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatd/config"
)

// entry is the manager's per-provider arena slot. The registration, the live
// session and the capability snapshot travel together under the manager lock.
type entry struct {
	provider ToolProvider
	status   ProviderStatus
	session  *Session
	caps     *Capabilities
	lastErr  string
}

// Manager owns every tool-provider registration and its live session. All
// state lives in one lock-guarded arena; sessions are created and torn down
// only through the manager so the concurrent-connection gate stays accurate.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	maxConnections int
	enabled        bool

	connectTimeout time.Duration
	callTimeout    time.Duration
}

func NewManager(cfg config.ToolsConfig) *Manager {
	return &Manager{
		entries:        make(map[string]*entry),
		maxConnections: cfg.MaxConcurrentConnections,
		enabled:        cfg.Enabled,
		connectTimeout: time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		callTimeout:    time.Duration(cfg.CallTimeoutSeconds) * time.Second,
	}
}

// Register adds a provider to the arena in the disconnected state. Re-using
// an existing ID is an error; update the registration instead.
func (m *Manager) Register(p ToolProvider) error {
	if p.ID == "" {
		return fmt.Errorf("provider registration requires an id")
	}
	if p.Transport != TransportSpawn && p.Transport != TransportHTTPDaemon {
		return fmt.Errorf("provider %s: unknown transport %q", p.ID, p.Transport)
	}
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = m.connectTimeout
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = m.callTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[p.ID]; exists {
		return fmt.Errorf("provider %s is already registered", p.ID)
	}

	m.entries[p.ID] = &entry{
		provider: p,
		status:   StatusDisconnected,
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Register: provider '%s' (%s transport)", p.ID, p.Transport)
	}
	return nil
}

// Update replaces a provider's registration. A connected provider is torn
// down first so the next connect uses the new parameters.
func (m *Manager) Update(ctx context.Context, p ToolProvider) error {
	m.mu.RLock()
	_, exists := m.entries[p.ID]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("provider %s is not registered", p.ID)
	}

	m.Disconnect(ctx, p.ID)

	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = m.connectTimeout
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = m.callTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ent, ok := m.entries[p.ID]
	if !ok {
		return fmt.Errorf("provider %s is not registered", p.ID)
	}
	ent.provider = p
	ent.status = StatusDisconnected
	ent.lastErr = ""
	return nil
}

// Unregister disconnects and removes a provider. Removing an unknown ID is a
// no-op.
func (m *Manager) Unregister(ctx context.Context, id string) {
	m.Disconnect(ctx, id)

	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Unregister: provider '%s' removed", id)
	}
}

// Provider returns the registration working copy for an ID.
func (m *Manager) Provider(id string) (ToolProvider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ent, ok := m.entries[id]
	if !ok {
		return ToolProvider{}, false
	}
	return ent.provider, true
}

// Providers returns all registrations with their current status.
func (m *Manager) Providers() map[string]ProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ProviderStatus, len(m.entries))
	for id, ent := range m.entries {
		out[id] = ent.status
	}
	return out
}

// Status reports a provider's connection status and last error, if any.
func (m *Manager) Status(id string) (ProviderStatus, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ent, ok := m.entries[id]
	if !ok {
		return StatusDisconnected, ""
	}
	return ent.status, ent.lastErr
}

// Capabilities returns the immutable capability snapshot taken at connect
// time, or nil when the provider has never connected.
func (m *Manager) Capabilities(id string) *Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ent, ok := m.entries[id]; ok {
		return ent.caps
	}
	return nil
}

// activeCountLocked counts sessions holding a connection slot. Connecting
// entries count: the slot is reserved before the handshake starts.
func (m *Manager) activeCountLocked() int {
	n := 0
	for _, ent := range m.entries {
		if ent.status == StatusConnected || ent.status == StatusConnecting {
			n++
		}
	}
	return n
}

// Connect establishes a session for the provider. The connection slot is
// reserved under the lock before any I/O so the concurrent-connection limit
// can never be oversubscribed; the handshake itself runs without the lock.
// Hitting the limit fails fast rather than queueing.
func (m *Manager) Connect(ctx context.Context, id string) error {
	if !m.enabled {
		return fmt.Errorf("tool system is disabled")
	}
	if id == InternalProviderID {
		// The internal pseudo-provider has no transport. It is always
		// reachable and holds no connection slot.
		return nil
	}

	m.mu.Lock()
	ent, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("provider %s is not registered", id)
	}
	if ent.status == StatusConnected || ent.status == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	if m.maxConnections > 0 && m.activeCountLocked() >= m.maxConnections {
		m.mu.Unlock()
		return fmt.Errorf("connection limit reached (%d): cannot connect provider %s", m.maxConnections, id)
	}
	ent.status = StatusConnecting
	ent.lastErr = ""
	provider := ent.provider
	m.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Connect: provider '%s' via %s", id, provider.Transport)
	}

	var session *Session
	var caps *Capabilities
	var err error

	switch provider.Transport {
	case TransportSpawn:
		session, caps, err = connectSpawn(ctx, provider)
	case TransportHTTPDaemon:
		session, caps, err = connectHTTPDaemon(ctx, provider)
	default:
		err = fmt.Errorf("provider %s: unknown transport %q", id, provider.Transport)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The entry may have been unregistered during the handshake.
	ent, ok = m.entries[id]
	if !ok {
		if session != nil {
			go m.teardownSession(context.Background(), session)
		}
		return fmt.Errorf("provider %s was removed while connecting", id)
	}

	if err != nil {
		ent.status = StatusError
		ent.lastErr = err.Error()
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] Connect: provider '%s' failed: %v", id, err)
		}
		return err
	}

	ent.status = StatusConnected
	ent.session = session
	ent.caps = caps
	ent.provider.LastConnected = time.Now()
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Connect: provider '%s' connected with %d tools, %d resources",
			id, len(caps.Tools), len(caps.Resources))
	}
	return nil
}

// Disconnect tears down a provider's session. It is idempotent: the return
// value reports whether a live session was actually closed.
func (m *Manager) Disconnect(ctx context.Context, id string) bool {
	if id == InternalProviderID {
		return false
	}

	m.mu.Lock()
	ent, ok := m.entries[id]
	if !ok || ent.session == nil {
		if ok {
			ent.status = StatusDisconnected
		}
		m.mu.Unlock()
		return false
	}
	session := ent.session
	ent.session = nil
	ent.status = StatusDisconnected
	ent.lastErr = ""
	m.mu.Unlock()

	m.teardownSession(ctx, session)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Disconnect: provider '%s' disconnected", id)
	}
	return true
}

func (m *Manager) teardownSession(ctx context.Context, session *Session) {
	switch session.Transport {
	case TransportSpawn:
		closeSpawnSession(ctx, session)
	case TransportHTTPDaemon:
		session.HTTPClient.CloseIdleConnections()
	}
}

// HealthCheck verifies a connected provider is still reachable. Spawn
// sessions ping over the MCP channel; HTTP sessions re-probe the health
// endpoint. A failed check flips the provider to the error status but keeps
// the session for a later reconnect decision by the caller.
func (m *Manager) HealthCheck(ctx context.Context, id string) error {
	if id == InternalProviderID {
		return nil
	}

	m.mu.RLock()
	ent, ok := m.entries[id]
	if !ok {
		m.mu.RUnlock()
		return fmt.Errorf("provider %s is not registered", id)
	}
	if ent.status != StatusConnected || ent.session == nil {
		status := ent.status
		m.mu.RUnlock()
		return fmt.Errorf("provider %s is not connected (status: %s)", id, status)
	}
	session := ent.session
	m.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	switch session.Transport {
	case TransportSpawn:
		err = session.Client.Ping(checkCtx)
	case TransportHTTPDaemon:
		err = probeHealth(checkCtx, session)
	}

	if err != nil {
		m.mu.Lock()
		if ent, ok := m.entries[id]; ok && ent.session == session {
			ent.status = StatusError
			ent.lastErr = err.Error()
		}
		m.mu.Unlock()
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] HealthCheck: provider '%s' unhealthy: %v", id, err)
		}
		return fmt.Errorf("provider %s health check failed: %w", id, err)
	}

	m.mu.Lock()
	if ent, ok := m.entries[id]; ok && ent.session == session {
		ent.session.LastActivity = time.Now()
	}
	m.mu.Unlock()
	return nil
}

// HealthCheckAll sweeps every live session in parallel. A failed session
// flips to the error status exactly as a single-provider check would. The
// returned map holds one entry per checked provider; a nil value means
// healthy.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id, ent := range m.entries {
		if ent.status == StatusConnected && ent.session != nil {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] HealthCheckAll: sweeping %d live sessions", len(ids))
	}

	results := make(map[string]error, len(ids))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := m.HealthCheck(ctx, id)
			resultsMu.Lock()
			results[id] = err
			resultsMu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

// listProbeTimeout bounds the reachability re-verification done on
// http-daemon providers before their capability snapshots are served.
const listProbeTimeout = 2 * time.Second

// liveCapability pairs a provider's identity with its capability snapshot.
// Snapshots are immutable, so holding one outside the manager lock is safe.
type liveCapability struct {
	id       string
	provider ToolProvider
	caps     *Capabilities
}

// liveSnapshots collects the enabled, connected providers' snapshots for
// listing. Http-daemon providers are re-probed with a bounded health check
// first, outside the lock: a daemon that died since connect flips to the
// error status and is dropped, so a stale connected status never leaks dead
// tools. Spawn sessions hold a live channel and are served as-is.
func (m *Manager) liveSnapshots(ctx context.Context) []liveCapability {
	type candidate struct {
		liveCapability
		session *Session
	}

	m.mu.RLock()
	var candidates []candidate
	for id, ent := range m.entries {
		if !ent.provider.Enabled || ent.status != StatusConnected || ent.caps == nil {
			continue
		}
		candidates = append(candidates, candidate{
			liveCapability{id: id, provider: ent.provider, caps: ent.caps},
			ent.session,
		})
	}
	m.mu.RUnlock()

	var out []liveCapability
	for _, c := range candidates {
		if c.session != nil && c.session.Transport == TransportHTTPDaemon {
			probeCtx, cancel := context.WithTimeout(ctx, listProbeTimeout)
			err := probeHealth(probeCtx, c.session)
			cancel()
			if err != nil {
				m.markUnreachable(c.id, c.session, err)
				continue
			}
		}
		out = append(out, c.liveCapability)
	}
	return out
}

func (m *Manager) markUnreachable(id string, session *Session, err error) {
	m.mu.Lock()
	if ent, ok := m.entries[id]; ok && ent.session == session {
		ent.status = StatusError
		ent.lastErr = err.Error()
	}
	m.mu.Unlock()
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] provider '%s' unreachable, dropped from listing: %v", id, err)
	}
}

// ListAvailableTools returns the provider-qualified union of every tool
// offered by enabled, connected providers. Tool lists serve from the
// connect-time capability snapshots; http-daemon reachability is re-verified
// per call via liveSnapshots.
func (m *Manager) ListAvailableTools(ctx context.Context) []ToolDescriptor {
	if !m.enabled {
		return nil
	}

	var out []ToolDescriptor
	for _, c := range m.liveSnapshots(ctx) {
		for _, tool := range c.caps.Tools {
			out = append(out, ToolDescriptor{
				Name:         QualifyName(c.provider.Name, tool.Name),
				Description:  tool.Description,
				InputSchema:  tool.InputSchema,
				ProviderID:   c.id,
				ProviderName: c.provider.Name,
				Transport:    c.provider.Transport,
			})
		}
	}
	return out
}

// ListAvailableResources returns the provider-qualified union of resources
// from enabled, connected providers, under the same reachability rule as
// ListAvailableTools.
func (m *Manager) ListAvailableResources(ctx context.Context) []ResourceDescriptor {
	if !m.enabled {
		return nil
	}

	var out []ResourceDescriptor
	for _, c := range m.liveSnapshots(ctx) {
		for _, res := range c.caps.Resources {
			out = append(out, ResourceDescriptor{
				Name:         QualifyName(c.provider.Name, res.Name),
				URI:          res.URI,
				Description:  res.Description,
				MIMEType:     res.MIMEType,
				ProviderID:   c.id,
				ProviderName: c.provider.Name,
				Transport:    c.provider.Transport,
			})
		}
	}
	return out
}

// ResolveTool maps a tool name to its provider. Qualified names resolve by
// provider name; bare legacy names fall back to a linear scan over the
// capability snapshots and fail loudly on a miss or an ambiguity.
func (m *Manager) ResolveTool(name string) (ToolDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	providerName, toolName, qualified := SplitQualifiedName(name)

	if qualified {
		for id, ent := range m.entries {
			if ent.provider.Name != providerName {
				continue
			}
			if ent.caps == nil {
				return ToolDescriptor{}, fmt.Errorf("provider %s has no capability snapshot for tool %q", providerName, name)
			}
			for _, tool := range ent.caps.Tools {
				if tool.Name == toolName {
					return ToolDescriptor{
						Name:         name,
						Description:  tool.Description,
						InputSchema:  tool.InputSchema,
						ProviderID:   id,
						ProviderName: ent.provider.Name,
						Transport:    ent.provider.Transport,
					}, nil
				}
			}
			return ToolDescriptor{}, fmt.Errorf("provider %s does not offer tool %q", providerName, toolName)
		}
		return ToolDescriptor{}, fmt.Errorf("no provider named %q for tool %q", providerName, name)
	}

	// Legacy unqualified name: scan every snapshot.
	var found []ToolDescriptor
	for id, ent := range m.entries {
		if ent.caps == nil {
			continue
		}
		for _, tool := range ent.caps.Tools {
			if tool.Name == toolName {
				found = append(found, ToolDescriptor{
					Name:         QualifyName(ent.provider.Name, tool.Name),
					Description:  tool.Description,
					InputSchema:  tool.InputSchema,
					ProviderID:   id,
					ProviderName: ent.provider.Name,
					Transport:    ent.provider.Transport,
				})
			}
		}
	}
	switch len(found) {
	case 0:
		return ToolDescriptor{}, fmt.Errorf("tool %q not found in any provider", toolName)
	case 1:
		return found[0], nil
	default:
		return ToolDescriptor{}, fmt.Errorf("tool %q is ambiguous across %d providers; use the provider-qualified name", toolName, len(found))
	}
}

// CallTool routes an invocation to the owning provider and always returns a
// structured result. Resolution failures, disabled providers and transport
// errors become failure results the orchestrator can inject into the
// conversation; a Go error never escapes this path.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) *ToolResult {
	if !m.enabled {
		return FailureResult(name, args, "tool system is disabled")
	}

	desc, err := m.ResolveTool(name)
	if err != nil {
		return FailureResult(name, args, err.Error())
	}

	m.mu.RLock()
	ent, ok := m.entries[desc.ProviderID]
	if !ok {
		m.mu.RUnlock()
		return FailureResult(name, args, fmt.Sprintf("provider %s is no longer registered", desc.ProviderID))
	}
	if !ent.provider.Enabled {
		m.mu.RUnlock()
		return FailureResult(name, args, fmt.Sprintf("provider %s is disabled", desc.ProviderID))
	}
	if ent.status != StatusConnected || ent.session == nil {
		status := ent.status
		m.mu.RUnlock()
		return FailureResult(name, args, fmt.Sprintf("provider %s is not connected (status: %s)", desc.ProviderID, status))
	}
	session := ent.session
	provider := ent.provider
	m.mu.RUnlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] CallTool: '%s' -> provider '%s' (%s)", name, desc.ProviderID, provider.Transport)
	}

	var result *ToolResult
	switch session.Transport {
	case TransportSpawn:
		result = m.callSpawnTool(ctx, session, provider, desc, args)
	case TransportHTTPDaemon:
		result = callHTTPTool(ctx, session, provider, desc.Name, args)
		// The daemon echoes the bare tool name; keep the qualified form.
		result.Name = desc.Name
	default:
		result = FailureResult(name, args, fmt.Sprintf("unknown transport %q", session.Transport))
	}

	m.mu.Lock()
	if ent, ok := m.entries[desc.ProviderID]; ok && ent.session == session {
		ent.session.LastActivity = time.Now()
	}
	m.mu.Unlock()

	return result
}

func (m *Manager) callSpawnTool(ctx context.Context, session *Session, p ToolProvider, desc ToolDescriptor, args map[string]any) *ToolResult {
	timeout := p.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, bareName, _ := SplitQualifiedName(desc.Name)

	res, err := session.Client.CallTool(callCtx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      bareName,
			Arguments: args,
		},
	})
	if err != nil {
		return FailureResult(desc.Name, args, fmt.Sprintf("tool call failed: %v", err))
	}
	return resultFromMCP(desc.Name, args, res)
}

// Shutdown disconnects every provider in parallel and waits for all
// teardowns to finish. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id, ent := range m.entries {
		if ent.session != nil {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Shutdown: disconnecting %d providers", len(ids))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Disconnect(ctx, id)
		}(id)
	}
	wg.Wait()
}
