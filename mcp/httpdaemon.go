package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatd/config"
)

const maxHTTPResponseBytes = 4 << 20 // 4 MiB cap on daemon responses

// connectHTTPDaemon probes the daemon's health endpoint and, once healthy,
// fetches the capability snapshot in one shot. No process is spawned; the
// session simply carries the base URL, resolved sub-paths and auth headers.
func connectHTTPDaemon(ctx context.Context, p ToolProvider) (*Session, *Capabilities, error) {
	timeout := p.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(p.BaseURL, "/")
	if baseURL == "" {
		return nil, nil, fmt.Errorf("provider %s: http-daemon transport requires a base URL", p.ID)
	}

	session := &Session{
		ProviderID:   p.ID,
		Transport:    TransportHTTPDaemon,
		BaseURL:      baseURL,
		Paths:        p.SubPaths,
		HTTPClient:   &http.Client{Timeout: timeout},
		Headers:      buildAuthHeaders(p),
		LastActivity: time.Now(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := probeHealth(probeCtx, session); err != nil {
		return nil, nil, fmt.Errorf("provider %s: health probe failed: %w", p.ID, err)
	}

	caps, err := fetchHTTPCapabilities(probeCtx, session)
	if err != nil {
		return nil, nil, fmt.Errorf("provider %s: capability fetch failed: %w", p.ID, err)
	}

	return session, caps, nil
}

// probeHealth issues GET {base}{health} and treats any 2xx as healthy.
func probeHealth(ctx context.Context, session *Session) error {
	url := session.BaseURL + session.Paths.health()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	applyHeaders(req, session.Headers)

	resp, err := session.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxHTTPResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// fetchHTTPCapabilities pulls the tool and resource listings from the daemon.
// A missing list-resources endpoint is tolerated; list-tools is not.
func fetchHTTPCapabilities(ctx context.Context, session *Session) (*Capabilities, error) {
	caps := &Capabilities{}

	tools, err := fetchHTTPTools(ctx, session)
	if err != nil {
		return nil, err
	}
	caps.Tools = tools

	if resources, err := fetchHTTPResources(ctx, session); err == nil {
		caps.Resources = resources
	} else if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] fetchHTTPCapabilities: provider '%s' has no resource listing: %v", session.ProviderID, err)
	}

	return caps, nil
}

// httpToolEntry is the wire shape of one tool in a daemon's list-tools reply.
type httpToolEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func fetchHTTPTools(ctx context.Context, session *Session) ([]mcptypes.Tool, error) {
	body, err := httpGetJSON(ctx, session, session.Paths.listTools())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Tools []httpToolEntry `json:"tools"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Some daemons return the bare array.
		var entries []httpToolEntry
		if err2 := json.Unmarshal(body, &entries); err2 != nil {
			return nil, fmt.Errorf("malformed list-tools response: %w", err)
		}
		payload.Tools = entries
	}

	tools := make([]mcptypes.Tool, 0, len(payload.Tools))
	for _, entry := range payload.Tools {
		tool := mcptypes.Tool{
			Name:        entry.Name,
			Description: entry.Description,
		}
		if len(entry.InputSchema) > 0 {
			var schema mcptypes.ToolInputSchema
			if err := json.Unmarshal(entry.InputSchema, &schema); err == nil {
				tool.InputSchema = schema
			}
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func fetchHTTPResources(ctx context.Context, session *Session) ([]mcptypes.Resource, error) {
	body, err := httpGetJSON(ctx, session, session.Paths.listResources())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Resources []mcptypes.Resource `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		var entries []mcptypes.Resource
		if err2 := json.Unmarshal(body, &entries); err2 != nil {
			return nil, fmt.Errorf("malformed list-resources response: %w", err)
		}
		payload.Resources = entries
	}
	return payload.Resources, nil
}

func httpGetJSON(ctx context.Context, session *Session, path string) ([]byte, error) {
	url := session.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, session.Headers)

	resp, err := session.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("endpoint %s returned status %d", path, resp.StatusCode)
	}
	return body, nil
}

// callHTTPTool posts the invocation to the daemon's call-tool endpoint and
// normalizes whatever comes back into a ToolResult. Transport failures,
// non-2xx statuses and malformed bodies all surface as structured failures
// rather than Go errors; the caller always gets a result it can inject into
// the conversation.
func callHTTPTool(ctx context.Context, session *Session, p ToolProvider, name string, args map[string]any) *ToolResult {
	timeout := p.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return FailureResult(name, args, fmt.Sprintf("failed to encode tool call: %v", err))
	}

	url := session.BaseURL + session.Paths.callTool()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return FailureResult(name, args, fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	applyHeaders(req, session.Headers)

	resp, err := session.HTTPClient.Do(req)
	if err != nil {
		return FailureResult(name, args, fmt.Sprintf("tool call transport error: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return FailureResult(name, args, fmt.Sprintf("failed to read tool response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := fmt.Sprintf("tool endpoint returned status %d", resp.StatusCode)
		if len(body) > 0 {
			reason += ": " + truncateForError(string(body), 512)
		}
		return FailureResult(name, args, reason)
	}

	return parseToolResponse(body, name, args)
}

func buildAuthHeaders(p ToolProvider) map[string]string {
	headers := map[string]string{}
	switch p.AuthType {
	case AuthAPIKey:
		if p.APIKey != "" {
			headers["X-API-Key"] = p.APIKey
		}
	case AuthBearer, AuthOAuth:
		if p.BearerToken != "" {
			headers["Authorization"] = "Bearer " + p.BearerToken
		}
	}
	return headers
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func truncateForError(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
