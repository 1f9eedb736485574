package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"chatd/config"
)

// connectSpawn launches the provider process, performs the capability
// handshake (initialize, list tools, list resources, list prompts) and
// returns the live session plus the capability snapshot. The whole handshake
// races the provider's connect timeout; losing the race kills the process and
// reports a connection failure rather than hanging.
func connectSpawn(ctx context.Context, p ToolProvider) (*Session, *Capabilities, error) {
	timeout := p.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	type handshakeResult struct {
		session *Session
		caps    *Capabilities
		err     error
	}
	resultChan := make(chan handshakeResult, 1)

	handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go func() {
		session, caps, err := spawnHandshake(handshakeCtx, p)
		resultChan <- handshakeResult{session: session, caps: caps, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			return nil, nil, res.err
		}
		return res.session, res.caps, nil

	case <-handshakeCtx.Done():
		// The goroutine is abandoned; cancelling the context tears down the
		// child process through the command's context.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] connectSpawn: handshake for '%s' timed out after %v", p.ID, timeout)
		}
		return nil, nil, fmt.Errorf("provider %s: connect handshake exceeded %v", p.ID, timeout)
	}
}

func spawnHandshake(ctx context.Context, p ToolProvider) (*Session, *Capabilities, error) {
	mcpClient, capturedCmd, err := createSpawnClient(ctx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start provider %s: %w", p.ID, err)
	}

	cleanup := func() {
		_ = mcpClient.Close()
		if capturedCmd != nil && capturedCmd.Process != nil {
			_ = capturedCmd.Process.Kill()
		}
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "chatd",
				Version: "1.0.0",
			},
		},
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize provider %s: %w", p.ID, err)
	}

	caps := &Capabilities{}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to list tools for %s: %w", p.ID, err)
	}
	caps.Tools = toolsResult.Tools

	// Resources and prompts are optional server features. A method-not-found
	// style error just leaves the snapshot section empty.
	if resourcesResult, err := mcpClient.ListResources(ctx, mcptypes.ListResourcesRequest{}); err == nil {
		caps.Resources = resourcesResult.Resources
	}
	if promptsResult, err := mcpClient.ListPrompts(ctx, mcptypes.ListPromptsRequest{}); err == nil {
		caps.Prompts = promptsResult.Prompts
	}

	session := &Session{
		ProviderID:   p.ID,
		Transport:    TransportSpawn,
		Client:       mcpClient,
		Process:      capturedCmd,
		LastActivity: time.Now(),
	}

	return session, caps, nil
}

// createSpawnClient builds the stdio MCP client for a local provider process,
// capturing the underlying command so the manager can kill it on teardown.
func createSpawnClient(ctx context.Context, p ToolProvider) (*client.Client, *exec.Cmd, error) {
	env := buildProcessEnv(p.Env)
	var capturedCmd *exec.Cmd

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] createSpawnClient: provider '%s' - Command='%s', Args=%v", p.ID, p.Command, p.Args)
	}

	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		p.Command,
		env,
		p.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] createSpawnClient: started provider '%s' with PID %d", p.ID, capturedCmd.Process.Pid)
	}

	return mcpClient, capturedCmd, nil
}

// closeSpawnSession closes the MCP client with a bounded wait and kills the
// process if the close hangs. An unresponsive provider must not stall
// disconnect or shutdown.
func closeSpawnSession(ctx context.Context, session *Session) {
	if session.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- session.Client.Close()
		}()

		select {
		case <-closeDone:
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] closeSpawnSession: close timeout for '%s' - killing process", session.ProviderID)
			}
		}
	}

	if session.Process != nil && session.Process.Process != nil {
		if err := session.Process.Process.Kill(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] closeSpawnSession: error killing process for '%s': %v", session.ProviderID, err)
			}
		}
	}
}

func buildProcessEnv(envMap map[string]string) []string {
	// Start with the current process environment to preserve PATH and
	// friends, then layer provider-specific variables on top.
	env := os.Environ()
	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
