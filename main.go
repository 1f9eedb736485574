package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatd/chat"
	"chatd/config"
	"chatd/model"
	"chatd/provider"
	"chatd/storage"
	"chatd/tools"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	config.InitDebugLog(cfg.DataDir())

	encMethod := config.EncryptionNone
	sshKeyPath := os.Getenv("CHATD_SSH_KEY")
	if sshKeyPath != "" {
		encMethod = config.EncryptionSSHKey
	}
	encManager := config.NewEncryptionManager(encMethod, sshKeyPath)
	if err := encManager.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize encryption: %v\n", err)
		os.Exit(1)
	}
	cfg.CredentialStore = config.NewCredentialStore(cfg.DataDir(), encManager)

	store, err := storage.Open(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	providers := provider.InitializeProviders(cfg)
	active, ok := providers[cfg.DefaultProvider]
	if !ok {
		if active, ok = providers["ollama"]; !ok {
			fmt.Fprintln(os.Stderr, "No model provider available. Is Ollama running?")
			os.Exit(1)
		}
	}

	toolService := tools.NewService(store, cfg.CredentialStore, cfg.Tools())
	orchestrator := chat.NewOrchestrator(active, toolService, store, cfg.DefaultSystemPrompt, cfg.MaxToolIterations)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer toolService.Shutdown(context.Background())

	if err := runREPL(ctx, store, orchestrator, active); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runREPL reads user turns from stdin and streams each reply to stdout. The
// scope is the local OS user; multi-tenant callers embed the packages behind
// their own transport instead.
func runREPL(ctx context.Context, store *storage.Store, orchestrator *chat.Orchestrator, active model.Provider) error {
	scope := os.Getenv("USER")
	if scope == "" {
		scope = "local"
	}

	current, err := store.CreateChat(scope, "", active.GetModel())
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}

	fmt.Printf("chatd %s (model %s). /new starts a chat, /quit exits.\n", Version, active.GetDisplayName())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			current, err = store.CreateChat(scope, "", active.GetModel())
			if err != nil {
				return fmt.Errorf("failed to create chat: %w", err)
			}
			fmt.Println("Started a new chat.")
			continue
		}

		err := orchestrator.RunTurn(ctx, scope, current.ID, line, printEvent)
		fmt.Println()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
		}
	}
}

// printEvent renders one turn event for the terminal.
func printEvent(e chat.Event) {
	switch e.Type {
	case chat.EventContent:
		fmt.Print(e.Content)
	case chat.EventReasoning:
		fmt.Fprint(os.Stderr, e.Content)
	case chat.EventTitle:
		fmt.Printf("[title: %s]\n", e.Content)
	case chat.EventToolCall:
		fmt.Printf("[tool: %s]\n", e.ToolCall.Name)
	case chat.EventToolResult:
		if !e.ToolResult.Success {
			fmt.Printf("[tool %s failed: %s]\n", e.ToolResult.Name, e.ToolResult.Error)
		}
	}
}
