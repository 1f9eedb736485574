package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

type ToolsConfig struct {
	Enabled                  bool `toml:"enabled"`
	MaxConcurrentConnections int  `toml:"max_concurrent_connections"`
	MaxIterations            int  `toml:"max_iterations"`
	ConnectTimeoutSeconds    int  `toml:"connect_timeout_seconds"`
	CallTimeoutSeconds       int  `toml:"call_timeout_seconds"`
}

// ModelProviderConfig configures one cloud LLM backend. API keys live in the
// credential store, keyed by the provider id, never in the TOML file.
type ModelProviderConfig struct {
	ID      string `toml:"id"`
	BaseURL string `toml:"base_url,omitempty"`
	Enabled bool   `toml:"enabled"`
}

type UserConfig struct {
	Ollama              OllamaConfig          `toml:"ollama"`
	DefaultProvider     string                `toml:"default_provider,omitempty"`
	DefaultSystemPrompt string                `toml:"default_system_prompt,omitempty"`
	Tools               ToolsConfig           `toml:"tools"`
	ModelProviders      []ModelProviderConfig `toml:"model_providers,omitempty"`
}

type Config struct {
	DataDirectory       string
	OllamaHost          string
	DefaultProvider     string
	DefaultModel        string
	DefaultSystemPrompt string
	ToolsEnabled        bool

	// Connection manager limits.
	MaxConcurrentConnections int
	MaxToolIterations        int
	ConnectTimeoutSeconds    int
	CallTimeoutSeconds       int

	ModelProviders []ModelProviderConfig

	CredentialStore *CredentialStore
}

// Tools bundles the tool-system knobs for the connection manager.
func (c *Config) Tools() ToolsConfig {
	return ToolsConfig{
		Enabled:                  c.ToolsEnabled,
		MaxConcurrentConnections: c.MaxConcurrentConnections,
		MaxIterations:            c.MaxToolIterations,
		ConnectTimeoutSeconds:    c.ConnectTimeoutSeconds,
		CallTimeoutSeconds:       c.CallTimeoutSeconds,
	}
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("CHATD_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv("CHATD_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("CHATD_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("CHATD_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log may contain conversation fragments
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (CHATD_DEBUG=%s) ===", os.Getenv("CHATD_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory

		userCfg, err := LoadUserConfig(cfg.DataDir())
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		cfg.applyUserConfig(userCfg)
	}

	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyUserConfig(userCfg *UserConfig) {
	if userCfg.Ollama.Host != "" {
		c.OllamaHost = userCfg.Ollama.Host
	}
	if userCfg.Ollama.DefaultModel != "" {
		c.DefaultModel = userCfg.Ollama.DefaultModel
	}
	if userCfg.DefaultProvider != "" {
		c.DefaultProvider = userCfg.DefaultProvider
	}
	c.DefaultSystemPrompt = userCfg.DefaultSystemPrompt
	c.ModelProviders = userCfg.ModelProviders
	c.ToolsEnabled = userCfg.Tools.Enabled
	if userCfg.Tools.MaxConcurrentConnections > 0 {
		c.MaxConcurrentConnections = userCfg.Tools.MaxConcurrentConnections
	}
	if userCfg.Tools.MaxIterations > 0 {
		c.MaxToolIterations = userCfg.Tools.MaxIterations
	}
	if userCfg.Tools.ConnectTimeoutSeconds > 0 {
		c.ConnectTimeoutSeconds = userCfg.Tools.ConnectTimeoutSeconds
	}
	if userCfg.Tools.CallTimeoutSeconds > 0 {
		c.CallTimeoutSeconds = userCfg.Tools.CallTimeoutSeconds
	}
}
