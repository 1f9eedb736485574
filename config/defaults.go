package config

func defaultConfig() *Config {
	return &Config{
		DataDirectory:            "~/.local/share/chatd",
		OllamaHost:               "http://localhost:11434",
		DefaultProvider:          "ollama",
		DefaultModel:             "llama3.1:latest",
		ToolsEnabled:             false,
		MaxConcurrentConnections: 8,
		MaxToolIterations:        5,
		ConnectTimeoutSeconds:    10,
		CallTimeoutSeconds:       60,
	}
}

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/chatd",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			DefaultModel: "llama3.1:latest",
		},
		Tools: ToolsConfig{
			Enabled:                  false,
			MaxConcurrentConnections: 8,
			MaxIterations:            5,
			ConnectTimeoutSeconds:    10,
			CallTimeoutSeconds:       60,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# chatd System Configuration
# Location: ~/.config/chatd/settings.toml
# This file uses TOML format: https://toml.io

# Directory where chats, provider registrations and user config are stored
data_directory = "~/.local/share/chatd"
`
}

func GenerateUserConfigTemplate() string {
	return `# chatd User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Default LLM provider: ollama, openai, openrouter, anthropic
default_provider = "ollama"

# Default system prompt for new chats (optional)
default_system_prompt = ""

[ollama]
# Ollama server URL
host = "http://localhost:11434"

# Default model to use for new chats
default_model = "llama3.1:latest"

[tools]
# Tool provider system (disabled by default)
enabled = false

# Hard cap on simultaneously connected tool providers
max_concurrent_connections = 8

# Maximum tool-call detours per turn before tools are withheld
max_iterations = 5

# Per-provider connect handshake timeout
connect_timeout_seconds = 10

# Per tool-call timeout
call_timeout_seconds = 60
`
}
