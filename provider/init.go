package provider

import (
	"chatd/config"
	"chatd/model"
)

// InitializeProviders creates every configured backend instance: the Ollama
// backend is always attempted, then each enabled cloud backend from config.
// API keys come from the credential store. Failures degrade gracefully: a
// backend that cannot initialize is logged and skipped, never fatal.
func InitializeProviders(cfg *config.Config) map[string]model.Provider {
	providers := make(map[string]model.Provider)

	if p := initializeOllama(cfg); p != nil {
		providers["ollama"] = p
		if config.Debug {
			config.DebugLog.Printf("[Provider] Initialized Ollama provider")
		}
	} else if config.Debug {
		config.DebugLog.Printf("[Provider] Ollama provider initialization failed (offline mode)")
	}

	for _, providerCfg := range cfg.ModelProviders {
		if !providerCfg.Enabled {
			continue
		}

		apiKey := ""
		if cfg.CredentialStore != nil {
			if key, err := cfg.CredentialStore.Get(providerCfg.ID); err == nil {
				apiKey = key
			}
		}

		p, err := NewProvider(Config{
			Type:    MapProviderIDToType(providerCfg.ID),
			BaseURL: providerCfg.BaseURL,
			APIKey:  apiKey,
		})
		if err != nil {
			if config.Debug {
				config.DebugLog.Printf("[Provider] Warning: failed to initialize provider %s: %v", providerCfg.ID, err)
			}
			continue
		}

		providers[providerCfg.ID] = p
		if config.Debug {
			config.DebugLog.Printf("[Provider] Initialized provider: %s", providerCfg.ID)
		}
	}

	return providers
}

// initializeOllama returns nil on failure so chatd can start offline.
func initializeOllama(cfg *config.Config) model.Provider {
	p, err := NewProvider(Config{
		Type:    ProviderTypeOllama,
		BaseURL: cfg.OllamaHost,
		Model:   cfg.DefaultModel,
	})
	if err != nil {
		if config.Debug {
			config.DebugLog.Printf("[Provider] Ollama provider creation failed: %v", err)
		}
		return nil
	}
	return p
}
