package provider

import (
	"context"
	"fmt"

	"chatd/config"
	"chatd/ollama"
)

// PingProvider validates a provider's credentials by constructing it and
// calling Ping. Used to check API keys before persisting them.
func PingProvider(ctx context.Context, providerID, baseURL, apiKey string) error {
	providerType := MapProviderIDToType(providerID)

	p, err := NewProvider(Config{
		Type:    providerType,
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   "",
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	if config.Debug {
		config.DebugLog.Printf("[Provider] Provider %s ping successful", providerID)
	}
	return nil
}

// FetchProviderModels lists the models a provider offers. Ollama gets its
// own path because it is reachable without credentials.
func FetchProviderModels(ctx context.Context, providerID, baseURL, apiKey, ollamaURL string) ([]ollama.ModelInfo, error) {
	var models []ollama.ModelInfo

	switch providerID {
	case "ollama":
		client, err := ollama.NewClient(ollamaURL, "")
		if err != nil {
			return nil, err
		}

		modelInfos, err := client.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		for i := range modelInfos {
			modelInfos[i].Provider = "ollama"
			modelInfos[i].InternalName = modelInfos[i].Name
		}
		models = modelInfos

	default:
		providerType := MapProviderIDToType(providerID)
		p, err := NewProvider(Config{
			Type:    providerType,
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   "",
		})
		if err != nil {
			return nil, err
		}

		models, err = p.ListModels(ctx)
		if err != nil {
			return nil, err
		}
	}

	if config.Debug {
		config.DebugLog.Printf("[Provider] Fetched %d models from provider %s", len(models), providerID)
	}
	return models, nil
}
