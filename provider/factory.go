package provider

import (
	"fmt"

	"pchat/model"
)

// NewProvider creates a provider based on configuration.
//
// Returns an error if the provider type is unknown or the provider-specific
// constructor fails (e.g. missing API key, invalid URL).
//
// Example:
//
//	cfg := provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	}
//	p, err := provider.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	case ProviderTypeOpenRouter:
		return NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a settings provider ID to a ProviderType.
//
// For unknown IDs, returns the ID cast as ProviderType (factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic", "claude":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}

// RequiresAPIKey reports whether a provider ID needs an API key. Local Ollama
// servers do not.
func RequiresAPIKey(id string) bool {
	return MapProviderIDToType(id) != ProviderTypeOllama
}

// Factory builds providers for project settings. BaseURLs overrides the
// endpoint per provider type (e.g. a remote Ollama host).
type Factory struct {
	BaseURLs map[ProviderType]string
}

// ForSettings creates the provider a project's settings select.
func (f Factory) ForSettings(settings model.Settings) (model.Provider, error) {
	t := MapProviderIDToType(settings.Provider)
	return NewProvider(Config{
		Type:    t,
		BaseURL: f.BaseURLs[t],
		Model:   settings.Model,
		APIKey:  settings.APIKey,
	})
}
