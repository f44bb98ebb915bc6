package config

import (
	"fmt"
	"os"
)

// ProviderConfig overrides a provider's endpoint.
type ProviderConfig struct {
	ID      string `toml:"id"`
	BaseURL string `toml:"base_url,omitempty"`
}

// apiKeyEnvVars maps provider ids to the environment variable holding their key.
var apiKeyEnvVars = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// BaseURL returns the configured endpoint for a provider, or "" for its default.
func (c *Config) BaseURL(providerID string) string {
	for _, p := range c.Providers {
		if p.ID == providerID {
			return p.BaseURL
		}
	}
	return ""
}

// APIKey returns the key for a provider. The environment wins over the
// credential store.
func (c *Config) APIKey(providerID string) string {
	if env, ok := apiKeyEnvVars[providerID]; ok {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	if c.CredentialStore == nil {
		return ""
	}
	return c.CredentialStore.Get(providerID)
}

// SetAPIKey stores and persists a provider key. An empty key removes it.
func (c *Config) SetAPIKey(providerID, apiKey string) error {
	switch providerID {
	case "anthropic", "openai", "openrouter":
	default:
		return fmt.Errorf("provider %s does not use an API key", providerID)
	}
	if c.CredentialStore == nil {
		return fmt.Errorf("credential store not loaded")
	}

	c.CredentialStore.Set(providerID, apiKey)
	if err := c.CredentialStore.Save(c.DataDir()); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}
