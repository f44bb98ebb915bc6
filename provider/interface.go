// Package provider implements model.Provider for the supported LLM services.
//
// pchat talks to Anthropic, OpenAI, OpenRouter and Ollama through the common
// model.Provider interface so the orchestration engine stays provider-agnostic.
// Each implementation converts pchat's block-based messages and tool
// definitions to the provider's wire types (see conversions.go) and back.
//
// # Caching
//
// The engine marks one trailing content block and the last tool definition as
// cache-eligible. Anthropic turns these hints into cache_control breakpoints;
// OpenAI-compatible APIs and Ollama ignore them.
//
// # Usage
//
//	cfg := provider.Config{
//	    Type:   provider.ProviderTypeAnthropic,
//	    Model:  "claude-sonnet-4-5-20250929",
//	    APIKey: "sk-ant-...",
//	}
//	p, err := provider.NewProvider(cfg)
//	if err != nil {
//	    // handle error
//	}
//	reply, err := p.Stream(ctx, req, callback)
package provider

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Default API endpoints.
const (
	DefaultAnthropicURL  = "https://api.anthropic.com"
	DefaultOpenAIURL     = "https://api.openai.com/v1"
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // Unused for Ollama
}
