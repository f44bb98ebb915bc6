package provider

import (
	"fmt"
	"strings"
)

// NewOpenRouterProvider creates a provider for OpenRouter, whose API is
// OpenAI-compatible.
//
// Parameters:
//   - baseURL: OpenRouter API base URL (default: "https://openrouter.ai/api/v1")
//   - apiKey: OpenRouter API key (required)
//   - model: Default model when a request names none
func NewOpenRouterProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if model == "" {
		model = "anthropic/claude-sonnet-4.5"
	}
	return newOpenAICompatible(ProviderTypeOpenRouter, baseURL, apiKey, model), nil
}

// StripVendorPrefix returns the display form of an OpenRouter model id.
// Example: "meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct"
func StripVendorPrefix(modelID string) string {
	if idx := strings.LastIndex(modelID, "/"); idx != -1 {
		return modelID[idx+1:]
	}
	return modelID
}
