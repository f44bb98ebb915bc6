package provider

import (
	"testing"

	"pchat/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		wantName    string
	}{
		{
			name:     "ollama provider with defaults",
			config:   Config{Type: ProviderTypeOllama},
			wantName: "ollama",
		},
		{
			name: "ollama provider with custom config",
			config: Config{
				Type:    ProviderTypeOllama,
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
			wantName: "ollama",
		},
		{
			name: "openai provider",
			config: Config{
				Type:    ProviderTypeOpenAI,
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
				APIKey:  "test-key",
			},
			wantName: "openai",
		},
		{
			name: "openrouter provider",
			config: Config{
				Type:   ProviderTypeOpenRouter,
				APIKey: "test-key",
			},
			wantName: "openrouter",
		},
		{
			name: "anthropic provider",
			config: Config{
				Type:    ProviderTypeAnthropic,
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-sonnet-4-5-20250929",
				APIKey:  "test-key",
			},
			wantName: "anthropic",
		},
		{
			name:        "anthropic without key",
			config:      Config{Type: ProviderTypeAnthropic},
			expectError: true,
		},
		{
			name:        "openai without key",
			config:      Config{Type: ProviderTypeOpenAI},
			expectError: true,
		},
		{
			name: "unknown provider type",
			config: Config{
				Type:    ProviderType("unknown"),
				BaseURL: "http://localhost",
				Model:   "test",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

// TestFactoryReturnsOllamaProvider verifies that the factory returns an actual OllamaProvider
func TestFactoryReturnsOllamaProvider(t *testing.T) {
	p, err := NewProvider(Config{Type: ProviderTypeOllama, Model: "llama3.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*OllamaProvider); !ok {
		t.Errorf("expected *OllamaProvider, got %T", p)
	}
}

func TestMapProviderIDToType(t *testing.T) {
	tests := []struct {
		id   string
		want ProviderType
	}{
		{"ollama", ProviderTypeOllama},
		{"openrouter", ProviderTypeOpenRouter},
		{"openai", ProviderTypeOpenAI},
		{"anthropic", ProviderTypeAnthropic},
		{"claude", ProviderTypeAnthropic},
		{"mystery", ProviderType("mystery")},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := MapProviderIDToType(tt.id); got != tt.want {
				t.Errorf("MapProviderIDToType(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestRequiresAPIKey(t *testing.T) {
	if RequiresAPIKey("ollama") {
		t.Error("ollama should not require an API key")
	}
	for _, id := range []string{"anthropic", "openai", "openrouter"} {
		if !RequiresAPIKey(id) {
			t.Errorf("%s should require an API key", id)
		}
	}
}

func TestFactoryForSettings(t *testing.T) {
	f := Factory{BaseURLs: map[ProviderType]string{ProviderTypeOllama: "http://gpu-box:11434"}}

	p, err := f.ForSettings(model.Settings{Provider: "ollama", Model: "qwen2.5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := f.ForSettings(model.Settings{Provider: "anthropic"}); err == nil {
		t.Error("expected an error for anthropic without a key")
	}
}
