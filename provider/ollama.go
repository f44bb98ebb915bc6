package provider

import (
	"context"
	"fmt"

	"pchat/model"
	"pchat/ollama"

	"github.com/ollama/ollama/api"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// Ollama does not assign ids to tool calls, so the provider synthesizes them.
// Cache hints are ignored.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL (default: "http://localhost:11434")
//   - model: The model name to use (default: "llama3.1:latest")
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

// Name implements model.Provider.
func (p *OllamaProvider) Name() string {
	return string(ProviderTypeOllama)
}

// Stream implements model.Provider.
func (p *OllamaProvider) Stream(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
	return p.chat(ctx, req, true, callback)
}

// Complete implements model.Provider.
func (p *OllamaProvider) Complete(ctx context.Context, req model.Request) (model.Message, error) {
	return p.chat(ctx, req, false, nil)
}

func (p *OllamaProvider) chat(ctx context.Context, req model.Request, stream bool, callback model.StreamCallback) (model.Message, error) {
	messages := ConvertToOllamaMessages(req.System, req.Messages)
	tools := ConvertToolsToOllama(req.Tools)

	var onChunk ollama.StreamCallback
	if callback != nil {
		onChunk = func(chunk string, calls []api.ToolCall) error {
			if chunk == "" {
				return nil
			}
			return callback(model.StreamChunk{Text: chunk})
		}
	}

	reply, err := p.client.Chat(ctx, req.Model, messages, tools, stream, onChunk)
	if err != nil {
		return model.Message{}, fmt.Errorf("Ollama chat failed: %w", err)
	}

	return model.Message{
		Role:   model.RoleAssistant,
		Blocks: ConvertFromOllamaMessage(reply.Content, reply.ToolCalls),
	}, nil
}

// Models lists the models installed on the server.
func (p *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	return p.client.ListModels(ctx)
}

// Ping checks that the server is reachable.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
