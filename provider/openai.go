package provider

import (
	"context"
	"fmt"

	"pchat/config"
	"pchat/model"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements model.Provider using OpenAI's official Go SDK.
// OpenRouter is served by the same type with a different base URL.
type OpenAIProvider struct {
	client  openai.Client
	name    ProviderType
	model   string
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//   - model: Default model when a request names none (default: "gpt-4o-mini")
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return newOpenAICompatible(ProviderTypeOpenAI, baseURL, apiKey, model), nil
}

func newOpenAICompatible(name ProviderType, baseURL, apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &OpenAIProvider{
		client:  client,
		name:    name,
		model:   model,
		baseURL: baseURL,
	}
}

// Name implements model.Provider.
func (p *OpenAIProvider) Name() string {
	return string(p.name)
}

func (p *OpenAIProvider) params(req model.Request) openai.ChatCompletionNewParams {
	m := p.model
	if req.Model != "" {
		m = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(req.System, req.Messages),
		Model:    openai.ChatModel(m),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = ConvertToolsToOpenAI(req.Tools)
	}
	return params
}

// Stream implements model.Provider with streaming support.
func (p *OpenAIProvider) Stream(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if callback == nil || len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		var out model.StreamChunk
		out.Text = delta.Content
		for _, call := range delta.ToolCalls {
			out.ToolInput += call.Function.Arguments
		}
		if out.Text == "" && out.ToolInput == "" {
			continue
		}
		if err := callback(out); err != nil {
			return model.Message{}, err
		}
	}

	if err := stream.Err(); err != nil {
		return model.Message{}, fmt.Errorf("%s streaming error: %w", p.name, err)
	}
	if len(acc.Choices) == 0 {
		return model.Message{}, fmt.Errorf("%s returned no choices", p.name)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[OpenAI] %s finish_reason=%s prompt_tokens=%d completion_tokens=%d",
			p.name, acc.Choices[0].FinishReason, acc.Usage.PromptTokens, acc.Usage.CompletionTokens)
	}

	return model.Message{
		Role:   model.RoleAssistant,
		Blocks: ConvertFromOpenAIMessage(acc.Choices[0].Message),
	}, nil
}

// Complete implements model.Provider without streaming.
func (p *OpenAIProvider) Complete(ctx context.Context, req model.Request) (model.Message, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return model.Message{}, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return model.Message{}, fmt.Errorf("%s returned no choices", p.name)
	}
	return model.Message{
		Role:   model.RoleAssistant,
		Blocks: ConvertFromOpenAIMessage(resp.Choices[0].Message),
	}, nil
}

// Models lists the models available to the API key.
func (p *OpenAIProvider) Models(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", p.name, err)
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}
