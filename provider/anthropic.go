package provider

import (
	"context"
	"fmt"

	"pchat/config"
	"pchat/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements model.Provider using Anthropic's official API.
// Cache hints on messages and tools are sent as cache_control breakpoints.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//   - model: Default model when a request names none (default: "claude-sonnet-4-5-20250929")
//
// Returns an error if the API key is missing.
func NewAnthropicProvider(baseURL, apiKey, model string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropicModel,
		baseURL: baseURL,
	}, nil
}

// Name implements model.Provider.
func (p *AnthropicProvider) Name() string {
	return string(ProviderTypeAnthropic)
}

func (p *AnthropicProvider) params(req model.Request) anthropic.MessageNewParams {
	m := p.model
	if req.Model != "" {
		m = anthropic.Model(req.Model)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     m,
		Messages:  ConvertToAnthropicMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = ConvertToolsToAnthropic(req.Tools)
	}
	return params
}

// Stream implements model.Provider with streaming support. Text deltas and
// partial tool input are forwarded to callback; the accumulated message is
// returned once the stream ends.
func (p *AnthropicProvider) Stream(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))
	defer stream.Close()

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return model.Message{}, fmt.Errorf("error accumulating message: %w", err)
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok || callback == nil {
			continue
		}
		var chunk model.StreamChunk
		switch d := delta.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			chunk.Text = d.Text
		case anthropic.InputJSONDelta:
			chunk.ToolInput = d.PartialJSON
		default:
			continue
		}
		if err := callback(chunk); err != nil {
			return model.Message{}, err
		}
	}

	if err := stream.Err(); err != nil {
		return model.Message{}, fmt.Errorf("Anthropic streaming error: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Anthropic] stop_reason=%s input_tokens=%d cache_read=%d cache_write=%d output_tokens=%d",
			msg.StopReason, msg.Usage.InputTokens, msg.Usage.CacheReadInputTokens, msg.Usage.CacheCreationInputTokens, msg.Usage.OutputTokens)
	}

	return model.Message{
		Role:   model.RoleAssistant,
		Blocks: ConvertFromAnthropicContent(msg.Content),
	}, nil
}

// Complete implements model.Provider without streaming.
func (p *AnthropicProvider) Complete(ctx context.Context, req model.Request) (model.Message, error) {
	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return model.Message{}, fmt.Errorf("Anthropic request failed: %w", err)
	}
	return model.Message{
		Role:   model.RoleAssistant,
		Blocks: ConvertFromAnthropicContent(msg.Content),
	}, nil
}

// Models returns a curated list of known Claude models; the API has no
// listing endpoint the client relies on.
func (p *AnthropicProvider) Models() []string {
	return []string{
		string(anthropic.ModelClaudeSonnet4_5_20250929),
		string(anthropic.ModelClaude3_5Haiku20241022),
		string(anthropic.ModelClaude_3_Opus_20240229),
		string(anthropic.ModelClaude_3_Haiku_20240307),
	}
}
