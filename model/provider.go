package model

import "context"

// Provider abstracts LLM provider implementations (Anthropic, OpenAI,
// OpenRouter, Ollama) using pchat's provider-agnostic message types.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the engine can use
// the Provider interface without importing the provider package.
type Provider interface {
	// Stream sends the request, reports incremental output through callback,
	// and returns the final structured assistant message.
	Stream(ctx context.Context, req Request, callback StreamCallback) (Message, error)

	// Complete sends the request without streaming. Used for auxiliary calls
	// such as title generation and tool-result judging.
	Complete(ctx context.Context, req Request) (Message, error)

	// Name returns the provider ID ("anthropic", "openai", ...).
	Name() string
}

// Request is a provider call. Messages and Tools may carry cache hints; providers
// that cannot cache simply ignore them.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []Message
	Tools     []ToolDef
}

// StreamChunk is one incremental update from a streaming call.
type StreamChunk struct {
	// Text is a text delta for the current text block.
	Text string
	// ToolInput is a partial JSON delta for a tool_use block being generated.
	ToolInput string
}

// StreamCallback is called for each chunk of streamed response. Returning an
// error aborts the stream.
type StreamCallback func(chunk StreamChunk) error
