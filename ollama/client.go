package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultHost is the address of a local Ollama server.
const DefaultHost = "http://localhost:11434"

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// StreamCallback receives each streamed response fragment.
type StreamCallback func(chunk string, toolCalls []api.ToolCall) error

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	if model == "" {
		model = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Reply is the accumulated result of a chat call.
type Reply struct {
	Content   string
	ToolCalls []api.ToolCall
}

// Chat sends a chat request and accumulates the reply. With stream set the
// callback sees every fragment as it arrives.
func (c *Client) Chat(ctx context.Context, model string, messages []api.Message, tools []api.Tool, stream bool, callback StreamCallback) (Reply, error) {
	if model == "" {
		model = c.model
	}
	if len(tools) > 0 && !ModelSupportsToolCalling(model) {
		// Models without tool support reject the request outright.
		tools = nil
	}

	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
	}

	var reply Reply
	var content strings.Builder
	respFunc := func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		reply.ToolCalls = append(reply.ToolCalls, resp.Message.ToolCalls...)
		if callback != nil {
			return callback(resp.Message.Content, resp.Message.ToolCalls)
		}
		return nil
	}

	if err := c.client.Chat(ctx, req, respFunc); err != nil {
		return Reply{}, err
	}
	reply.Content = content.String()
	return reply, nil
}

// ListModels returns the names of the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = m.Name
	}
	return models, nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolCallingModels tracks which model families support tool calling
// This is a curated list based on Ollama documentation and community testing
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,
	"gpt-oss":   true,

	"llama3-gradient": false,
	"llama3":          false, // Original llama3 (not 3.1/3.2/3.3)
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes defines the order to check model prefixes
// IMPORTANT: Check most specific prefixes first to avoid false matches
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3", "gpt-oss",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ModelSupportsToolCalling reports whether a model is known to support
// Ollama's tool calling API. Unknown models are assumed not to.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}
	return false
}
