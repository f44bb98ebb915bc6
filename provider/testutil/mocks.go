package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"pchat/model"
)

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	StreamFunc   func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error)
	CompleteFunc func(ctx context.Context, req model.Request) (model.Message, error)

	name string

	mu             sync.Mutex
	streamRequests []model.Request
	completeReqs   []model.Request
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(name string) *MockProvider {
	mock := &MockProvider{name: name}
	mock.StreamFunc = mock.defaultStream
	mock.CompleteFunc = mock.defaultComplete
	return mock
}

func (m *MockProvider) defaultStream(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
	// Default: stream a fixed reply in one chunk
	if err := callback(model.StreamChunk{Text: "Mock response"}); err != nil {
		return model.Message{}, err
	}
	return AssistantText("Mock response"), nil
}

func (m *MockProvider) defaultComplete(ctx context.Context, req model.Request) (model.Message, error) {
	return AssistantText("Mock completion"), nil
}

func (m *MockProvider) Stream(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
	m.mu.Lock()
	m.streamRequests = append(m.streamRequests, req)
	m.mu.Unlock()
	return m.StreamFunc(ctx, req, callback)
}

func (m *MockProvider) Complete(ctx context.Context, req model.Request) (model.Message, error) {
	m.mu.Lock()
	m.completeReqs = append(m.completeReqs, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

func (m *MockProvider) Name() string {
	return m.name
}

// StreamRequests returns every request passed to Stream so far.
func (m *MockProvider) StreamRequests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.streamRequests...)
}

// CompleteRequests returns every request passed to Complete so far.
func (m *MockProvider) CompleteRequests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.completeReqs...)
}

// ScriptStream makes Stream play replies in order, streaming each reply's text
// as a single delta. Calls beyond the script fail.
func (m *MockProvider) ScriptStream(replies ...model.Message) {
	var mu sync.Mutex
	next := 0
	m.StreamFunc = func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
		mu.Lock()
		if next >= len(replies) {
			mu.Unlock()
			return model.Message{}, fmt.Errorf("unexpected stream call %d", next+1)
		}
		reply := replies[next]
		next++
		mu.Unlock()

		if text := reply.PlainText(); text != "" {
			if err := callback(model.StreamChunk{Text: text}); err != nil {
				return model.Message{}, err
			}
		}
		for _, u := range reply.ToolUses() {
			if err := callback(model.StreamChunk{ToolInput: string(u.Input)}); err != nil {
				return model.Message{}, err
			}
		}
		return reply.Clone(), nil
	}
}

// MockTransport is an in-memory tool transport.
type MockTransport struct {
	ServerList  []model.ToolServer
	ExecuteFunc func(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error)

	mu    sync.Mutex
	calls []ToolCall
}

// ToolCall records one Execute invocation.
type ToolCall struct {
	Server string
	Tool   string
	Args   json.RawMessage
}

func (t *MockTransport) Servers() []model.ToolServer {
	return t.ServerList
}

func (t *MockTransport) Execute(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error) {
	t.mu.Lock()
	t.calls = append(t.calls, ToolCall{Server: serverID, Tool: toolName, Args: args})
	t.mu.Unlock()
	if t.ExecuteFunc == nil {
		return "ok", nil
	}
	return t.ExecuteFunc(ctx, serverID, toolName, args)
}

// Calls returns the recorded Execute invocations.
func (t *MockTransport) Calls() []ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ToolCall(nil), t.calls...)
}
