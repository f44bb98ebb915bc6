package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pchat/model"
	"pchat/provider/testutil"
)

const (
	testProject = "p1"
	testConv    = "c1"
)

// memStore is a single-conversation ConversationStore recording every write.
type memStore struct {
	mu      sync.Mutex
	project model.Project
	updates [][]model.Message
	renames []string
}

func newMemStore(settings model.Settings, history ...model.Message) *memStore {
	return &memStore{project: model.Project{
		ID:       testProject,
		Name:     "Test",
		Settings: settings,
		Conversations: []model.Conversation{{
			ID:       testConv,
			Name:     "New conversation",
			Messages: model.History(history).Clone(),
		}},
	}}
}

func (s *memStore) Conversation(projectID, conversationID string) (model.Project, model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID != testProject {
		return model.Project{}, model.Conversation{}, fmt.Errorf("project %s not found", projectID)
	}
	conv, ok := s.project.Conversation(conversationID)
	if !ok {
		return model.Project{}, model.Conversation{}, fmt.Errorf("conversation %s not found", conversationID)
	}
	return s.project.Clone(), conv.Clone(), nil
}

func (s *memStore) UpdateMessages(projectID, conversationID string, messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, model.History(messages).Clone())
	s.project.Conversations[0].Messages = model.History(messages).Clone()
	return nil
}

func (s *memStore) Rename(projectID, conversationID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renames = append(s.renames, name)
	s.project.Conversations[0].Name = name
	return nil
}

func (s *memStore) messages() model.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Conversations[0].Messages.Clone()
}

func (s *memStore) name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Conversations[0].Name
}

func testSettings() model.Settings {
	return model.Settings{
		Provider:   "anthropic",
		APIKey:     "sk-test",
		Model:      "claude-test",
		MCPServers: []string{"web"},
	}
}

func newTestOrchestrator(store *memStore, p *testutil.MockProvider, transport ToolTransport, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	}
	factory := func(model.Settings) (model.Provider, error) { return p, nil }
	return NewOrchestrator(store, factory, NewDispatcher(transport), opts)
}

func searchTransport(result string) *testutil.MockTransport {
	return &testutil.MockTransport{
		ServerList: []model.ToolServer{{ID: "web", Tools: []model.ToolDef{{Name: "search"}}}},
		ExecuteFunc: func(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error) {
			return result, nil
		},
	}
}

func TestSubmitPlainReply(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(testutil.AssistantText("4"))
	o := newTestOrchestrator(store, p, nil, Options{})

	result, err := o.Submit(context.Background(), testProject, testConv, "What's 2+2?")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	msgs := store.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].PlainText() != "What's 2+2?" {
		t.Errorf("user message: got %+v", msgs[0])
	}
	if msgs[1].Role != model.RoleAssistant || msgs[1].PlainText() != "4" {
		t.Errorf("assistant message: got %+v", msgs[1])
	}
	if result.Iterations != 1 || len(p.StreamRequests()) != 1 {
		t.Errorf("expected one loop iteration, got %d (%d stream calls)", result.Iterations, len(p.StreamRequests()))
	}
	if result.Cancelled || result.LimitReached {
		t.Errorf("unexpected result flags: %+v", result)
	}
}

func TestSubmitToolRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		transport *testutil.MockTransport
		wantError bool
		wantText  string
	}{
		{name: "server advertises tool", transport: searchTransport("42 results"), wantText: "42 results"},
		{name: "no server advertises tool", transport: &testutil.MockTransport{}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(testSettings())
			p := testutil.NewMockProvider("anthropic")
			p.ScriptStream(
				testutil.AssistantToolUse("Let me search.", "t1", "search", `{"query":"go"}`),
				testutil.AssistantText("Found them."),
			)
			o := newTestOrchestrator(store, p, tt.transport, Options{})

			result, err := o.Submit(context.Background(), testProject, testConv, "Search for go")
			if err != nil {
				t.Fatalf("Submit failed: %v", err)
			}
			if result.Iterations != 2 {
				t.Errorf("expected a re-send after the tool result, got %d iterations", result.Iterations)
			}

			msgs := store.messages()
			if len(msgs) != 4 {
				t.Fatalf("expected 4 messages, got %d", len(msgs))
			}
			results := msgs[2].ToolResults()
			if len(results) != 1 || results[0].ToolUseID != "t1" {
				t.Fatalf("expected one tool_result for t1, got %+v", msgs[2].Blocks)
			}
			if results[0].IsError != tt.wantError {
				t.Errorf("isError: got %v, want %v", results[0].IsError, tt.wantError)
			}
			if tt.wantText != "" && results[0].Content != tt.wantText {
				t.Errorf("content: got %q, want %q", results[0].Content, tt.wantText)
			}

			reqs := p.StreamRequests()
			resent := reqs[1].Messages[len(reqs[1].Messages)-1]
			if !resent.StartsWithToolResult() {
				t.Error("second request should end with the tool result")
			}
		})
	}
}

func TestSubmitGeneratesTitleOnce(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(testutil.AssistantText("Sunny all week."), testutil.AssistantText("Yes."))
	p.CompleteFunc = func(ctx context.Context, req model.Request) (model.Message, error) {
		return testutil.AssistantText("Title: Weather Forecast"), nil
	}
	o := newTestOrchestrator(store, p, nil, Options{})

	result, err := o.Submit(context.Background(), testProject, testConv, "What's the weather this week?")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Title != "Weather Forecast" || store.name() != "Weather Forecast" {
		t.Errorf("title: got result %q, stored %q", result.Title, store.name())
	}

	if _, err := o.Submit(context.Background(), testProject, testConv, "Sure?"); err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if n := len(p.CompleteRequests()); n != 1 {
		t.Errorf("expected exactly one title call, got %d", n)
	}
	if len(store.renames) != 1 {
		t.Errorf("expected one rename, got %v", store.renames)
	}
}

func TestSubmitTitleFailureIsSwallowed(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(testutil.AssistantText("Hi"))
	p.CompleteFunc = func(ctx context.Context, req model.Request) (model.Message, error) {
		return model.Message{}, errors.New("rate limited")
	}
	o := newTestOrchestrator(store, p, nil, Options{})

	if _, err := o.Submit(context.Background(), testProject, testConv, "Hello"); err != nil {
		t.Fatalf("title failure must not fail the turn: %v", err)
	}
	if store.name() != "New conversation" {
		t.Errorf("conversation should keep its name, got %q", store.name())
	}
}

func TestSubmitCancelDuringToolExecution(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(
		testutil.AssistantToolUse("", "t1", "search", `{}`),
		testutil.AssistantText("should never be requested"),
	)

	var o *Orchestrator
	transport := searchTransport("")
	transport.ExecuteFunc = func(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error) {
		o.Cancel(testConv)
		return "partial", nil
	}
	var states []State
	o = newTestOrchestrator(store, p, transport, Options{
		OnState: func(_ string, s State) { states = append(states, s) },
	})

	result, err := o.Submit(context.Background(), testProject, testConv, "Search")
	if err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}
	if !result.Cancelled {
		t.Error("result should be flagged cancelled")
	}
	if n := len(p.StreamRequests()); n != 1 {
		t.Errorf("no request may be sent after cancelling, got %d", n)
	}
	if states[len(states)-1] != StateCancelled {
		t.Errorf("final state: got %s", states[len(states)-1])
	}

	msgs := store.messages()
	if len(msgs) != 3 || msgs[2].ToolResults()[0].Content != "partial" {
		t.Errorf("the running tool's result should still be stored, got %d messages", len(msgs))
	}
	if err := msgs.Validate(); err != nil {
		t.Errorf("history invalid after cancel: %v", err)
	}

	// A new turn clears the flag.
	p.ScriptStream(testutil.AssistantText("Back again."))
	result, err = o.Submit(context.Background(), testProject, testConv, "Continue")
	if err != nil || result.Cancelled {
		t.Fatalf("next turn should run normally: result=%+v err=%v", result, err)
	}
}

func TestSubmitCancelDuringStreamClosesToolCalls(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")

	var o *Orchestrator
	p.StreamFunc = func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
		o.Cancel(testConv)
		if err := callback(model.StreamChunk{ToolInput: `{"q":`}); err != nil {
			return model.Message{}, err
		}
		return testutil.AssistantToolUse("", "t1", "search", `{"q":"x"}`), nil
	}
	o = newTestOrchestrator(store, p, searchTransport("unused"), Options{})

	result, err := o.Submit(context.Background(), testProject, testConv, "Search")
	if err != nil || !result.Cancelled {
		t.Fatalf("expected cancelled result, got %+v, %v", result, err)
	}
	msgs := store.messages()
	if len(msgs) != 2 || len(msgs.PendingToolUses()) != 1 {
		t.Fatalf("expected an unanswered tool call, got %d messages", len(msgs))
	}
	if msgs[1].PendingToolInput != "" {
		t.Error("final message must not carry pending tool input")
	}

	p.ScriptStream(testutil.AssistantText("ok"))
	if _, err := o.Submit(context.Background(), testProject, testConv, "Never mind"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	msgs = store.messages()
	user := msgs[2]
	if !user.StartsWithToolResult() || user.PlainText() != "Never mind" {
		t.Errorf("next user message should close t1 and carry the text, got %+v", user.Blocks)
	}
	if err := msgs.Validate(); err != nil {
		t.Errorf("history invalid: %v", err)
	}
	if len(msgs.PendingToolUses()) != 0 {
		t.Error("tool call left pending")
	}
}

func TestSubmitConfigError(t *testing.T) {
	settings := testSettings()
	settings.APIKey = ""
	store := newMemStore(settings)
	p := testutil.NewMockProvider("anthropic")
	o := newTestOrchestrator(store, p, nil, Options{})

	_, err := o.Submit(context.Background(), testProject, testConv, "Hello")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Error("store must not be touched before the key check")
	}
	if len(p.StreamRequests()) != 0 {
		t.Error("no network call may be made")
	}

	// Providers that need no key are allowed through.
	o = newTestOrchestrator(store, p, nil, Options{
		RequiresAPIKey: func(provider string) bool { return provider != "anthropic" },
	})
	if _, err := o.Submit(context.Background(), testProject, testConv, "Hello"); err != nil {
		t.Errorf("keyless provider rejected: %v", err)
	}
}

func TestSubmitProviderError(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")

	var o *Orchestrator
	p.StreamFunc = func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
		if err := callback(model.StreamChunk{Text: "Partial"}); err != nil {
			return model.Message{}, err
		}
		o.Cancel(testConv)
		return model.Message{}, errors.New("overloaded")
	}
	o = newTestOrchestrator(store, p, nil, Options{})

	_, err := o.Submit(context.Background(), testProject, testConv, "Hello")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Provider != "anthropic" || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("unexpected error: %v", err)
	}
	if o.isCancelled(testConv) {
		t.Error("cancel flag should be reset after a provider error")
	}
	if o.Running(testConv) {
		t.Error("turn should no longer be running")
	}
	msgs := store.messages()
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser {
		t.Errorf("only the user message should remain, got %d messages", len(msgs))
	}
}

func TestSubmitStreamsIntoOnePlaceholder(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.StreamFunc = func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
		for _, chunk := range []string{"Hel", "lo ", "there"} {
			if err := callback(model.StreamChunk{Text: chunk}); err != nil {
				return model.Message{}, err
			}
		}
		return testutil.AssistantText("Hello there"), nil
	}
	p.CompleteFunc = func(ctx context.Context, req model.Request) (model.Message, error) {
		return testutil.AssistantText(""), nil
	}
	o := newTestOrchestrator(store, p, nil, Options{})

	if _, err := o.Submit(context.Background(), testProject, testConv, "Hi"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// user message, three deltas, final message
	if len(store.updates) != 5 {
		t.Fatalf("expected 5 store writes, got %d", len(store.updates))
	}
	wantText := []string{"Hel", "Hello ", "Hello there"}
	for i, want := range wantText {
		snap := store.updates[i+1]
		if len(snap) != 2 {
			t.Errorf("delta %d: placeholder must replace, not append (len %d)", i, len(snap))
			continue
		}
		if got := snap[1].PlainText(); got != want {
			t.Errorf("delta %d text: got %q, want %q", i, got, want)
		}
	}
	if len(store.updates[4]) != 2 {
		t.Errorf("final write should hold 2 messages, got %d", len(store.updates[4]))
	}
	if store.name() != "New conversation" {
		t.Error("an empty title must not rename the conversation")
	}
}

func TestSubmitLoopTerminatesWithPairedIDs(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(
		testutil.AssistantToolUse("", "t1", "search", `{"q":"a"}`),
		testutil.AssistantToolUse("", "t2", "search", `{"q":"b"}`),
		testutil.AssistantToolUse("", "t3", "search", `{"q":"c"}`),
		testutil.AssistantText("done"),
	)
	o := newTestOrchestrator(store, p, searchTransport("hit"), Options{})

	result, err := o.Submit(context.Background(), testProject, testConv, "Search three times")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Iterations != 4 {
		t.Errorf("iterations: got %d, want 4", result.Iterations)
	}

	msgs := store.messages()
	if len(msgs) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(msgs))
	}
	for i, id := range []string{"t1", "t2", "t3"} {
		use := msgs[1+2*i].ToolUses()
		res := msgs[2+2*i].ToolResults()
		if len(use) != 1 || len(res) != 1 || use[0].ID != id || res[0].ToolUseID != id {
			t.Errorf("pair %d: use %+v result %+v", i, use, res)
		}
	}
	if err := msgs.Validate(); err != nil {
		t.Errorf("history invalid: %v", err)
	}
}

func TestSubmitParallelToolUsesShareOneResultMessage(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(
		model.Message{Role: model.RoleAssistant, Blocks: []model.ContentBlock{
			model.NewToolUseBlock("a", "search", json.RawMessage(`{"q":"1"}`)),
			model.NewToolUseBlock("b", "search", json.RawMessage(`{"q":"2"}`)),
		}},
		testutil.AssistantText("done"),
	)
	o := newTestOrchestrator(store, p, searchTransport("hit"), Options{})

	if _, err := o.Submit(context.Background(), testProject, testConv, "Two searches"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	results := store.messages()[2].ToolResults()
	if len(results) != 2 || results[0].ToolUseID != "a" || results[1].ToolUseID != "b" {
		t.Errorf("expected results for a and b in order, got %+v", results)
	}
}

func TestSubmitIterationCap(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	calls := 0
	p.StreamFunc = func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
		calls++
		return testutil.AssistantToolUse("", fmt.Sprintf("t%d", calls), "search", `{}`), nil
	}
	o := newTestOrchestrator(store, p, searchTransport("again"), Options{MaxIterations: 3})

	result, err := o.Submit(context.Background(), testProject, testConv, "Loop forever")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !result.LimitReached || calls != 3 {
		t.Errorf("expected the cap to stop after 3 calls, got %d (limit=%v)", calls, result.LimitReached)
	}
	if err := store.messages().Validate(); err != nil {
		t.Errorf("history invalid: %v", err)
	}
}

func TestSubmitRejectsConcurrentTurn(t *testing.T) {
	store := newMemStore(testSettings())
	p := testutil.NewMockProvider("anthropic")
	started := make(chan struct{})
	release := make(chan struct{})
	p.StreamFunc = func(ctx context.Context, req model.Request, callback model.StreamCallback) (model.Message, error) {
		close(started)
		<-release
		return testutil.AssistantText("slow"), nil
	}
	o := newTestOrchestrator(store, p, nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), testProject, testConv, "first")
		done <- err
	}()
	<-started

	if _, err := o.Submit(context.Background(), testProject, testConv, "second"); !errors.Is(err, ErrTurnInProgress) {
		t.Errorf("expected ErrTurnInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first turn failed: %v", err)
	}
}

func TestSubmitElidesOldToolResults(t *testing.T) {
	settings := testSettings()
	settings.ElideToolResults = true

	tests := []struct {
		name       string
		judge      func(ctx context.Context, req model.Request) (model.Message, error)
		wantT1     string
		wantJudged int
	}{
		{
			name: "judge drops everything",
			judge: func(ctx context.Context, req model.Request) (model.Message, error) {
				return testutil.AssistantText("t1: No\nt2: No"), nil
			},
			wantT1:     ElidedContent,
			wantJudged: 1,
		},
		{
			name: "judge keeps t1",
			judge: func(ctx context.Context, req model.Request) (model.Message, error) {
				return testutil.AssistantText("t1: Yes"), nil
			},
			wantT1:     "hit",
			wantJudged: 1,
		},
		{
			name: "judge failure is swallowed",
			judge: func(ctx context.Context, req model.Request) (model.Message, error) {
				return model.Message{}, errors.New("judge offline")
			},
			wantT1:     ElidedContent,
			wantJudged: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(settings)
			p := testutil.NewMockProvider("anthropic")
			p.ScriptStream(
				testutil.AssistantToolUse("", "t1", "search", `{"q":"a"}`),
				testutil.AssistantToolUse("", "t2", "search", `{"q":"b"}`),
				testutil.AssistantText("done"),
			)
			p.CompleteFunc = tt.judge
			o := newTestOrchestrator(store, p, searchTransport("hit"), Options{})

			if _, err := o.Submit(context.Background(), testProject, testConv, "Search twice"); err != nil {
				t.Fatalf("Submit failed: %v", err)
			}

			if n := len(p.CompleteRequests()); n != tt.wantJudged {
				t.Errorf("judge calls: got %d, want %d", n, tt.wantJudged)
			}

			reqs := p.StreamRequests()
			last := reqs[len(reqs)-1].Messages
			if got := last[2].ToolResults()[0].Content; got != tt.wantT1 {
				t.Errorf("t1 in payload: got %q, want %q", got, tt.wantT1)
			}
			if got := last[4].ToolResults()[0].Content; got != "hit" {
				t.Errorf("newest result must never be elided, got %q", got)
			}

			if got := store.messages()[2].ToolResults()[0].Content; got != "hit" {
				t.Errorf("stored history must not be elided, got %q", got)
			}
		})
	}
}

func TestSubmitAfterCancelSkipsJudge(t *testing.T) {
	settings := testSettings()
	settings.ElideToolResults = true
	store := newMemStore(settings,
		model.NewUserText("Search", time.Time{}),
		testutil.AssistantToolUse("", "t0", "search", `{"q":"a"}`),
		model.Message{Role: model.RoleUser, Blocks: []model.ContentBlock{model.NewToolResultBlock("t0", "hit", false)}},
		testutil.AssistantToolUse("", "t1", "search", `{"q":"b"}`),
	)
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(testutil.AssistantText("ok"))
	o := newTestOrchestrator(store, p, searchTransport("unused"), Options{})

	if _, err := o.Submit(context.Background(), testProject, testConv, "Never mind"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if n := len(p.CompleteRequests()); n != 0 {
		t.Errorf("a user text turn must not be judged, got %d judge calls", n)
	}

	payload := p.StreamRequests()[0].Messages
	if got := payload[2].ToolResults()[0].Content; got != "hit" {
		t.Errorf("the newest real tool output must be kept, got %q", got)
	}
	if got := payload[4].PlainText(); got != "Never mind" {
		t.Errorf("user text lost from payload: %q", got)
	}
}

// toolResultFailStore fails every write that ends with tool output.
type toolResultFailStore struct {
	*memStore
}

func (s toolResultFailStore) UpdateMessages(projectID, conversationID string, messages []model.Message) error {
	if n := len(messages); n > 0 && toolOutputOnly(messages[n-1]) {
		return errors.New("disk full")
	}
	return s.memStore.UpdateMessages(projectID, conversationID, messages)
}

func TestSubmitToolResultStoreFailureResetsState(t *testing.T) {
	store := toolResultFailStore{newMemStore(testSettings())}
	p := testutil.NewMockProvider("anthropic")
	p.ScriptStream(testutil.AssistantToolUse("", "t1", "search", `{}`))

	var states []State
	factory := func(model.Settings) (model.Provider, error) { return p, nil }
	o := NewOrchestrator(store, factory, NewDispatcher(searchTransport("hit")), Options{
		OnState: func(_ string, s State) { states = append(states, s) },
	})

	_, err := o.Submit(context.Background(), testProject, testConv, "Search")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected the store error, got %v", err)
	}
	if len(states) == 0 || states[len(states)-1] != StateIdle {
		t.Errorf("state after a failed write should be idle, got %v", states)
	}
	if o.Running(testConv) {
		t.Error("turn should have ended")
	}
}

func TestStateString(t *testing.T) {
	if StateAwaitingToolDecision.String() != "awaiting_tool_decision" {
		t.Errorf("got %q", StateAwaitingToolDecision.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("got %q", State(42).String())
	}
}
