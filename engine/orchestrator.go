package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pchat/config"
	"pchat/model"
)

// State is the orchestration state of one conversation.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateAwaitingToolDecision
	StateExecutingTool
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateAwaitingToolDecision:
		return "awaiting_tool_decision"
	case StateExecutingTool:
		return "executing_tool"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultMaxIterations bounds provider round-trips within one turn.
const DefaultMaxIterations = 25

// judgeMaxTokens bounds the tool result judging call.
const judgeMaxTokens = 1024

// cancelledToolResult answers tool calls that were never executed because the
// user cancelled.
const cancelledToolResult = "Tool call cancelled by the user before it ran."

// ConversationStore is where the orchestrator reads settings and history and
// publishes message snapshots. Implementations must replace the message array
// wholesale; calling either mutator twice with the same input is harmless.
type ConversationStore interface {
	Conversation(projectID, conversationID string) (model.Project, model.Conversation, error)
	UpdateMessages(projectID, conversationID string, messages []model.Message) error
	Rename(projectID, conversationID, name string) error
}

// ProviderFactory builds a provider for a project's settings.
type ProviderFactory func(settings model.Settings) (model.Provider, error)

// Options tune an Orchestrator. Zero values select defaults.
type Options struct {
	// CacheBoundary is the trailing message window normalized by the shaper.
	CacheBoundary int
	// CacheTools marks the last tool definition cache-eligible.
	CacheTools bool
	// MaxIterations caps provider round-trips per turn.
	MaxIterations int
	// RequiresAPIKey reports whether a provider needs a key. Nil means every
	// provider does.
	RequiresAPIKey func(provider string) bool
	// OnState observes state transitions.
	OnState func(conversationID string, state State)
	// Now is the clock used for message timestamps.
	Now func() time.Time
}

// TurnResult summarizes a finished turn.
type TurnResult struct {
	// Iterations is the number of main provider calls made.
	Iterations int
	// Cancelled is set when the user cancelled; not an error.
	Cancelled bool
	// LimitReached is set when the iteration cap ended the turn.
	LimitReached bool
	// Title is the generated conversation title, if one was set.
	Title string
	// Final is the last assistant message.
	Final model.Message
}

// Orchestrator drives the request, tool-use, continue loop for conversations.
// Turns for different conversations may run in parallel; a conversation runs
// at most one turn at a time.
type Orchestrator struct {
	store      ConversationStore
	providers  ProviderFactory
	dispatcher *Dispatcher
	saved      *SavedSet
	opts       Options

	mu        sync.Mutex
	running   map[string]bool
	cancelled map[string]bool
}

// NewOrchestrator wires the collaborators of the engine.
func NewOrchestrator(store ConversationStore, providers ProviderFactory, dispatcher *Dispatcher, opts Options) *Orchestrator {
	if opts.CacheBoundary < 1 {
		opts.CacheBoundary = DefaultCacheBoundary
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil)
	}
	return &Orchestrator{
		store:      store,
		providers:  providers,
		dispatcher: dispatcher,
		saved:      NewSavedSet(),
		opts:       opts,
		running:    make(map[string]bool),
		cancelled:  make(map[string]bool),
	}
}

// Cancel asks the running turn of a conversation to stop at its next
// checkpoint. The in-flight provider call or tool execution is not aborted.
func (o *Orchestrator) Cancel(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled[conversationID] = true
}

// Running reports whether a turn is in flight for the conversation.
func (o *Orchestrator) Running(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[conversationID]
}

// Forget drops per-conversation engine state, e.g. after deletion.
func (o *Orchestrator) Forget(conversationID string) {
	o.saved.Forget(conversationID)
	o.mu.Lock()
	delete(o.cancelled, conversationID)
	o.mu.Unlock()
}

func (o *Orchestrator) isCancelled(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[conversationID]
}

func (o *Orchestrator) begin(conversationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[conversationID] {
		return ErrTurnInProgress
	}
	o.running[conversationID] = true
	delete(o.cancelled, conversationID)
	return nil
}

func (o *Orchestrator) end(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, conversationID)
}

func (o *Orchestrator) clearCancel(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancelled, conversationID)
}

func (o *Orchestrator) setState(conversationID string, s State) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] %s: state -> %s", conversationID, s)
	}
	if o.opts.OnState != nil {
		o.opts.OnState(conversationID, s)
	}
}

// Submit runs one turn: the user's text is appended and the provider is
// called repeatedly until it stops requesting tools, the user cancels, or the
// iteration cap is reached.
//
// Only ConfigError, ProviderError, ErrTurnInProgress and store failures are
// returned as errors. Tool failures are reported to the model, judge and title
// failures are logged.
func (o *Orchestrator) Submit(ctx context.Context, projectID, conversationID, text string) (*TurnResult, error) {
	if err := o.begin(conversationID); err != nil {
		return nil, err
	}
	defer o.end(conversationID)

	project, conv, err := o.store.Conversation(projectID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	settings := project.Settings

	needsKey := o.opts.RequiresAPIKey == nil || o.opts.RequiresAPIKey(settings.Provider)
	if needsKey && settings.APIKey == "" {
		return nil, &ConfigError{Field: "apiKey", Msg: fmt.Sprintf("no API key configured for provider %q", settings.Provider)}
	}
	if settings.Model == "" {
		return nil, &ConfigError{Field: "model", Msg: "no model selected"}
	}
	provider, err := o.providers(settings)
	if err != nil {
		return nil, &ConfigError{Field: "provider", Msg: err.Error()}
	}

	history := model.WithMessage(conv.Messages, o.userMessage(conv.Messages, text))
	if err := o.store.UpdateMessages(projectID, conversationID, history); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	result := &TurnResult{}
	for {
		if o.isCancelled(conversationID) {
			o.setState(conversationID, StateCancelled)
			result.Cancelled = true
			return result, nil
		}
		if result.Iterations >= o.opts.MaxIterations {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] %s: max iterations (%d) reached", conversationID, o.opts.MaxIterations)
			}
			o.setState(conversationID, StateIdle)
			result.LimitReached = true
			return result, nil
		}
		result.Iterations++

		o.setState(conversationID, StateSending)
		req := o.buildRequest(ctx, provider, settings, conversationID, history)

		var final model.Message
		history, final, err = o.stream(ctx, provider, req, projectID, conversationID, history)
		if err != nil {
			o.clearCancel(conversationID)
			o.setState(conversationID, StateIdle)
			return nil, err
		}
		result.Final = final

		o.setState(conversationID, StateAwaitingToolDecision)
		if o.isCancelled(conversationID) {
			o.setState(conversationID, StateCancelled)
			result.Cancelled = true
			return result, nil
		}

		uses := final.ToolUses()
		if len(uses) == 0 {
			if len(history) == 2 {
				result.Title = o.title(ctx, provider, settings, projectID, conversationID, history)
			}
			o.setState(conversationID, StateIdle)
			return result, nil
		}

		o.setState(conversationID, StateExecutingTool)
		results := make([]model.ContentBlock, 0, len(uses))
		for _, use := range uses {
			if o.isCancelled(conversationID) {
				results = append(results, model.NewToolResultBlock(use.ID, cancelledToolResult, true))
				continue
			}
			results = append(results, o.dispatcher.Dispatch(ctx, settings.MCPServers, use))
		}
		history = model.WithMessage(history, model.Message{
			Role:      model.RoleUser,
			Blocks:    results,
			Timestamp: o.opts.Now(),
		})
		if err := o.store.UpdateMessages(projectID, conversationID, history); err != nil {
			o.setState(conversationID, StateIdle)
			return nil, fmt.Errorf("failed to store tool results: %w", err)
		}
	}
}

// userMessage builds the message for submitted text. Tool calls left
// unanswered by a cancelled turn are closed first so the history stays
// acceptable to providers.
func (o *Orchestrator) userMessage(history model.History, text string) model.Message {
	msg := model.NewUserText(text, o.opts.Now())
	pending := history.PendingToolUses()
	if len(pending) == 0 {
		return msg
	}
	blocks := make([]model.ContentBlock, 0, len(pending)+1)
	for _, use := range pending {
		blocks = append(blocks, model.NewToolResultBlock(use.ID, cancelledToolResult, true))
	}
	msg.Blocks = append(blocks, model.NewTextBlock(text))
	msg.Text = ""
	return msg
}

func (o *Orchestrator) buildRequest(ctx context.Context, p model.Provider, settings model.Settings, conversationID string, history model.History) model.Request {
	payload := Shape(history, o.opts.CacheBoundary)
	if settings.ElideToolResults {
		payload = o.elide(ctx, p, settings, conversationID, history, payload)
	}
	return model.Request{
		Model:     settings.Model,
		MaxTokens: settings.TokenLimit(),
		System:    settings.SystemPrompt,
		Messages:  payload,
		Tools:     ShapeTools(o.dispatcher.Servers(), settings.MCPServers, o.opts.CacheTools),
	}
}

// stream runs the main provider call. Deltas grow a single placeholder
// assistant message which is published after each chunk and finally replaced
// by the structured reply.
func (o *Orchestrator) stream(ctx context.Context, p model.Provider, req model.Request, projectID, conversationID string, history model.History) (model.History, model.Message, error) {
	base := history
	placeholder := model.Message{
		Role:      model.RoleAssistant,
		Blocks:    []model.ContentBlock{model.NewTextBlock("")},
		Timestamp: o.opts.Now(),
	}
	placed := false

	callback := func(chunk model.StreamChunk) error {
		if !placed {
			o.setState(conversationID, StateStreaming)
		}
		placeholder.Blocks[0].Text += chunk.Text
		placeholder.PendingToolInput += chunk.ToolInput

		snapshot := placeholder.Clone()
		if placed {
			history = model.WithLastReplaced(history, snapshot)
		} else {
			history = model.WithMessage(history, snapshot)
			placed = true
		}
		return o.store.UpdateMessages(projectID, conversationID, history)
	}

	final, err := p.Stream(ctx, req, callback)
	if err != nil {
		if placed {
			if uerr := o.store.UpdateMessages(projectID, conversationID, base); uerr != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] %s: failed to drop stream placeholder: %v", conversationID, uerr)
			}
		}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] %s: provider error: %v", conversationID, err)
		}
		return base, model.Message{}, &ProviderError{Provider: p.Name(), Err: err}
	}

	final.Role = model.RoleAssistant
	final.PendingToolInput = ""
	final.Timestamp = placeholder.Timestamp
	if placed {
		history = model.WithLastReplaced(history, final)
	} else {
		history = model.WithMessage(history, final)
	}
	if err := o.store.UpdateMessages(projectID, conversationID, history); err != nil {
		return history, final, fmt.Errorf("failed to store assistant message: %w", err)
	}
	return history, final, nil
}

// elide consults the judge when the payload ends with tool output and then
// rewrites the payload, never the stored history. A user turn that closes
// cancelled tool calls alongside its text is not tool output.
func (o *Orchestrator) elide(ctx context.Context, p model.Provider, settings model.Settings, conversationID string, history model.History, payload []model.Message) []model.Message {
	newest := newestToolOutputID(history)
	if n := len(payload); n > 0 && toolOutputOnly(payload[n-1]) {
		if err := o.judge(ctx, p, settings, conversationID, history, newest); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Engine] %s: %v", conversationID, err)
			}
		}
	}
	return ApplyElision(payload, newest, o.saved.Snapshot(conversationID))
}

func (o *Orchestrator) judge(ctx context.Context, p model.Provider, settings model.Settings, conversationID string, history model.History, newest string) error {
	ids := history.ToolResultIDs()
	if len(ids) == 0 || (len(ids) == 1 && ids[0] == newest) {
		return nil
	}

	req := model.Request{
		Model:     settings.Model,
		MaxTokens: judgeMaxTokens,
		Messages:  JudgeRequestMessages(JudgeTranscript(history), ids, newest),
	}
	reply, err := p.Complete(ctx, req)
	if err != nil {
		return &ElisionJudgeError{Err: err}
	}

	verdicts := ParseVerdicts(reply.PlainText())
	if len(verdicts) == 0 {
		return &ElisionJudgeError{Err: errors.New("reply contained no verdict lines")}
	}
	o.saved.Apply(conversationID, verdicts)
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] %s: judge returned %d verdicts", conversationID, len(verdicts))
	}
	return nil
}

func (o *Orchestrator) title(ctx context.Context, p model.Provider, settings model.Settings, projectID, conversationID string, history model.History) string {
	title, err := generateTitle(ctx, p, settings, history)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] %s: %v", conversationID, err)
		}
		return ""
	}
	if title == "" {
		return ""
	}
	if err := o.store.Rename(projectID, conversationID, title); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] %s: rename failed: %v", conversationID, err)
		}
		return ""
	}
	return title
}
