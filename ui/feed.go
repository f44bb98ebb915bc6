package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"pchat/engine"
	"pchat/model"
)

// Feed carries store snapshots and orchestration states from engine
// goroutines into the Bubble Tea loop. Updates are coalesced: only the
// newest snapshot per project and the newest state per conversation are
// delivered, so a slow render never blocks a streaming turn.
type Feed struct {
	mu       sync.Mutex
	projects map[string]model.Project
	states   map[string]engine.State
	notify   chan struct{}
}

func NewFeed() *Feed {
	return &Feed{
		projects: make(map[string]model.Project),
		states:   make(map[string]engine.State),
		notify:   make(chan struct{}, 1),
	}
}

// Project records a changed project. Pass it to storage.Store.Subscribe.
func (f *Feed) Project(p model.Project) {
	f.mu.Lock()
	f.projects[p.ID] = p
	f.mu.Unlock()
	f.signal()
}

// State records a state transition. Pass it as engine.Options.OnState.
func (f *Feed) State(conversationID string, s engine.State) {
	f.mu.Lock()
	f.states[conversationID] = s
	f.mu.Unlock()
	f.signal()
}

func (f *Feed) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// feedMsg is one batch of coalesced updates.
type feedMsg struct {
	projects []model.Project
	states   map[string]engine.State
}

// take drains the pending updates.
func (f *Feed) take() feedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := feedMsg{states: f.states}
	for _, p := range f.projects {
		msg.projects = append(msg.projects, p)
	}
	f.projects = make(map[string]model.Project)
	f.states = make(map[string]engine.State)
	return msg
}

// wait blocks until updates are pending.
func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		<-f.notify
		return f.take()
	}
}
