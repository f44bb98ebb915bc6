package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"pchat/config"
	"pchat/engine"
	"pchat/model"
	"pchat/storage"
)

type turnDoneMsg struct {
	conversationID string
	result         *engine.TurnResult
	err            error
}

type exportDoneMsg struct {
	path string
	err  error
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		a.refresh(true)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.running[a.convID] {
			a.refresh(false)
		}
		return a, cmd

	case feedMsg:
		a.mergeProjects(msg.projects)
		for id, s := range msg.states {
			a.states[id] = s
		}
		if a.picker.active {
			a.picker.load(a.projects)
		}
		a.refresh(false)
		return a, a.feed.wait()

	case turnDoneMsg:
		delete(a.running, msg.conversationID)
		a.handleTurnDone(msg)
		a.projects = a.store.Projects()
		a.refresh(false)
		return a, nil

	case exportDoneMsg:
		if msg.err != nil {
			a.openModal("Export Failed", msg.err.Error(), ModalTypeError)
		} else {
			a.openModal("Conversation Exported", msg.path, ModalTypeInfo)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleTurnDone(msg turnDoneMsg) {
	// Outcomes of background conversations are only logged.
	if msg.conversationID != a.convID {
		if msg.err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[UI] Turn in %s failed: %v", msg.conversationID, msg.err)
		}
		return
	}

	var cfgErr *engine.ConfigError
	var provErr *engine.ProviderError
	switch {
	case errors.As(msg.err, &cfgErr):
		a.openModal("Configuration Error", cfgErr.Error(), ModalTypeError)
	case errors.As(msg.err, &provErr):
		a.setBanner(ErrorBannerStyle, "%s", provErr.Error())
	case errors.Is(msg.err, engine.ErrTurnInProgress):
		a.setBanner(WarningBannerStyle, "A reply is already in progress")
	case msg.err != nil:
		a.setBanner(ErrorBannerStyle, "Error: %v", msg.err)
	case msg.result == nil:
	case msg.result.Cancelled:
		a.setBanner(WarningBannerStyle, "Operation cancelled")
	case msg.result.LimitReached:
		a.setBanner(WarningBannerStyle, "Stopped after %d model calls", msg.result.Iterations)
	default:
		a.banner = ""
	}
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a.quit()
	}

	switch {
	case a.showModal:
		if s := msg.String(); s == "enter" || s == "esc" {
			a.showModal = false
		}
		return a, nil
	case a.showHelp:
		if s := msg.String(); s == "esc" || s == "alt+h" || s == "q" {
			a.showHelp = false
		}
		return a, nil
	case a.search.active:
		return a.handleSearchKey(msg)
	case a.picker.active:
		return a.handlePickerKey(msg)
	}

	switch msg.String() {
	case "alt+q":
		return a.quit()

	case "esc":
		if a.running[a.convID] || a.orch.Running(a.convID) {
			a.orch.Cancel(a.convID)
			a.states[a.convID] = engine.StateCancelled
		}
		return a, nil

	case "enter":
		return a.send()

	case "alt+s":
		a.picker.active = true
		a.picker.filterMode = false
		a.picker.confirmDelete = false
		a.picker.load(a.projects)
		a.picker.selected = 0
		return a, nil

	case "alt+n":
		a.newConversation(a.projectID)
		return a, nil

	case "alt+f":
		a.search.active = true
		a.search.input.SetValue("")
		a.search.results = nil
		a.search.selected = 0
		a.search.input.Focus()
		return a, textinput.Blink

	case "alt+y":
		a.copyLastReply()
		return a, nil

	case "alt+x":
		return a, a.export(a.projectID, a.convID)

	case "alt+h":
		a.showHelp = true
		return a, nil

	case "pgup", "pgdown", "alt+j", "alt+k", "alt+g", "alt+G":
		switch msg.String() {
		case "pgup":
			a.viewport.HalfPageUp()
		case "pgdown":
			a.viewport.HalfPageDown()
		case "alt+k":
			a.viewport.SetYOffset(a.viewport.YOffset - 1)
		case "alt+j":
			a.viewport.SetYOffset(a.viewport.YOffset + 1)
		case "alt+g":
			a.viewport.GotoTop()
		case "alt+G":
			a.viewport.GotoBottom()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a App) quit() (tea.Model, tea.Cmd) {
	for id := range a.running {
		a.orch.Cancel(id)
	}
	a.stop()
	return a, tea.Quit
}

// send submits the input as a new turn of the current conversation.
func (a App) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.textarea.Value())
	if text == "" {
		return a, nil
	}
	if a.running[a.convID] || a.orch.Running(a.convID) {
		a.setBanner(WarningBannerStyle, "Wait for the reply or press Esc to cancel")
		return a, nil
	}

	a.textarea.Reset()
	a.banner = ""
	a.running[a.convID] = true
	a.refresh(true)

	orch, ctx := a.orch, a.ctx
	projectID, convID := a.projectID, a.convID
	return a, func() tea.Msg {
		res, err := orch.Submit(ctx, projectID, convID, text)
		return turnDoneMsg{conversationID: convID, result: res, err: err}
	}
}

func (a *App) open(projectID, convID string) {
	a.projectID = projectID
	a.convID = convID
	a.banner = ""
	a.refresh(true)
}

func (a *App) newConversation(projectID string) {
	conv, err := a.store.CreateConversation(projectID, "")
	if err != nil {
		a.openModal("Error", err.Error(), ModalTypeError)
		return
	}
	a.projects = a.store.Projects()
	a.open(projectID, conv.ID)
}

func (a *App) copyLastReply() {
	conv, _ := a.conversation()
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role != model.RoleAssistant || msg.PlainText() == "" {
			continue
		}
		if err := clipboard.WriteAll(msg.PlainText()); err != nil {
			a.setBanner(ErrorBannerStyle, "Copy failed: %v", err)
			return
		}
		a.setBanner(StatusStyle, "Copied last reply to clipboard")
		return
	}
	a.setBanner(StatusStyle, "Nothing to copy yet")
}

func (a App) export(projectID, convID string) tea.Cmd {
	store := a.store
	name := ""
	for _, p := range a.projects {
		if c, ok := p.Conversation(convID); ok && p.ID == projectID {
			name = c.Name
		}
	}
	return func() tea.Msg {
		path := storage.GenerateExportPath(name, time.Now())
		if err := store.ExportConversation(projectID, convID, path); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

func (a App) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := &a.picker

	if p.confirmDelete {
		switch msg.String() {
		case "y":
			p.confirmDelete = false
			if e, ok := p.current(); ok {
				if p.deleteProject {
					a.deleteProject(e)
				} else {
					a.deleteConversation(e)
				}
			}
		case "n", "esc":
			p.confirmDelete = false
		}
		return a, nil
	}

	if p.renaming != renameNone {
		switch msg.String() {
		case "esc":
			p.renaming = renameNone
			p.rename.Blur()
			return a, nil
		case "enter":
			a.commitRename()
			return a, nil
		}
		var cmd tea.Cmd
		p.rename, cmd = p.rename.Update(msg)
		return a, cmd
	}

	if p.filterMode {
		switch msg.String() {
		case "esc":
			p.filterMode = false
			p.filter.Blur()
			p.filter.SetValue("")
			p.applyFilter()
			return a, nil
		case "enter":
			return a.openSelected()
		case "down", "ctrl+j":
			p.move(1)
			return a, nil
		case "up", "ctrl+k":
			p.move(-1)
			return a, nil
		}
		var cmd tea.Cmd
		p.filter, cmd = p.filter.Update(msg)
		p.applyFilter()
		return a, cmd
	}

	switch msg.String() {
	case "esc", "alt+s", "q":
		p.active = false
	case "j", "down":
		p.move(1)
	case "k", "up":
		p.move(-1)
	case "enter":
		return a.openSelected()
	case "n":
		projectID := a.projectID
		if e, ok := p.current(); ok {
			projectID = e.ProjectID
		}
		p.active = false
		a.newConversation(projectID)
	case "d":
		if e, ok := p.current(); ok {
			if a.running[e.Conversation.ID] {
				a.setBanner(WarningBannerStyle, "Cannot delete a conversation while it is replying")
				p.active = false
				return a, nil
			}
			p.confirmDelete = true
			p.deleteProject = false
		}
	case "D":
		if e, ok := p.current(); ok {
			if a.projectRunning(e.ProjectID) {
				a.setBanner(WarningBannerStyle, "Cannot delete a project while one of its conversations is replying")
				p.active = false
				return a, nil
			}
			p.confirmDelete = true
			p.deleteProject = true
		}
	case "r", "R":
		if e, ok := p.current(); ok {
			p.renaming = renameConversation
			p.rename.SetValue(e.Conversation.Name)
			if msg.String() == "R" {
				p.renaming = renameProject
				p.rename.SetValue(e.ProjectName)
			}
			p.rename.CursorEnd()
			p.rename.Focus()
			return a, textinput.Blink
		}
	case "x":
		if e, ok := p.current(); ok {
			p.active = false
			return a, a.export(e.ProjectID, e.Conversation.ID)
		}
	case "/":
		p.filterMode = true
		p.filter.SetValue("")
		p.filter.Focus()
		p.applyFilter()
		return a, textinput.Blink
	}
	return a, nil
}

func (a App) openSelected() (tea.Model, tea.Cmd) {
	e, ok := a.picker.current()
	a.picker.active = false
	a.picker.filterMode = false
	a.picker.filter.Blur()
	if ok {
		a.open(e.ProjectID, e.Conversation.ID)
	}
	return a, nil
}

func (a *App) deleteConversation(e pickerEntry) {
	if err := a.store.DeleteConversation(e.ProjectID, e.Conversation.ID); err != nil {
		a.openModal("Error", fmt.Sprintf("Failed to delete conversation: %v", err), ModalTypeError)
		return
	}
	a.orch.Forget(e.Conversation.ID)
	a.projects = a.store.Projects()
	a.picker.load(a.projects)

	if e.Conversation.ID != a.convID {
		return
	}
	if entries := pickerEntries(a.projects); len(entries) > 0 {
		a.open(entries[0].ProjectID, entries[0].Conversation.ID)
		return
	}
	a.newConversation(e.ProjectID)
	a.picker.load(a.projects)
}

func (a *App) commitRename() {
	p := &a.picker
	target := p.renaming
	p.renaming = renameNone
	p.rename.Blur()

	e, ok := p.current()
	if !ok {
		return
	}
	var err error
	if target == renameProject {
		err = a.store.RenameProject(e.ProjectID, p.rename.Value())
	} else {
		err = a.store.Rename(e.ProjectID, e.Conversation.ID, p.rename.Value())
	}
	if err != nil {
		a.setBanner(ErrorBannerStyle, "Rename failed: %v", err)
		return
	}
	a.projects = a.store.Projects()
	p.load(a.projects)
}

func (a App) projectRunning(projectID string) bool {
	p, err := a.store.Project(projectID)
	if err != nil {
		return false
	}
	for _, c := range p.Conversations {
		if a.running[c.ID] || a.orch.Running(c.ID) {
			return true
		}
	}
	return false
}

// deleteProject removes a project and moves to the newest remaining
// conversation, recreating the default project when none is left.
func (a *App) deleteProject(e pickerEntry) {
	doomed, _ := a.store.Project(e.ProjectID)
	if err := a.store.DeleteProject(e.ProjectID); err != nil {
		a.openModal("Error", fmt.Sprintf("Failed to delete project: %v", err), ModalTypeError)
		return
	}
	for _, c := range doomed.Conversations {
		a.orch.Forget(c.ID)
	}
	a.projects = a.store.Projects()
	a.picker.load(a.projects)

	if e.ProjectID != a.projectID {
		return
	}
	if entries := pickerEntries(a.projects); len(entries) > 0 {
		a.open(entries[0].ProjectID, entries[0].Conversation.ID)
		return
	}
	projectID := ""
	if len(a.projects) > 0 {
		projectID = a.projects[0].ID
	} else {
		p, err := a.store.CreateProject("Default", defaultSettings(a.cfg))
		if err != nil {
			a.openModal("Error", fmt.Sprintf("Failed to create project: %v", err), ModalTypeError)
			return
		}
		projectID = p.ID
	}
	a.newConversation(projectID)
	a.picker.load(a.projects)
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &a.search
	switch msg.String() {
	case "esc":
		s.active = false
		s.input.Blur()
		return a, nil
	case "enter":
		m, ok := s.current()
		s.active = false
		s.input.Blur()
		if ok {
			a.open(m.ProjectID, m.ConversationID)
		}
		return a, nil
	case "down", "ctrl+j":
		s.move(1)
		return a, nil
	case "up", "ctrl+k":
		s.move(-1)
		return a, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	s.results = a.store.Search(s.input.Value())
	s.selected = 0
	return a, cmd
}
