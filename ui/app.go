// Package ui is the Bubble Tea front end. It submits user text to the
// orchestrator and renders the conversation snapshots the store publishes.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pchat/config"
	"pchat/engine"
	"pchat/model"
	"pchat/provider"
	"pchat/storage"
)

// chrome is the number of rows around the viewport: header, blank line,
// banner, three input rows and the status bar.
const chrome = 7

type App struct {
	cfg   *config.Config
	store *storage.Store
	orch  *engine.Orchestrator
	feed  *Feed
	ctx   context.Context
	stop  context.CancelFunc

	projects  []model.Project
	projectID string
	convID    string
	states    map[string]engine.State
	running   map[string]bool

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	md       *markdownCache

	width  int
	height int
	ready  bool

	banner      string
	bannerStyle lipgloss.Style

	showModal  bool
	modalTitle string
	modalMsg   string
	modalType  ModalType

	showHelp bool
	picker   picker
	search   searchModal
}

// defaultSettings are the config-owned project settings. Projects are
// created with them and brought back in line on every start.
func defaultSettings(cfg *config.Config) model.Settings {
	var servers []string
	for _, s := range cfg.EnabledMCPServers() {
		servers = append(servers, s.ID)
	}
	return model.Settings{
		Provider:         cfg.DefaultProvider,
		Model:            cfg.DefaultModel,
		SystemPrompt:     cfg.DefaultSystemPrompt,
		MCPServers:       servers,
		ElideToolResults: cfg.Engine.ElideToolResults,
		MaxTokens:        cfg.Engine.MaxTokens,
	}
}

// New opens the most recently updated conversation, creating a default
// project and an empty conversation when the store has none.
func New(cfg *config.Config, store *storage.Store, orch *engine.Orchestrator, feed *Feed) (App, error) {
	projects := store.Projects()
	if len(projects) == 0 {
		if _, err := store.CreateProject("Default", defaultSettings(cfg)); err != nil {
			return App{}, fmt.Errorf("failed to create default project: %w", err)
		}
		projects = store.Projects()
	}
	if err := syncSettings(cfg, store, projects); err != nil {
		return App{}, err
	}
	projects = store.Projects()

	var projectID, convID string
	if entries := pickerEntries(projects); len(entries) > 0 {
		projectID = entries[0].ProjectID
		convID = entries[0].Conversation.ID
	} else {
		projectID = projects[0].ID
		conv, err := store.CreateConversation(projectID, "")
		if err != nil {
			return App{}, fmt.Errorf("failed to create conversation: %w", err)
		}
		convID = conv.ID
		projects = store.Projects()
	}

	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	// Enter sends; Alt+Enter inserts a newline.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(successColor)

	ctx, stop := context.WithCancel(context.Background())

	a := App{
		cfg:       cfg,
		store:     store,
		orch:      orch,
		feed:      feed,
		ctx:       ctx,
		stop:      stop,
		projects:  projects,
		projectID: projectID,
		convID:    convID,
		states:    make(map[string]engine.State),
		running:   make(map[string]bool),
		viewport:  viewport.New(0, 0),
		textarea:  ta,
		spinner:   sp,
		md:        newMarkdownCache(),
		picker:    newPicker(),
		search:    newSearchModal(),
	}
	return a, nil
}

// syncSettings applies the configuration to every project so edits to
// config.toml reach existing conversations. Stored API keys are kept.
func syncSettings(cfg *config.Config, store *storage.Store, projects []model.Project) error {
	for _, p := range projects {
		settings := defaultSettings(cfg)
		settings.APIKey = p.Settings.APIKey
		if err := store.UpdateSettings(p.ID, settings); err != nil {
			return fmt.Errorf("failed to update settings of %s: %w", p.Name, err)
		}
	}
	return nil
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.spinner.Tick, a.feed.wait())
}

func (a App) project() (model.Project, bool) {
	for _, p := range a.projects {
		if p.ID == a.projectID {
			return p, true
		}
	}
	return model.Project{}, false
}

func (a App) conversation() (model.Conversation, bool) {
	p, ok := a.project()
	if !ok {
		return model.Conversation{}, false
	}
	return p.Conversation(a.convID)
}

// mergeProjects swaps in changed snapshots by id.
func (a *App) mergeProjects(changed []model.Project) {
	for _, p := range changed {
		replaced := false
		for i := range a.projects {
			if a.projects[i].ID == p.ID {
				a.projects[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			a.projects = append(a.projects, p)
		}
	}
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	a.viewport.Width = width
	a.viewport.Height = height - chrome
	if a.viewport.Height < 1 {
		a.viewport.Height = 1
	}
	a.textarea.SetWidth(width)
	a.ready = true
}

// refresh re-renders the transcript, following the bottom when the view was
// already there.
func (a *App) refresh(gotoBottom bool) {
	conv, ok := a.conversation()
	if !ok {
		a.viewport.SetContent(DimStyle.Render("Conversation not found."))
		return
	}
	follow := gotoBottom || a.viewport.AtBottom()
	t := transcript{
		width:    a.viewport.Width,
		inFlight: a.running[a.convID],
		spinner:  a.spinner.View(),
		markdown: a.md.render(a.viewport.Width),
	}
	a.viewport.SetContent(t.render(conv.Messages))
	if follow {
		a.viewport.GotoBottom()
	}
}

func (a *App) setBanner(style lipgloss.Style, format string, args ...any) {
	a.bannerStyle = style
	a.banner = fmt.Sprintf(format, args...)
}

func (a *App) openModal(title, msg string, t ModalType) {
	a.showModal = true
	a.modalTitle = title
	a.modalMsg = msg
	a.modalType = t
}

func stateLabel(s engine.State) string {
	switch s {
	case engine.StateSending:
		return "Sending..."
	case engine.StateStreaming:
		return "Receiving..."
	case engine.StateAwaitingToolDecision:
		return "Checking for tool calls..."
	case engine.StateExecutingTool:
		return "Running tools..."
	case engine.StateCancelled:
		return "Cancelling..."
	default:
		return ""
	}
}

func (a App) View() string {
	if !a.ready {
		return "Loading pchat..."
	}

	switch {
	case a.showModal:
		return RenderAcknowledgeModal(a.modalTitle, a.modalMsg, a.modalType, a.width, a.height)
	case a.showHelp:
		return renderHelpModal(a.width, a.height)
	case a.search.active:
		return a.search.view(a.width, a.height)
	case a.picker.active:
		return a.picker.view(a.convID, a.width, a.height)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		a.header(),
		"",
		a.viewport.View(),
		a.bannerLine(),
		a.textarea.View(),
		formatStatusBar(
			"Enter", "Send",
			"Esc", "Cancel",
			"Alt+S", "Conversations",
			"Alt+N", "New",
			"Alt+F", "Search",
			"Alt+Y", "Copy",
			"Alt+H", "Help",
			"Alt+Q", "Quit",
		),
	)
}

func (a App) header() string {
	p, _ := a.project()
	conv, _ := a.conversation()

	title := AssistantStyle.Render("pchat") +
		TitleStyle.Render(fmt.Sprintf(" - %s/%s", p.Settings.Provider, provider.StripVendorPrefix(p.Settings.Model))) +
		UserStyle.Render(fmt.Sprintf(" - %s / %s", p.Name, conv.Name))
	if servers := p.Settings.MCPServers; len(servers) > 0 {
		title += DimStyle.Render(" | 🔌 " + strings.Join(servers, ", "))
	}
	return lipgloss.NewStyle().MaxWidth(a.width).Render(title)
}

func (a App) bannerLine() string {
	if a.running[a.convID] {
		label := stateLabel(a.states[a.convID])
		if label == "" {
			label = "Working..."
		}
		return a.spinner.View() + " " + DimStyle.Render(label+"  (Esc to cancel)")
	}
	if a.banner == "" {
		return ""
	}
	return a.bannerStyle.Render(truncate(a.banner, a.width))
}
