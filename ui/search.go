package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"pchat/storage"
)

// searchModal searches messages across all conversations.
type searchModal struct {
	active   bool
	input    textinput.Model
	results  []storage.Match
	selected int
}

func newSearchModal() searchModal {
	input := textinput.New()
	input.Prompt = "Search all: "
	input.CharLimit = 100
	return searchModal{input: input}
}

func (s *searchModal) move(delta int) {
	s.selected += delta
	if s.selected >= len(s.results) {
		s.selected = len(s.results) - 1
	}
	if s.selected < 0 {
		s.selected = 0
	}
}

func (s searchModal) current() (storage.Match, bool) {
	if s.selected < 0 || s.selected >= len(s.results) {
		return storage.Match{}, false
	}
	return s.results[s.selected], true
}

func (s searchModal) view(width, height int) string {
	modalWidth := modalWidthFor(80, width)
	listHeight := (height - 14) / 2
	if listHeight < 2 {
		listHeight = 2
	}

	lines := []string{s.input.View(), ""}
	if s.input.Value() != "" && len(s.results) == 0 {
		lines = append(lines, DimStyle.Render("No matches"))
	}

	start := 0
	if s.selected >= listHeight {
		start = s.selected - listHeight + 1
	}
	for i := start; i < len(s.results) && i < start+listHeight; i++ {
		m := s.results[i]
		where := truncate(fmt.Sprintf("%s / %s (%s)", m.ProjectName, m.ConversationName, m.Role), modalWidth-2)
		preview := "  " + truncate(m.Preview, modalWidth-4)
		if i == s.selected {
			lines = append(lines, SelectedStyle.Render(where), SelectedStyle.Render(preview))
			continue
		}
		lines = append(lines, TitleStyle.Render(where), DimStyle.Render(preview))
	}

	style := lipgloss.NewStyle().Width(modalWidth)
	for i := range lines {
		lines[i] = style.Render(lines[i])
	}
	footer := FormatFooter("↑/↓", "Navigate", "Enter", "Open", "Esc", "Close")
	return RenderThreeSectionModal(fmt.Sprintf("Search (%d)", len(s.results)), lines, footer, ModalTypeInfo, modalWidth, width, height)
}
