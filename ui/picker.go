package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"pchat/model"
)

// pickerEntry is one conversation in the picker.
type pickerEntry struct {
	ProjectID    string
	ProjectName  string
	Conversation model.Conversation
}

func (e pickerEntry) label() string {
	return e.ProjectName + " / " + e.Conversation.Name
}

type renameTarget int

const (
	renameNone renameTarget = iota
	renameConversation
	renameProject
)

// picker lists conversations of every project, newest first.
type picker struct {
	active        bool
	entries       []pickerEntry
	filtered      []pickerEntry
	selected      int
	filterMode    bool
	filter        textinput.Model
	confirmDelete bool
	deleteProject bool // confirmDelete applies to the whole project
	renaming      renameTarget
	rename        textinput.Model
}

func newPicker() picker {
	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64
	rename := textinput.New()
	rename.Prompt = "Name: "
	rename.CharLimit = 100
	return picker{filter: filter, rename: rename}
}

func pickerEntries(projects []model.Project) []pickerEntry {
	var entries []pickerEntry
	for _, p := range projects {
		for _, c := range p.Conversations {
			entries = append(entries, pickerEntry{ProjectID: p.ID, ProjectName: p.Name, Conversation: c})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Conversation.LastUpdated.After(entries[j].Conversation.LastUpdated)
	})
	return entries
}

// load replaces the entries, keeping the filter and clamping the selection.
func (p *picker) load(projects []model.Project) {
	p.entries = pickerEntries(projects)
	p.applyFilter()
}

func (p *picker) applyFilter() {
	query := p.filter.Value()
	if !p.filterMode || query == "" {
		p.filtered = p.entries
	} else {
		targets := make([]string, len(p.entries))
		for i, e := range p.entries {
			targets[i] = e.label()
		}
		matches := fuzzy.Find(query, targets)
		p.filtered = make([]pickerEntry, len(matches))
		for i, m := range matches {
			p.filtered[i] = p.entries[m.Index]
		}
	}
	if p.selected >= len(p.filtered) {
		p.selected = len(p.filtered) - 1
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

func (p *picker) move(delta int) {
	p.selected += delta
	if p.selected >= len(p.filtered) {
		p.selected = len(p.filtered) - 1
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

func (p picker) current() (pickerEntry, bool) {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return pickerEntry{}, false
	}
	return p.filtered[p.selected], true
}

func (p picker) view(currentConversation string, width, height int) string {
	modalWidth := modalWidthFor(70, width)
	listHeight := height - 12
	if listHeight < 3 {
		listHeight = 3
	}

	var lines []string
	if p.renaming != renameNone {
		lines = append(lines, p.rename.View(), "")
	} else if p.filterMode {
		lines = append(lines, p.filter.View(), "")
	}

	if len(p.filtered) == 0 {
		lines = append(lines, DimStyle.Render("No conversations"))
	}

	start := 0
	if p.selected >= listHeight {
		start = p.selected - listHeight + 1
	}
	for i := start; i < len(p.filtered) && i < start+listHeight; i++ {
		e := p.filtered[i]
		marker := "  "
		if e.Conversation.ID == currentConversation {
			marker = "● "
		}
		updated := e.Conversation.LastUpdated.Format("Jan 2 15:04")
		labelWidth := modalWidth - len(updated) - 5
		label := runewidth.FillRight(truncate(e.label(), labelWidth), labelWidth)
		line := marker + label + " " + DimStyle.Render(updated)
		if i == p.selected {
			line = SelectedStyle.Render(stripANSI(line))
		}
		lines = append(lines, line)
	}

	footer := FormatFooter("j/k", "Navigate", "Enter", "Open", "n", "New", "r", "Rename", "d", "Delete", "x", "Export", "/", "Filter", "Esc", "Close")
	title := "Conversations"
	modalType := ModalTypeInfo
	e, ok := p.current()
	switch {
	case p.confirmDelete && ok:
		title = fmt.Sprintf("Delete %q?", truncate(e.Conversation.Name, 40))
		if p.deleteProject {
			title = fmt.Sprintf("Delete project %q and all its conversations?", truncate(e.ProjectName, 30))
		}
		footer = FormatFooter("y", "Delete", "n", "Keep")
		modalType = ModalTypeWarning
	case p.renaming == renameConversation:
		title = "Rename conversation"
		footer = FormatFooter("Enter", "Save", "Esc", "Cancel")
	case p.renaming == renameProject:
		title = "Rename project"
		footer = FormatFooter("Enter", "Save", "Esc", "Cancel")
	}

	style := lipgloss.NewStyle().Width(modalWidth)
	for i := range lines {
		lines[i] = style.Render(strings.TrimRight(lines[i], " "))
	}
	return RenderThreeSectionModal(title, lines, footer, modalType, modalWidth, width, height)
}
