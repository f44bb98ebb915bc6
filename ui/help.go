package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type helpEntry struct {
	key  string
	desc string
}

func helpSection(heading string, entries []helpEntry) string {
	lines := []string{lipgloss.NewStyle().Foreground(accentColor).Render("## " + heading)}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("• %-13s %s", e.key, e.desc))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderHelpModal(width, height int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor).
		Render("pchat - Keyboard Shortcuts")

	column1 := lipgloss.JoinVertical(lipgloss.Left,
		helpSection("Conversations", []helpEntry{
			{"Alt+S", "Conversation picker"},
			{"Alt+N", "New conversation"},
			{"Alt+F", "Search all conversations"},
			{"Alt+X", "Export conversation"},
			{"Alt+H", "Toggle this help"},
			{"Alt+Q", "Quit"},
		}),
		"",
		helpSection("Picker", []helpEntry{
			{"/", "Fuzzy filter"},
			{"n", "New conversation"},
			{"r / R", "Rename conversation / project"},
			{"d / D", "Delete conversation / project"},
			{"x", "Export conversation"},
		}),
	)

	column2 := lipgloss.JoinVertical(lipgloss.Left,
		helpSection("Chat", []helpEntry{
			{"Enter", "Send message"},
			{"Alt+Enter", "New line"},
			{"Esc", "Cancel the running reply"},
			{"Alt+Y", "Copy last reply"},
		}),
		"",
		helpSection("Scrolling", []helpEntry{
			{"Alt+J/K", "Scroll one line"},
			{"PgDn/PgUp", "Half page"},
			{"Alt+G", "Jump to top"},
			{"Alt+Shift+G", "Jump to bottom"},
		}),
	)

	columnStyle := lipgloss.NewStyle().Width(42).PaddingLeft(4)
	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		columnStyle.Render(column1),
		columnStyle.Render(column2),
	)

	footer := DimStyle.Render("Press Alt+H or Esc to close this help")

	content := lipgloss.JoinVertical(lipgloss.Center, title, "", columns, "", footer)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpBox.Render(content))
}
