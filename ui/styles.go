package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	// No backgrounds anywhere: the terminal's transparency is preserved.
	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	// Tool traffic in the transcript
	ToolStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ToolErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	// Banner line between the transcript and the input
	WarningBannerStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Bold(true)

	ErrorBannerStyle = lipgloss.NewStyle().
				Foreground(dangerColor).
				Bold(true)
)

// FormatFooter formats alternating keys and descriptions, rendering the
// descriptions in the accent color.
// Usage: FormatFooter("j/k", "Navigate", "Enter", "Open", "Esc", "Close")
func FormatFooter(parts ...string) string {
	return formatKeys(lipgloss.NewStyle().Foreground(accentColor).Bold(true), parts...)
}

// formatStatusBar is FormatFooter for the main chat, which uses the user color.
func formatStatusBar(parts ...string) string {
	return StatusStyle.Render(formatKeys(lipgloss.NewStyle().Foreground(successColor).Bold(true), parts...))
}

func formatKeys(descStyle lipgloss.Style, parts ...string) string {
	var result []string
	for i := 0; i+1 < len(parts); i += 2 {
		result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
	}
	return strings.Join(result, "  ")
}
