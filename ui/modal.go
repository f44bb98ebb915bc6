package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ModalType determines the title color of a modal.
type ModalType int

const (
	ModalTypeInfo ModalType = iota
	ModalTypeWarning
	ModalTypeError
)

func (t ModalType) color() lipgloss.Color {
	switch t {
	case ModalTypeWarning:
		return warningColor
	case ModalTypeError:
		return dangerColor
	default:
		return accentColor
	}
}

// RenderAcknowledgeModal renders a modal dismissed with Enter.
func RenderAcknowledgeModal(title, message string, modalType ModalType, width, height int) string {
	return renderCenteredModal(title, message, "Press Enter to acknowledge", modalType, width, height)
}

func renderCenteredModal(title, message, footer string, modalType ModalType, width, height int) string {
	modalWidth := modalWidthFor(60, width)

	messageStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center)

	var lines []string
	for _, line := range strings.Split(wordWrap(message, modalWidth-4), "\n") {
		lines = append(lines, messageStyle.Render(line))
	}
	return RenderThreeSectionModal(title, lines, footer, modalType, modalWidth, width, height)
}

func modalWidthFor(desired, width int) int {
	if desired == 0 {
		desired = 60
	}
	if width < desired+10 {
		desired = width - 10
	}
	if desired < 10 {
		desired = 10
	}
	return desired
}

// RenderThreeSectionModal renders a borderless modal: title, then the message
// lines under a top border, then the footer under another top border.
// messageLines are used as given; blank padding lines are added around them.
func RenderThreeSectionModal(title string, messageLines []string, footer string, modalType ModalType, desiredWidth, width, height int) string {
	modalWidth := modalWidthFor(desiredWidth, width)

	// runewidth keeps emoji titles centered
	titleWidth := runewidth.StringWidth(title)
	leftPad := (modalWidth - titleWidth) / 2
	if leftPad < 0 {
		leftPad = 0
	}
	rightPad := modalWidth - titleWidth - leftPad
	if rightPad < 0 {
		rightPad = 0
	}
	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(modalType.color()).
		Render(strings.Repeat(" ", leftPad) + title + strings.Repeat(" ", rightPad))

	blank := strings.Repeat(" ", modalWidth)
	contentLines := append([]string{blank}, messageLines...)
	contentLines = append(contentLines, blank)

	messageSection := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Width(modalWidth).
		Render(strings.Join(contentLines, "\n"))

	footerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footer)

	content := strings.Join([]string{titleSection, messageSection, footerSection}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// wordWrap wraps text to width display cells, preserving newlines.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	paragraphs := strings.Split(text, "\n")
	for i, paragraph := range paragraphs {
		words := strings.Fields(paragraph)
		if len(words) > 0 {
			currentLine := words[0]
			for _, word := range words[1:] {
				if runewidth.StringWidth(currentLine)+1+runewidth.StringWidth(word) <= width {
					currentLine += " " + word
				} else {
					result.WriteString(currentLine + "\n")
					currentLine = word
				}
			}
			result.WriteString(currentLine)
		}
		if i < len(paragraphs)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// ErrorModal is a standalone modal for errors that occur before the main UI
// starts, such as a locked data directory.
type ErrorModal struct {
	title   string
	message string
	width   int
	height  int
}

func NewErrorModal(title, message string) ErrorModal {
	return ErrorModal{title: title, message: message}
}

func (m ErrorModal) Init() tea.Cmd {
	return nil
}

func (m ErrorModal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ErrorModal) View() string {
	if m.width < 20 || m.height < 10 {
		return "Terminal too small"
	}
	return renderCenteredModal(m.title, m.message, "Press Enter to quit", ModalTypeError, m.width, m.height)
}
