package ui

import (
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"pchat/model"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

const (
	codeBar      = "┃"
	streamCursor = "▋"
)

// transcript renders a conversation's messages for the viewport.
type transcript struct {
	width int
	// inFlight marks the last message as still streaming: its text is shown
	// raw with a cursor instead of rendered markdown.
	inFlight bool
	spinner  string
	markdown func(string) string
}

func (t transcript) render(messages []model.Message) string {
	if len(messages) == 0 {
		return DimStyle.Render("No messages yet. Start chatting!")
	}

	var b strings.Builder
	for i, msg := range messages {
		last := i == len(messages)-1
		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		if msg.Role == model.RoleUser {
			if results := msg.ToolResults(); len(results) > 0 {
				b.WriteString(t.toolResults(results))
				continue
			}
			b.WriteString(formatUserMessage(timestamp, UserStyle.Render("You"), msg.PlainText()))
			continue
		}

		b.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), t.assistant(msg, last && t.inFlight)))
	}
	return b.String()
}

func (t transcript) assistant(msg model.Message, streaming bool) string {
	var parts []string
	for _, block := range msg.Normalized() {
		switch block.Type {
		case model.BlockText:
			if block.Text == "" {
				continue
			}
			if streaming || t.markdown == nil {
				parts = append(parts, block.Text)
			} else {
				parts = append(parts, strings.TrimRight(t.markdown(block.Text), "\n"))
			}
		case model.BlockToolUse:
			call := fmt.Sprintf("🔧 %s %s", block.Name, string(block.Input))
			parts = append(parts, ToolStyle.Render(truncate(call, t.width-4)))
		}
	}

	if streaming {
		switch {
		case msg.PendingToolInput != "":
			parts = append(parts, ToolStyle.Render("🔧 preparing tool call ")+t.spinner)
		case len(parts) == 0:
			parts = append(parts, t.spinner)
		default:
			parts[len(parts)-1] += streamCursor
		}
	}
	return strings.Join(parts, "\n")
}

func (t transcript) toolResults(results []model.ContentBlock) string {
	var b strings.Builder
	for _, r := range results {
		firstLine := strings.SplitN(strings.TrimSpace(r.Content), "\n", 2)[0]
		if r.IsError {
			b.WriteString(ToolErrorStyle.Render(truncate("  ✗ "+firstLine, t.width-2)) + "\n")
			continue
		}
		b.WriteString(DimStyle.Render(truncate("  ↳ "+firstLine, t.width-2)) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func formatUserMessage(timestamp, role, content string) string {
	bar := UserStyle.Render(codeBar)

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")
	return result.String()
}

// markdownCache memoizes rendered markdown per width.
type markdownCache struct {
	width   int
	entries map[string]string
}

func newMarkdownCache() *markdownCache {
	return &markdownCache{entries: make(map[string]string)}
}

func (c *markdownCache) render(width int) func(string) string {
	if width != c.width {
		c.width = width
		c.entries = make(map[string]string)
	}
	return func(text string) string {
		if out, ok := c.entries[text]; ok {
			return out
		}
		out := renderMarkdown(text, width)
		c.entries[text] = out
		return out
	}
}

// renderMarkdown renders assistant text for the terminal. Autolinking is
// disabled so URLs stay plain text the terminal can detect.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	rendered := string(gomarkdown.Render(p.Parse([]byte(content)), r))

	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks replaces the renderer's bar-prefixed code lines with a
// block framed by horizontal rules.
func frameCodeBlocks(s string, width int) string {
	const darkGray, reset = "\x1b[90m", "\x1b[0m"
	ruleWidth := width - 4
	if ruleWidth < 8 {
		ruleWidth = 8
	}

	topRule := func() string {
		label := "[code]"
		left := (ruleWidth - len(label)) / 2
		right := ruleWidth - len(label) - left
		return darkGray + strings.Repeat("━", left) + reset + label + darkGray + strings.Repeat("━", right) + reset
	}
	bottomRule := darkGray + strings.Repeat("━", ruleWidth) + reset

	var result []string
	inCode := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inCode {
				inCode = true
				result = append(result, "", topRule(), "")
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}
		if inCode {
			result = append(result, "", bottomRule, "")
			inCode = false
		}
		result = append(result, line)
	}
	if inCode {
		result = append(result, "", bottomRule, "")
	}
	return strings.Join(result, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	rest := line[idx+len(codeBar):]
	return strings.TrimPrefix(rest, " ")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
