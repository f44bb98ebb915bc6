package ui

import (
	"strings"
	"testing"
	"time"

	"pchat/model"
	"pchat/provider/testutil"
)

func TestTranscriptRender(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC)
	messages := []model.Message{
		model.NewUserText("find go docs\nplease", now),
		testutil.AssistantToolUse("Searching.", "toolu_1", "search", `{"q":"go"}`),
		testutil.ToolResult("toolu_1", "3 results\nmore lines", false),
		testutil.ToolResult("toolu_2", "server unavailable", true),
		testutil.AssistantText("Here they are."),
	}

	out := stripANSI(transcript{width: 80}.render(messages))

	for _, want := range []string{
		"┃ [15:04] You",
		"┃ find go docs",
		"┃ please",
		"Searching.",
		`🔧 search {"q":"go"}`,
		"↳ 3 results",
		"✗ server unavailable",
		"Here they are.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "more lines") {
		t.Error("tool results should be summarized to their first line")
	}
}

func TestTranscriptEmpty(t *testing.T) {
	out := stripANSI(transcript{width: 80}.render(nil))
	if !strings.Contains(out, "No messages yet") {
		t.Errorf("empty transcript = %q", out)
	}
}

func TestTranscriptInFlight(t *testing.T) {
	rendered := 0
	tr := transcript{
		width:    80,
		inFlight: true,
		spinner:  "<spin>",
		markdown: func(s string) string { rendered++; return "MD:" + s },
	}

	tests := []struct {
		name string
		last model.Message
		want string
	}{
		{"empty placeholder shows spinner", model.Message{Role: model.RoleAssistant, Blocks: []model.ContentBlock{}}, "<spin>"},
		{"partial text gets a cursor", testutil.AssistantText("Hel"), "Hel" + streamCursor},
		{"tool input in progress", model.Message{Role: model.RoleAssistant, Blocks: []model.ContentBlock{}, PendingToolInput: `{"q":`}, "preparing tool call"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := []model.Message{testutil.AssistantText("earlier"), tt.last}
			out := stripANSI(tr.render(msgs))
			if !strings.Contains(out, tt.want) {
				t.Errorf("render missing %q:\n%s", tt.want, out)
			}
			if !strings.Contains(out, "MD:earlier") {
				t.Error("finished messages should be rendered as markdown")
			}
		})
	}
	if rendered == 0 {
		t.Error("markdown renderer never called")
	}
}

func TestMarkdownCache(t *testing.T) {
	c := newMarkdownCache()
	render := c.render(60)
	first := render("**bold** and `code`")
	if first == "" {
		t.Fatal("empty render")
	}
	if len(c.entries) != 1 {
		t.Errorf("cache entries = %d", len(c.entries))
	}
	if render("**bold** and `code`") != first {
		t.Error("cached render differs")
	}

	c.render(100)
	if len(c.entries) != 0 {
		t.Error("width change should reset the cache")
	}
}

func TestRenderMarkdownCodeBlock(t *testing.T) {
	out := stripANSI(renderMarkdown("Example:\n\n```go\nfmt.Println(\"hi\")\n```\n\nSee https://go.dev", 60))
	if !strings.Contains(out, "[code]") {
		t.Errorf("code block should be framed:\n%s", out)
	}
	if strings.Contains(out, codeBar) {
		t.Errorf("code bar should be stripped:\n%s", out)
	}
	if !strings.Contains(out, "https://go.dev") {
		t.Errorf("URL lost:\n%s", out)
	}
}

func TestFrameCodeBlocks(t *testing.T) {
	in := "text\n" + codeBar + " line one\n" + codeBar + " line two\nafter"
	out := stripANSI(frameCodeBlocks(in, 24))
	lines := strings.Split(out, "\n")

	want := []string{"text", "", "", "", "line one", "line two", "", "", "", "after"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	if !strings.Contains(lines[2], "[code]") {
		t.Errorf("top rule = %q", lines[2])
	}
	if lines[4] != "line one" || lines[5] != "line two" {
		t.Errorf("code lines = %q", lines[4:6])
	}
	if !strings.HasPrefix(lines[7], "━") {
		t.Errorf("bottom rule = %q", lines[7])
	}
}

func TestWordWrapAndTruncate(t *testing.T) {
	if got := wordWrap("the quick brown fox", 10); got != "the quick\nbrown fox" {
		t.Errorf("wordWrap() = %q", got)
	}
	if got := wordWrap("a\n\nb", 10); got != "a\n\nb" {
		t.Errorf("wordWrap() should keep blank lines, got %q", got)
	}
	if got := truncate("conversation", 8); got != "convers..." && got != "conve..." {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("日本語のテキスト", 6); len([]rune(got)) > 6 {
		t.Errorf("truncate() ignored display width: %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
}
