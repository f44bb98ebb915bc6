package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"pchat/model"
)

// ElidedContent replaces the content of tool results that were judged no
// longer needed.
const ElidedContent = "elided"

const judgeInstructions = `You are reviewing the tool activity of an ongoing conversation to decide which tool results are still needed to answer the user.
Tool result contents are shown as "elided"; judge from the tool calls that produced them.
For every tool result id listed below, answer on its own line with exactly "<id>: Yes" if the result is still needed or "<id>: No" if it can be dropped.
Do not write anything else.

Tool result ids:
%s`

// judgeLead opens a transcript that would otherwise start with an assistant turn.
const judgeLead = "Tool activity of the conversation so far:"

// SavedSet tracks, per conversation, which tool results the judge decided to
// keep. Membership only: a later "No" removes an id added by an earlier "Yes".
type SavedSet struct {
	mu  sync.Mutex
	ids map[string]map[string]bool
}

// NewSavedSet returns an empty set.
func NewSavedSet() *SavedSet {
	return &SavedSet{ids: make(map[string]map[string]bool)}
}

// Snapshot returns a copy of the saved ids for a conversation.
func (s *SavedSet) Snapshot(conversationID string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.ids[conversationID]))
	for id := range s.ids[conversationID] {
		out[id] = true
	}
	return out
}

// Apply records verdicts for a conversation.
func (s *SavedSet) Apply(conversationID string, verdicts []Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.ids[conversationID]
	if set == nil {
		set = make(map[string]bool)
		s.ids[conversationID] = set
	}
	for _, v := range verdicts {
		if v.Keep {
			set[v.ID] = true
		} else {
			delete(set, v.ID)
		}
	}
}

// Forget drops all state for a conversation.
func (s *SavedSet) Forget(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, conversationID)
}

// Verdict is one parsed judge line.
type Verdict struct {
	ID   string
	Keep bool
}

// ParseVerdicts extracts "<id>: Yes|No" lines from the judge reply, in order.
// Lines without a colon, with an empty id, or with any other answer are skipped.
func ParseVerdicts(reply string) []Verdict {
	var verdicts []Verdict
	for _, line := range strings.Split(reply, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		id := strings.Trim(strings.TrimSpace(line[:idx]), "`\"'*-• ")
		answer := strings.ToLower(strings.Trim(strings.TrimSpace(line[idx+1:]), "`\"'*.! "))
		if id == "" {
			continue
		}
		switch {
		case strings.HasPrefix(answer, "yes"):
			verdicts = append(verdicts, Verdict{ID: id, Keep: true})
		case strings.HasPrefix(answer, "no"):
			verdicts = append(verdicts, Verdict{ID: id, Keep: false})
		}
	}
	return verdicts
}

// JudgeTranscript builds the compact transcript sent to the judge: only
// messages carrying tool traffic, each flattened to text blocks.
//
// A tool-result message becomes one text block holding its result JSON with
// the content replaced by "elided". A tool-use message becomes two text
// blocks: its original text and a JSON dump of the tool_use block.
func JudgeTranscript(messages []model.Message) []model.Message {
	var transcript []model.Message
	for _, msg := range messages {
		if !msg.HasToolTraffic() {
			continue
		}

		var blocks []model.ContentBlock
		if results := msg.ToolResults(); len(results) > 0 {
			for _, r := range results {
				r.Content = ElidedContent
				r.CacheControl = nil
				blocks = append(blocks, model.NewTextBlock(mustJSON(r)))
			}
		} else {
			text := msg.PlainText()
			if text == "" {
				text = "(no text)"
			}
			blocks = append(blocks, model.NewTextBlock(text))
			for _, u := range msg.ToolUses() {
				u.CacheControl = nil
				blocks = append(blocks, model.NewTextBlock(mustJSON(u)))
			}
		}

		transcript = append(transcript, model.Message{Role: msg.Role, Blocks: blocks, Timestamp: msg.Timestamp})
	}
	return transcript
}

// JudgeRequestMessages appends the instruction prompt to a judge transcript.
// The prompt lists every tool result id except exempt. If the transcript ends
// with a user message the prompt is merged into it to keep roles alternating,
// and a transcript starting with an assistant turn gets a short user lead-in.
func JudgeRequestMessages(transcript []model.Message, ids []string, exempt string) []model.Message {
	var listed []string
	for _, id := range ids {
		if id != exempt {
			listed = append(listed, id)
		}
	}
	prompt := model.NewTextBlock(fmt.Sprintf(judgeInstructions, strings.Join(listed, "\n")))

	out := make([]model.Message, 0, len(transcript)+2)
	if len(transcript) > 0 && transcript[0].Role != model.RoleUser {
		out = append(out, model.Message{Role: model.RoleUser, Blocks: []model.ContentBlock{model.NewTextBlock(judgeLead)}})
	}
	for _, m := range transcript {
		out = append(out, m.Clone())
	}
	if n := len(out); n > 0 && out[n-1].Role == model.RoleUser {
		out[n-1].Blocks = append(out[n-1].Blocks, prompt)
		return out
	}
	return append(out, model.Message{Role: model.RoleUser, Blocks: []model.ContentBlock{prompt}})
}

// ApplyElision returns a copy of messages in which tool results that are
// neither newest nor saved have their content replaced by "elided".
//
// The message holding the newest result is left untouched. In other
// tool-result messages each tool_result block is elided on its own, so a
// message answering several parallel tool calls keeps one block per id; for
// the usual single-result message this is {...firstBlock, content: "elided"}.
func ApplyElision(messages []model.Message, newest string, saved map[string]bool) []model.Message {
	out := make([]model.Message, len(messages))
	for i, msg := range messages {
		out[i] = msg.Clone()
		if !msg.StartsWithToolResult() || containsResult(msg, newest) {
			continue
		}
		for j, b := range out[i].Blocks {
			if b.Type != model.BlockToolResult || saved[b.ToolUseID] {
				continue
			}
			out[i].Blocks[j].Content = ElidedContent
		}
	}
	return out
}

func containsResult(msg model.Message, id string) bool {
	if id == "" {
		return false
	}
	for _, r := range msg.ToolResults() {
		if r.ToolUseID == id {
			return true
		}
	}
	return false
}

// toolOutputOnly reports whether msg holds nothing but tool results.
func toolOutputOnly(msg model.Message) bool {
	if len(msg.Blocks) == 0 {
		return false
	}
	for _, b := range msg.Blocks {
		if b.Type != model.BlockToolResult {
			return false
		}
	}
	return true
}

// newestToolOutputID is the newest result id in a tool-output-only message.
// Results closing a cancelled turn travel with user text and never count.
func newestToolOutputID(h model.History) string {
	for i := len(h) - 1; i >= 0; i-- {
		if toolOutputOnly(h[i]) {
			results := h[i].Blocks
			return results[len(results)-1].ToolUseID
		}
	}
	return ""
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
