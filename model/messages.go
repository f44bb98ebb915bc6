package model

import "fmt"

// History is the ordered message sequence of one conversation. It is treated
// as a value: every mutation helper returns a new slice and never touches the
// receiver's backing array, so snapshots handed to observers stay consistent.
type History []Message

// WithMessage returns a copy of h with msg appended.
func WithMessage(h History, msg Message) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, msg)
}

// WithLastReplaced returns a copy of h whose last element is msg.
// An empty history yields a single-element history.
func WithLastReplaced(h History, msg Message) History {
	if len(h) == 0 {
		return History{msg}
	}
	out := make(History, len(h))
	copy(out, h)
	out[len(out)-1] = msg
	return out
}

// Clone deep-copies every message.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	for i, m := range h {
		out[i] = m.Clone()
	}
	return out
}

// NewestToolResultID returns the tool_use_id of the most recent tool_result
// block in the history, or "" when there is none.
func (h History) NewestToolResultID() string {
	for i := len(h) - 1; i >= 0; i-- {
		results := h[i].ToolResults()
		if len(results) > 0 {
			return results[len(results)-1].ToolUseID
		}
	}
	return ""
}

// ToolResultIDs returns every tool_result id in order of appearance.
func (h History) ToolResultIDs() []string {
	var ids []string
	for _, m := range h {
		for _, r := range m.ToolResults() {
			ids = append(ids, r.ToolUseID)
		}
	}
	return ids
}

// PendingToolUses returns tool_use blocks that have no matching tool_result yet.
// A non-empty result means the conversation is awaiting tool output.
func (h History) PendingToolUses() []ContentBlock {
	answered := make(map[string]bool)
	for _, m := range h {
		for _, r := range m.ToolResults() {
			answered[r.ToolUseID] = true
		}
	}

	var pending []ContentBlock
	for _, m := range h {
		for _, u := range m.ToolUses() {
			if !answered[u.ID] {
				pending = append(pending, u)
			}
		}
	}
	return pending
}

// Validate checks the tool pairing invariant: each tool_result references a
// tool_use that appears earlier in the conversation and is answered only once.
func (h History) Validate() error {
	seen := make(map[string]bool)
	answered := make(map[string]bool)
	for i, m := range h {
		for _, b := range m.Blocks {
			switch b.Type {
			case BlockToolUse:
				if b.ID == "" {
					return fmt.Errorf("message %d: tool_use without id", i)
				}
				seen[b.ID] = true
			case BlockToolResult:
				if !seen[b.ToolUseID] {
					return fmt.Errorf("message %d: tool_result %q references unknown tool_use", i, b.ToolUseID)
				}
				if answered[b.ToolUseID] {
					return fmt.Errorf("message %d: tool_use %q answered twice", i, b.ToolUseID)
				}
				answered[b.ToolUseID] = true
			}
		}
	}
	return nil
}

// FirstExchange returns the first user message and the first assistant message
// after it, used for title generation.
func (h History) FirstExchange() (user, assistant Message, ok bool) {
	ui := -1
	for i, m := range h {
		if m.Role == RoleUser {
			ui = i
			break
		}
	}
	if ui < 0 {
		return Message{}, Message{}, false
	}
	for _, m := range h[ui+1:] {
		if m.Role == RoleAssistant {
			return h[ui], m, true
		}
	}
	return Message{}, Message{}, false
}
