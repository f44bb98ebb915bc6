package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType is the discriminator of a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// CacheControl is a provider hint that the prompt prefix up to and including
// the annotated block may be cached.
type CacheControl struct {
	Type string `json:"type"`
}

// EphemeralCache returns the only cache hint providers currently accept.
func EphemeralCache() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// ContentBlock is a tagged union over text, tool_use and tool_result blocks.
// Only the fields relevant to Type are populated.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// NewTextBlock builds a text block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewToolUseBlock builds a tool_use block. A nil input is sent as an empty object.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock builds a tool_result block answering the tool_use with toolUseID.
func NewToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message represents a chat message in a conversation.
//
// Content is either plain text (Blocks == nil) or an ordered list of content
// blocks. Providers accept both forms; the shaper normalizes plain text into
// a single text block where it needs to annotate it.
type Message struct {
	Role      Role
	Text      string
	Blocks    []ContentBlock
	Timestamp time.Time

	// PendingToolInput holds partial tool-input JSON while a tool_use block is
	// still streaming. Never sent to a provider.
	PendingToolInput string
}

// NewUserText returns a plain-text user message stamped with now.
func NewUserText(text string, now time.Time) Message {
	return Message{Role: RoleUser, Text: text, Timestamp: now}
}

// IsPlain reports whether the message carries plain-text content.
func (m Message) IsPlain() bool {
	return m.Blocks == nil
}

// Normalized returns the content as blocks, converting plain text to a single
// text block. The returned slice is always a fresh copy.
func (m Message) Normalized() []ContentBlock {
	if m.IsPlain() {
		return []ContentBlock{NewTextBlock(m.Text)}
	}
	return cloneBlocks(m.Blocks)
}

// FirstBlock returns the first content block, normalizing plain text.
func (m Message) FirstBlock() (ContentBlock, bool) {
	if m.IsPlain() {
		return NewTextBlock(m.Text), true
	}
	if len(m.Blocks) == 0 {
		return ContentBlock{}, false
	}
	return m.Blocks[0], true
}

// StartsWithToolResult reports whether the first block is a tool_result.
func (m Message) StartsWithToolResult() bool {
	b, ok := m.FirstBlock()
	return ok && b.Type == BlockToolResult
}

// ToolUses returns the tool_use blocks of the message in order.
func (m Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// ToolResults returns the tool_result blocks of the message in order.
func (m Message) ToolResults() []ContentBlock {
	var results []ContentBlock
	for _, b := range m.Blocks {
		if b.Type == BlockToolResult {
			results = append(results, b)
		}
	}
	return results
}

// HasToolTraffic reports whether the message contains a tool_use or tool_result block.
func (m Message) HasToolTraffic() bool {
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse || b.Type == BlockToolResult {
			return true
		}
	}
	return false
}

// PlainText concatenates the text blocks (or returns the plain text).
func (m Message) PlainText() string {
	if m.IsPlain() {
		return m.Text
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.Blocks != nil {
		c.Blocks = cloneBlocks(m.Blocks)
	}
	return c
}

func cloneBlocks(blocks []ContentBlock) []ContentBlock {
	out := make([]ContentBlock, len(blocks))
	for i, b := range blocks {
		if b.Input != nil {
			b.Input = append(json.RawMessage(nil), b.Input...)
		}
		if b.CacheControl != nil {
			cc := *b.CacheControl
			b.CacheControl = &cc
		}
		out[i] = b
	}
	return out
}

type messageJSON struct {
	Role             Role            `json:"role"`
	Content          json.RawMessage `json:"content"`
	Timestamp        time.Time       `json:"timestamp"`
	PendingToolInput string          `json:"pendingToolInput,omitempty"`
}

// MarshalJSON encodes content as a string for plain text and as an array of
// blocks otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	var content any = m.Blocks
	if m.IsPlain() {
		content = m.Text
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{
		Role:             m.Role,
		Content:          raw,
		Timestamp:        m.Timestamp,
		PendingToolInput: m.PendingToolInput,
	})
}

// UnmarshalJSON accepts both content encodings.
func (m *Message) UnmarshalJSON(data []byte) error {
	var aux messageJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message{Role: aux.Role, Timestamp: aux.Timestamp, PendingToolInput: aux.PendingToolInput}

	content := strings.TrimSpace(string(aux.Content))
	switch {
	case content == "" || content == "null":
		return nil
	case strings.HasPrefix(content, `"`):
		return json.Unmarshal(aux.Content, &m.Text)
	case strings.HasPrefix(content, "["):
		blocks := []ContentBlock{}
		if err := json.Unmarshal(aux.Content, &blocks); err != nil {
			return fmt.Errorf("failed to decode content blocks: %w", err)
		}
		m.Blocks = blocks
		return nil
	default:
		return fmt.Errorf("unsupported message content: %.20s", content)
	}
}
