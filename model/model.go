package model

import (
	"encoding/json"
	"time"
)

// Settings configure every orchestration run of a project.
type Settings struct {
	Provider         string   `json:"provider"`
	APIKey           string   `json:"apiKey,omitempty"`
	Model            string   `json:"model"`
	SystemPrompt     string   `json:"systemPrompt,omitempty"`
	MCPServers       []string `json:"mcpServers,omitempty"`
	ElideToolResults bool     `json:"elideToolResults,omitempty"`
	MaxTokens        int      `json:"maxTokens,omitempty"`
}

// DefaultMaxTokens is used when Settings.MaxTokens is unset.
const DefaultMaxTokens = 4096

// TokenLimit returns MaxTokens or DefaultMaxTokens.
func (s Settings) TokenLimit() int {
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return DefaultMaxTokens
}

// Conversation is an ordered chat owned by exactly one project.
type Conversation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Messages    History   `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone deep-copies the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = c.Messages.Clone()
	return out
}

// Project groups conversations that share settings.
type Project struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Settings      Settings       `json:"settings"`
	Conversations []Conversation `json:"conversations"`
	Order         int            `json:"order"`
}

// Clone deep-copies the project including all conversations.
func (p Project) Clone() Project {
	out := p
	out.Settings.MCPServers = append([]string(nil), p.Settings.MCPServers...)
	if p.Conversations != nil {
		out.Conversations = make([]Conversation, len(p.Conversations))
		for i, c := range p.Conversations {
			out.Conversations[i] = c.Clone()
		}
	}
	return out
}

// Conversation returns the conversation with the given id.
func (p Project) Conversation(id string) (Conversation, bool) {
	for _, c := range p.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// ToolDef describes one tool advertised by a tool server.
type ToolDef struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"input_schema"`
	CacheControl *CacheControl  `json:"cache_control,omitempty"`
}

// SchemaJSON returns the input schema encoded as JSON, defaulting to an empty object schema.
func (t ToolDef) SchemaJSON() json.RawMessage {
	if len(t.InputSchema) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return data
}

// ToolServer is an external tool provider; read-only to the engine.
type ToolServer struct {
	ID    string    `json:"id"`
	Tools []ToolDef `json:"tools"`
}

// HasTool reports whether the server advertises a tool with the given name.
func (s ToolServer) HasTool(name string) bool {
	for _, t := range s.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
