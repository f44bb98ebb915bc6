package storage

import (
	"strings"
	"time"
	"unicode/utf8"

	"pchat/model"
)

const previewLength = 100

// Match is one message containing a search query.
type Match struct {
	ProjectID        string
	ProjectName      string
	ConversationID   string
	ConversationName string
	MessageIndex     int
	Role             model.Role
	Preview          string
	Timestamp        time.Time
}

// Search finds messages across all projects whose text or tool output
// contains query, case-insensitively.
func (s *Store) Search(query string) []Match {
	if query == "" {
		return []Match{}
	}
	var matches []Match
	for _, p := range s.Projects() {
		for _, c := range p.Conversations {
			for _, m := range SearchMessages(c.Messages, query) {
				m.ProjectID = p.ID
				m.ProjectName = p.Name
				m.ConversationID = c.ID
				m.ConversationName = c.Name
				matches = append(matches, m)
			}
		}
	}
	return matches
}

// SearchMessages searches a single conversation's messages.
func SearchMessages(messages []model.Message, query string) []Match {
	if query == "" {
		return []Match{}
	}
	queryLower := strings.ToLower(query)

	var matches []Match
	for i, msg := range messages {
		text := searchableText(msg)
		lower := strings.ToLower(text)
		pos := strings.Index(lower, queryLower)
		if pos < 0 {
			continue
		}
		matches = append(matches, Match{
			MessageIndex: i,
			Role:         msg.Role,
			Preview:      preview(text, utf8.RuneCountInString(lower[:pos])),
			Timestamp:    msg.Timestamp,
		})
	}
	return matches
}

func searchableText(msg model.Message) string {
	if msg.IsPlain() {
		return msg.Text
	}
	var parts []string
	for _, b := range msg.Blocks {
		switch b.Type {
		case model.BlockText:
			parts = append(parts, b.Text)
		case model.BlockToolResult:
			parts = append(parts, b.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// preview returns up to previewLength runes of text starting shortly before
// the rune offset at.
func preview(text string, at int) string {
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	start := at - previewLength/4
	if start < 0 {
		start = 0
	}
	end := start + previewLength
	if end > len(runes) {
		end = len(runes)
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
