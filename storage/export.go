package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pchat/config"
	"pchat/model"
)

// ConversationExport is the document written by ExportConversation.
type ConversationExport struct {
	Project      string             `json:"project"`
	Settings     model.Settings     `json:"settings"`
	Conversation model.Conversation `json:"conversation"`
	ExportedAt   time.Time          `json:"exportedAt"`
}

// SanitizeFilename replaces characters that are invalid in filenames.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r', '\t':
			return '-'
		}
		return r
	}, name)

	name = strings.Trim(name, "-.")

	if runes := []rune(name); len(runes) > 50 {
		name = string(runes[:50])
	}

	if name == "" {
		name = "conversation"
	}
	return name
}

// GenerateExportPath returns a timestamped path in the user's Downloads
// directory.
func GenerateExportPath(conversationName string, now time.Time) string {
	filename := fmt.Sprintf("pchat-conversation-%s-%s.json",
		SanitizeFilename(conversationName), now.Format("20060102-150405"))
	return filepath.Join(config.GetHomeDir(), "Downloads", filename)
}

// ExportConversation writes a conversation to exportPath as indented JSON.
// The API key is never exported.
func (s *Store) ExportConversation(projectID, conversationID, exportPath string) error {
	p, c, err := s.Conversation(projectID, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	settings := p.Settings
	settings.APIKey = ""
	data, err := json.MarshalIndent(ConversationExport{
		Project:      p.Name,
		Settings:     settings,
		Conversation: c,
		ExportedAt:   s.opts.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// Exports contain conversation content: user-only access.
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
