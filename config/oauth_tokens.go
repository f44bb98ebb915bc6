package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	transport "github.com/mark3labs/mcp-go/client/transport"
)

// FileTokenStore persists one MCP server's OAuth token under the data
// directory, sealed with the same key as the credentials.
type FileTokenStore struct {
	path   string
	sealer *Sealer
	mu     sync.RWMutex
}

func NewFileTokenStore(serverID, dataDir string, sealer *Sealer) *FileTokenStore {
	return &FileTokenStore{
		path:   filepath.Join(dataDir, "oauth", serverID+".json"),
		sealer: sealer,
	}
}

// TokenStore returns the token store for a server. Without loaded credentials
// tokens stay in memory.
func (c *Config) TokenStore(serverID string) transport.TokenStore {
	if c.CredentialStore == nil {
		return transport.NewMemoryTokenStore()
	}
	return NewFileTokenStore(serverID, c.DataDir(), c.CredentialStore.Sealer())
}

// GetToken implements transport.TokenStore.
func (s *FileTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.sealer.readFile(s.path)
	switch {
	case os.IsNotExist(err):
		return nil, transport.ErrNoToken
	case err != nil:
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token transport.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// SaveToken implements transport.TokenStore.
func (s *FileTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := s.sealer.writeFile(s.path, data); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}
