package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// SecurityMethod selects how secrets are kept on disk.
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// CredentialStore holds provider API keys, read from and written to
// credentials.toml through the store's Sealer.
type CredentialStore struct {
	sealer *Sealer
	keys   map[string]string
}

// NewCredentialStore returns an empty store. A nil sealer keeps keys in plain text.
func NewCredentialStore(sealer *Sealer) *CredentialStore {
	return &CredentialStore{sealer: sealer, keys: make(map[string]string)}
}

// Sealer returns the key shared with OAuth token files, nil for plain text.
func (c *CredentialStore) Sealer() *Sealer {
	return c.sealer
}

// Load replaces the in-memory keys with the file's. A missing file is empty.
func (c *CredentialStore) Load(dataDir string) error {
	data, err := c.sealer.readFile(credentialsPath(dataDir))
	if os.IsNotExist(err) {
		c.keys = make(map[string]string)
		return nil
	}
	if err != nil {
		return err
	}

	var cf credentialsFile
	if _, err := toml.Decode(string(data), &cf); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if cf.Credentials == nil {
		cf.Credentials = make(map[string]string)
	}
	c.keys = cf.Credentials
	return nil
}

// Save writes every key with owner-only permissions.
func (c *CredentialStore) Save(dataDir string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(credentialsFile{Credentials: c.keys}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := c.sealer.writeFile(credentialsPath(dataDir), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) Get(providerID string) string {
	return c.keys[providerID]
}

// Set stores a key in memory. An empty key removes the provider.
func (c *CredentialStore) Set(providerID, apiKey string) {
	if apiKey == "" {
		delete(c.keys, providerID)
		return
	}
	c.keys[providerID] = apiKey
}

// Providers lists the ids that have a stored key.
func (c *CredentialStore) Providers() []string {
	ids := make([]string, 0, len(c.keys))
	for id, key := range c.keys {
		if key != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}
