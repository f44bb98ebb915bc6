package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// StorageConfig selects the key-value backend conversations are kept in.
type StorageConfig struct {
	Backend string `toml:"backend"` // "json" or "sqlite"
}

// EngineConfig tunes the orchestration loop.
type EngineConfig struct {
	CacheBoundary    int  `toml:"cache_boundary"`
	MaxIterations    int  `toml:"max_iterations"`
	CacheTools       bool `toml:"cache_tools"`
	ElideToolResults bool `toml:"elide_tool_results"`
	MaxTokens        int  `toml:"max_tokens,omitempty"`
}

type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"` // "plaintext" or "ssh_key"
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	DefaultProvider     string            `toml:"default_provider"`
	DefaultModel        string            `toml:"default_model"`
	DefaultSystemPrompt string            `toml:"default_system_prompt,omitempty"`
	Storage             StorageConfig     `toml:"storage"`
	Engine              EngineConfig      `toml:"engine"`
	Security            SecurityConfig    `toml:"security"`
	Providers           []ProviderConfig  `toml:"providers,omitempty"`
	MCPServers          []MCPServerConfig `toml:"mcp_servers,omitempty"`
}

// Config is the merged runtime configuration.
type Config struct {
	DataDirectory       string
	DefaultProvider     string
	DefaultModel        string
	DefaultSystemPrompt string
	Storage             StorageConfig
	Engine              EngineConfig
	Security            SecurityConfig
	Providers           []ProviderConfig
	MCPServers          []MCPServerConfig

	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyUserConfig(userCfg *UserConfig) {
	c.DefaultProvider = userCfg.DefaultProvider
	c.DefaultModel = userCfg.DefaultModel
	c.DefaultSystemPrompt = userCfg.DefaultSystemPrompt
	c.Storage = userCfg.Storage
	c.Engine = userCfg.Engine
	c.Security = userCfg.Security
	c.Providers = userCfg.Providers
	c.MCPServers = userCfg.MCPServers
}

func (c *Config) applyEnvOverrides() {
	if provider := os.Getenv("PCHAT_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
	if model := os.Getenv("PCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("PCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("PCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: the log may contain prompts and tool output
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (PCHAT_DEBUG=%s) ===", os.Getenv("PCHAT_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load reads settings.toml and the data directory's config.toml, creating
// commented defaults on first run, then applies environment overrides.
func Load() (*Config, error) {
	defaults := DefaultUserConfig()
	cfg := &Config{DataDirectory: DefaultSystemConfig().DataDirectory}
	cfg.applyUserConfig(defaults)

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg.DataDirectory = systemCfg.DataDirectory

	// PCHAT_DATA_DIR decides which config.toml is read.
	if dataDir := os.Getenv("PCHAT_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()
	cfg.fillDefaults(defaults)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cfg.openCredentials()
	if err != nil {
		return nil, err
	}
	cfg.CredentialStore = store

	return cfg, nil
}

func (c *Config) fillDefaults(defaults *UserConfig) {
	if c.DefaultProvider == "" {
		c.DefaultProvider = defaults.DefaultProvider
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Engine.CacheBoundary < 1 {
		c.Engine.CacheBoundary = defaults.Engine.CacheBoundary
	}
	if c.Engine.MaxIterations < 1 {
		c.Engine.MaxIterations = defaults.Engine.MaxIterations
	}
	if c.Security.CredentialStorage == "" {
		c.Security.CredentialStorage = defaults.Security.CredentialStorage
	}
}

// Validate rejects settings the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageJSON, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %q or %q)", c.Storage.Backend, StorageJSON, StorageSQLite)
	}

	switch SecurityMethod(c.Security.CredentialStorage) {
	case SecurityPlainText, SecuritySSHKey:
	default:
		return fmt.Errorf("unknown credential storage %q", c.Security.CredentialStorage)
	}

	seen := make(map[string]bool)
	for _, s := range c.MCPServers {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate mcp server id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func (c *Config) openCredentials() (*CredentialStore, error) {
	var sealer *Sealer
	if SecurityMethod(c.Security.CredentialStorage) == SecuritySSHKey {
		keyPath := ExpandPath(c.Security.SSHKeyPath)
		if keyPath == "" {
			keys := FindSSHKeys()
			if len(keys) == 0 {
				return nil, fmt.Errorf("ssh_key credential storage needs an ed25519 or RSA key: set security.ssh_key_path")
			}
			keyPath = keys[0]
		}
		var err error
		if sealer, err = NewSealer(keyPath, os.Getenv("PCHAT_SSH_PASSPHRASE")); err != nil {
			return nil, err
		}
	}

	store := NewCredentialStore(sealer)
	if err := store.Load(c.DataDir()); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return store, nil
}
