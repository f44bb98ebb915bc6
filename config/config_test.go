package config

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	transport "github.com/mark3labs/mcp-go/client/transport"
	"golang.org/x/crypto/ssh"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"PCHAT_DATA_DIR", "PCHAT_PROVIDER", "PCHAT_MODEL", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoadCreatesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !FileExists(filepath.Join(home, ".config", "pchat", "settings.toml")) {
		t.Error("settings.toml was not created")
	}
	if !FileExists(GetUserConfigPath(cfg.DataDir())) {
		t.Error("config.toml was not created")
	}
	if cfg.DataDir() != filepath.Join(home, ".local", "share", "pchat") {
		t.Errorf("DataDir() = %q", cfg.DataDir())
	}
	if cfg.DefaultProvider != "anthropic" || cfg.Storage.Backend != StorageJSON {
		t.Errorf("unexpected defaults: provider %q backend %q", cfg.DefaultProvider, cfg.Storage.Backend)
	}
	if cfg.Engine.CacheBoundary != 3 || cfg.Engine.MaxIterations != 25 || !cfg.Engine.CacheTools {
		t.Errorf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.CredentialStore == nil || cfg.CredentialStore.Sealer() != nil {
		t.Error("expected a plaintext credential store")
	}

	info, err := os.Stat(cfg.DataDir())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("data dir permissions = %o, want 700", info.Mode().Perm())
	}
}

func TestLoadUserConfigAndEnvOverrides(t *testing.T) {
	isolate(t)
	dataDir := t.TempDir()
	t.Setenv("PCHAT_DATA_DIR", dataDir)
	t.Setenv("PCHAT_MODEL", "gpt-4o")

	content := `
default_provider = "openai"
default_model = "gpt-4o-mini"

[storage]
backend = "sqlite"

[engine]
cache_boundary = 0
max_iterations = 5
elide_tool_results = true

[[providers]]
id = "ollama"
base_url = "http://gpu-box:11434"

[[mcp_servers]]
id = "fs"
command = "mcp-fs"
args = ["/tmp"]
env = { ROOT = "/tmp" }

[[mcp_servers]]
id = "search"
transport = "streamable-http"
url = "https://example.com/mcp"
disabled = true
`
	if err := os.WriteFile(GetUserConfigPath(dataDir), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.DefaultModel != "gpt-4o" {
		t.Errorf("PCHAT_MODEL should override config, got %q", cfg.DefaultModel)
	}
	if cfg.Storage.Backend != StorageSQLite {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Engine.CacheBoundary != 3 {
		t.Errorf("cache boundary below 1 should fall back to 3, got %d", cfg.Engine.CacheBoundary)
	}
	if cfg.Engine.MaxIterations != 5 || !cfg.Engine.ElideToolResults {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.BaseURL("ollama") != "http://gpu-box:11434" || cfg.BaseURL("openai") != "" {
		t.Errorf("BaseURL lookups wrong: %q %q", cfg.BaseURL("ollama"), cfg.BaseURL("openai"))
	}

	enabled := cfg.EnabledMCPServers()
	if len(enabled) != 1 || enabled[0].ID != "fs" || enabled[0].TransportType() != TransportStdio {
		t.Errorf("EnabledMCPServers() = %+v", enabled)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	isolate(t)
	dataDir := t.TempDir()
	t.Setenv("PCHAT_DATA_DIR", dataDir)

	content := "[storage]\nbackend = \"redis\"\n"
	if err := os.WriteFile(GetUserConfigPath(dataDir), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("expected an error for an unknown storage backend")
	}
}

func TestMCPServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		server  MCPServerConfig
		wantErr bool
	}{
		{"stdio", MCPServerConfig{ID: "fs", Command: "mcp-fs"}, false},
		{"sse by url", MCPServerConfig{ID: "remote", URL: "http://localhost:8080/sse"}, false},
		{"streamable http", MCPServerConfig{ID: "remote", Transport: TransportStreamableHTTP, URL: "http://localhost/mcp"}, false},
		{"missing id", MCPServerConfig{Command: "x"}, true},
		{"stdio without command", MCPServerConfig{ID: "fs", Transport: TransportStdio}, true},
		{"remote without url", MCPServerConfig{ID: "r", Transport: TransportSSE}, true},
		{"unknown transport", MCPServerConfig{ID: "r", Transport: "grpc", URL: "x"}, true},
		{"oauth over http", MCPServerConfig{ID: "r", Transport: TransportStreamableHTTP, URL: "x", OAuth: &OAuthConfig{ClientID: "c", RedirectURI: "r"}}, true},
		{"oauth incomplete", MCPServerConfig{ID: "r", URL: "x", OAuth: &OAuthConfig{ClientID: "c"}}, true},
		{"oauth over sse", MCPServerConfig{ID: "r", URL: "x", OAuth: &OAuthConfig{ClientID: "c", RedirectURI: "http://localhost:8085/callback"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.server.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDuplicateServers(t *testing.T) {
	cfg := &Config{
		Storage:  StorageConfig{Backend: StorageJSON},
		Security: SecurityConfig{CredentialStorage: string(SecurityPlainText)},
		MCPServers: []MCPServerConfig{
			{ID: "fs", Command: "a"},
			{ID: "fs", Command: "b"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestEnvironIncludesServerEnv(t *testing.T) {
	s := MCPServerConfig{ID: "fs", Command: "x", Env: map[string]string{"B": "2", "A": "1"}}
	env := s.Environ()
	n := len(env)
	if n < 2 || env[n-2] != "A=1" || env[n-1] != "B=2" {
		t.Errorf("server env should be appended in key order, got tail %v", env[max(0, n-2):])
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	isolate(t)
	dataDir := t.TempDir()

	cfg := &Config{DataDirectory: dataDir, CredentialStore: NewCredentialStore(nil)}
	if err := cfg.SetAPIKey("anthropic", "stored-key"); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}
	if got := cfg.APIKey("anthropic"); got != "stored-key" {
		t.Errorf("APIKey() = %q, want stored key", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	if got := cfg.APIKey("anthropic"); got != "env-key" {
		t.Errorf("APIKey() = %q, environment should win", got)
	}

	if err := cfg.SetAPIKey("ollama", "x"); err == nil {
		t.Error("ollama does not take an API key")
	}

	reloaded := NewCredentialStore(nil)
	if err := reloaded.Load(dataDir); err != nil {
		t.Fatal(err)
	}
	if reloaded.Get("anthropic") != "stored-key" {
		t.Error("key was not persisted")
	}

	info, err := os.Stat(filepath.Join(dataDir, "credentials.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials permissions = %o, want 600", info.Mode().Perm())
	}
}

func writeTestSSHKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "pchat-test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "pchat-test", []byte(passphrase))
	}
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustSealer(t *testing.T, keyPath, passphrase string) *Sealer {
	t.Helper()
	sealer, err := NewSealer(keyPath, passphrase)
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	return sealer
}

func TestSSHEncryptedCredentials(t *testing.T) {
	keyPath := writeTestSSHKey(t, "")
	dataDir := t.TempDir()

	store := NewCredentialStore(mustSealer(t, keyPath, ""))
	store.Set("openai", "sk-secret")
	if err := store.Save(dataDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if FileExists(filepath.Join(dataDir, "credentials.toml")) {
		t.Error("sealed credentials should not leave a plain file")
	}
	raw, err := os.ReadFile(filepath.Join(dataDir, "credentials.toml.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 || bytes.Contains(raw, []byte("sk-secret")) {
		t.Fatal("credentials were not encrypted")
	}

	// a second sealer from the same key must open the file
	reloaded := NewCredentialStore(mustSealer(t, keyPath, ""))
	if err := reloaded.Load(dataDir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Get("openai") != "sk-secret" {
		t.Errorf("Get() = %q", reloaded.Get("openai"))
	}
	if ids := reloaded.Providers(); len(ids) != 1 || ids[0] != "openai" {
		t.Errorf("Providers() = %v", ids)
	}

	other := NewCredentialStore(mustSealer(t, writeTestSSHKey(t, ""), ""))
	if err := other.Load(dataDir); err == nil {
		t.Error("a different SSH key should not open the credentials")
	}
}

func TestSealerRejectsTamperedData(t *testing.T) {
	sealer := mustSealer(t, writeTestSSHKey(t, ""), "")
	ct, err := sealer.Seal([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	pt, err := sealer.Open(ct)
	if err != nil || string(pt) != "hello" {
		t.Fatalf("Open() = %q, %v", pt, err)
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := sealer.Open(ct); err == nil {
		t.Error("expected decryption of tampered data to fail")
	}
	if _, err := sealer.Open([]byte{1, 2}); err == nil {
		t.Error("expected short ciphertext to fail")
	}

	var plain *Sealer
	if got, _ := plain.Seal([]byte("x")); string(got) != "x" {
		t.Errorf("nil Sealer should pass data through, got %q", got)
	}
	if plain.Path("a.toml") != "a.toml" || sealer.Path("a.toml") != "a.toml.enc" {
		t.Error("unexpected sealed file names")
	}
}

func TestNewSealerKeys(t *testing.T) {
	protected := writeTestSSHKey(t, "hunter2")

	if _, err := NewSealer(protected, ""); err == nil || !strings.Contains(err.Error(), "PCHAT_SSH_PASSPHRASE") {
		t.Errorf("missing passphrase error = %v", err)
	}
	if _, err := NewSealer(protected, "wrong"); err == nil {
		t.Error("expected wrong passphrase to fail")
	}
	a := mustSealer(t, protected, "hunter2")
	b := mustSealer(t, protected, "hunter2")
	ct, err := a.Seal([]byte("token"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(ct); err != nil {
		t.Errorf("key derivation is not stable: %v", err)
	}

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(ecKey, "")
	if err != nil {
		t.Fatal(err)
	}
	ecPath := filepath.Join(t.TempDir(), "id_ecdsa")
	if err := os.WriteFile(ecPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSealer(ecPath, ""); err == nil {
		t.Error("ECDSA keys should be refused")
	}

	if _, err := NewSealer(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("expected a missing key to fail")
	}
}

func TestFileTokenStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		sealer func(t *testing.T) *Sealer
		file   string
	}{
		{"plain", func(*testing.T) *Sealer { return nil }, "search.json"},
		{"sealed", func(t *testing.T) *Sealer { return mustSealer(t, writeTestSSHKey(t, ""), "") }, "search.json.enc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			store := NewFileTokenStore("search", dataDir, tt.sealer(t))

			if _, err := store.GetToken(ctx); err != transport.ErrNoToken {
				t.Fatalf("GetToken() on empty store = %v, want ErrNoToken", err)
			}

			if err := store.SaveToken(ctx, &transport.Token{AccessToken: "abc", TokenType: "Bearer"}); err != nil {
				t.Fatalf("SaveToken() error = %v", err)
			}
			got, err := store.GetToken(ctx)
			if err != nil {
				t.Fatalf("GetToken() error = %v", err)
			}
			if got.AccessToken != "abc" {
				t.Errorf("AccessToken = %q", got.AccessToken)
			}

			info, err := os.Stat(filepath.Join(dataDir, "oauth", tt.file))
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("token permissions = %o, want 600", info.Mode().Perm())
			}

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			if _, err := store.GetToken(cancelled); err == nil {
				t.Error("expected context error")
			}
		})
	}
}

func TestTokenStoreSharesCredentialKey(t *testing.T) {
	cfg := &Config{DataDirectory: t.TempDir()}
	if _, ok := cfg.TokenStore("x").(*transport.MemoryTokenStore); !ok {
		t.Error("without credentials tokens should stay in memory")
	}

	sealer := mustSealer(t, writeTestSSHKey(t, ""), "")
	cfg.CredentialStore = NewCredentialStore(sealer)
	store, ok := cfg.TokenStore("x").(*FileTokenStore)
	if !ok {
		t.Fatal("loaded credentials should persist tokens to a file")
	}
	if store.sealer != sealer {
		t.Error("token files should use the credentials key")
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	t.Setenv("PCHAT_TEST_DIR", "data")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~/x", filepath.Join(home, "x")},
		{"/tmp/$PCHAT_TEST_DIR/", "/tmp/data"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
