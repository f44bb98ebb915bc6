package config

import (
	"fmt"
	"os"
	"sort"
)

// MCP transports a tool server can be reached over.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// MCPServerConfig describes one [[mcp_servers]] entry. Local servers set
// Command; remote servers set URL.
type MCPServerConfig struct {
	ID        string            `toml:"id"`
	Transport string            `toml:"transport,omitempty"`
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	URL       string            `toml:"url,omitempty"`
	Headers   map[string]string `toml:"headers,omitempty"`
	OAuth     *OAuthConfig      `toml:"oauth,omitempty"`
	Disabled  bool              `toml:"disabled,omitempty"`
}

// OAuthConfig enables OAuth for an SSE server. Tokens are persisted through
// FileTokenStore.
type OAuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret,omitempty"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes,omitempty"`
}

// TransportType returns the effective transport. Entries without one are
// stdio when they name a command and SSE otherwise.
func (s MCPServerConfig) TransportType() string {
	switch {
	case s.Transport != "":
		return s.Transport
	case s.Command != "":
		return TransportStdio
	default:
		return TransportSSE
	}
}

func (s MCPServerConfig) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("mcp server without id")
	}
	switch s.TransportType() {
	case TransportStdio:
		if s.Command == "" {
			return fmt.Errorf("mcp server %q: stdio transport needs a command", s.ID)
		}
	case TransportSSE, TransportStreamableHTTP:
		if s.URL == "" {
			return fmt.Errorf("mcp server %q: %s transport needs a url", s.ID, s.TransportType())
		}
		if s.OAuth != nil && s.TransportType() != TransportSSE {
			return fmt.Errorf("mcp server %q: oauth is only supported over sse", s.ID)
		}
	default:
		return fmt.Errorf("mcp server %q: unknown transport %q", s.ID, s.Transport)
	}
	if s.OAuth != nil && (s.OAuth.ClientID == "" || s.OAuth.RedirectURI == "") {
		return fmt.Errorf("mcp server %q: oauth needs client_id and redirect_uri", s.ID)
	}
	return nil
}

// Environ returns the process environment extended with the server's Env, in
// a stable order.
func (s MCPServerConfig) Environ() []string {
	env := os.Environ()
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, s.Env[k]))
	}
	return env
}

// EnabledMCPServers returns the servers not marked disabled.
func (c *Config) EnabledMCPServers() []MCPServerConfig {
	var out []MCPServerConfig
	for _, s := range c.MCPServers {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}
