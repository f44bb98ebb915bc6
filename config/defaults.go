package config

const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/pchat",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		DefaultProvider: "anthropic",
		Storage:         StorageConfig{Backend: StorageJSON},
		Engine: EngineConfig{
			CacheBoundary: 3,
			MaxIterations: 25,
			CacheTools:    true,
		},
		Security: SecurityConfig{CredentialStorage: string(SecurityPlainText)},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# pchat System Configuration
# Location: ~/.config/pchat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations, credentials and user config are stored
data_directory = "~/.local/share/pchat"
`
}

func GenerateUserConfigTemplate() string {
	return `# pchat User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Provider for new projects: anthropic, openai, openrouter or ollama
default_provider = "anthropic"

# Model for new projects (empty uses the provider's default)
default_model = ""

# Default system prompt for new projects (optional)
default_system_prompt = ""

[storage]
# "json" keeps one file per project, "sqlite" a single database
backend = "json"

[engine]
# Number of trailing messages normalized for prompt caching
cache_boundary = 3

# Maximum tool round trips per turn
max_iterations = 25

# Mark the tool list as cacheable
cache_tools = true

# Let the model decide which old tool results to keep in context
elide_tool_results = false

[security]
# "plaintext" or "ssh_key"
credential_storage = "plaintext"
# ssh_key_path = "~/.ssh/id_ed25519"

# Endpoint overrides
# [[providers]]
# id = "ollama"
# base_url = "http://localhost:11434"

# Tool servers (Model Context Protocol)
# [[mcp_servers]]
# id = "filesystem"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
#
# [[mcp_servers]]
# id = "search"
# transport = "streamable-http"
# url = "https://example.com/mcp"
# headers = { Authorization = "Bearer ..." }
`
}
