package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pchat/config"
	"pchat/engine"
	"pchat/mcp"
	"pchat/model"
	"pchat/provider"
	"pchat/storage"
	"pchat/ui"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

// writeDelay coalesces the per-chunk message writes of a streaming reply.
const writeDelay = 250 * time.Millisecond

// keyedStore fills in API keys from the configuration so they never need to
// be stored in project documents.
type keyedStore struct {
	*storage.Store
	cfg *config.Config
}

func (s keyedStore) Conversation(projectID, conversationID string) (model.Project, model.Conversation, error) {
	p, c, err := s.Store.Conversation(projectID, conversationID)
	if err == nil && p.Settings.APIKey == "" {
		p.Settings.APIKey = s.cfg.APIKey(p.Settings.Provider)
	}
	return p, c, err
}

func showError(title, msg string) {
	p := tea.NewProgram(ui.NewErrorModal(title, msg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("pchat %s (%s)\n", Version, License)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		showError("Configuration Error", err.Error())
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		var cmdErr error
		switch os.Args[1] {
		case "--models":
			cmdErr = listModels(cfg)
		case "--keys":
			for _, id := range cfg.CredentialStore.Providers() {
				fmt.Println(id)
			}
		case "--set-key":
			if len(os.Args) < 3 {
				cmdErr = fmt.Errorf("usage: pchat --set-key <anthropic|openai|openrouter>")
				break
			}
			cmdErr = setKey(cfg, os.Args[2], os.Stdin)
		default:
			cmdErr = fmt.Errorf("unknown flag %s", os.Args[1])
		}
		if cmdErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
			os.Exit(1)
		}
		return
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	// Single-instance enforcement
	lock := storage.NewInstanceLock(cfg.DataDir())
	isLocked, runningPID, err := lock.Check()
	if err != nil {
		fmt.Printf("Failed to check instance lock: %v\n", err)
		os.Exit(1)
	}
	if isLocked {
		showError("⚠️  pchat Already Running  ⚠️", fmt.Sprintf(
			"Another pchat instance is already running (PID %d).\n\n"+
				"Conversations are kept in memory and written back on change, so\n"+
				"two instances would overwrite each other's edits.\n\n"+
				"Close the other instance or set PCHAT_DATA_DIR to a different directory.",
			runningPID))
		os.Exit(0)
	}
	if err := lock.Acquire(); err != nil {
		fmt.Printf("Failed to lock pchat instance: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := lock.Release(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to release instance lock: %v", err)
		}
	}()

	if err := run(cfg); err != nil {
		fmt.Printf("Error running pchat: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	kv, err := storage.OpenKV(cfg.Storage, cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	store, err := storage.Open(kv, storage.Options{WriteDelay: writeDelay})
	if err != nil {
		kv.Close()
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to flush conversations: %v", err)
		}
	}()

	transport := mcp.NewTransport(cfg)
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := transport.ConnectAll(connectCtx, cfg.EnabledMCPServers()); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("Warning: some MCP servers failed to connect: %v", err)
	}
	cancel()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := transport.Shutdown(ctx); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: MCP shutdown: %v", err)
		}
	}()

	factory := provider.Factory{BaseURLs: make(map[provider.ProviderType]string)}
	for _, p := range cfg.Providers {
		if url := cfg.BaseURL(p.ID); url != "" {
			factory.BaseURLs[provider.MapProviderIDToType(p.ID)] = url
		}
	}

	feed := ui.NewFeed()
	unsubscribe := store.Subscribe(feed.Project)
	defer unsubscribe()

	orch := engine.NewOrchestrator(
		keyedStore{Store: store, cfg: cfg},
		factory.ForSettings,
		engine.NewDispatcher(transport),
		engine.Options{
			CacheBoundary:  cfg.Engine.CacheBoundary,
			CacheTools:     cfg.Engine.CacheTools,
			MaxIterations:  cfg.Engine.MaxIterations,
			RequiresAPIKey: provider.RequiresAPIKey,
			OnState:        feed.State,
		},
	)

	app, err := ui.New(cfg, store, orch, feed)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}

// setKey reads one line from in and stores it as the provider's API key. An
// empty line removes the stored key.
func setKey(cfg *config.Config, providerID string, in io.Reader) error {
	fmt.Fprintf(os.Stderr, "API key for %s: ", providerID)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	key := strings.TrimSpace(line)
	if err := cfg.SetAPIKey(providerID, key); err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "removed the %s key\n", providerID)
	}
	return nil
}

// listModels prints the models the default provider offers.
func listModels(cfg *config.Config) error {
	id := cfg.DefaultProvider
	p, err := provider.NewProvider(provider.Config{
		Type:    provider.MapProviderIDToType(id),
		BaseURL: cfg.BaseURL(id),
		APIKey:  cfg.APIKey(id),
		Model:   cfg.DefaultModel,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var models []string
	switch p := p.(type) {
	case *provider.OllamaProvider:
		if err := p.Ping(ctx); err != nil {
			return err
		}
		models, err = p.Models(ctx)
	case *provider.OpenAIProvider:
		models, err = p.Models(ctx)
	case *provider.AnthropicProvider:
		models = p.Models()
	}
	if err != nil {
		return fmt.Errorf("failed to list %s models: %w", id, err)
	}
	for _, m := range models {
		fmt.Println(m)
	}
	return nil
}
