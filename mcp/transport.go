package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"pchat/config"
	"pchat/model"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// DefaultCallTimeout bounds a single tool call.
const DefaultCallTimeout = 2 * time.Minute

const protocolVersion = "2025-06-18"

type conn struct {
	id      string
	client  *client.Client
	process *exec.Cmd // nil for remote and attached servers
	tools   []model.ToolDef
}

// Transport keeps MCP client connections to tool servers and executes tools on
// them. It implements engine.ToolTransport.
type Transport struct {
	servers map[string]*conn
	order   []string
	cfg     *config.Config // token stores for OAuth servers; may be nil
	mu      sync.RWMutex

	CallTimeout time.Duration
}

func NewTransport(cfg *config.Config) *Transport {
	return &Transport{
		servers:     make(map[string]*conn),
		cfg:         cfg,
		CallTimeout: DefaultCallTimeout,
	}
}

// ConnectAll connects every server, continuing past failures. The returned
// error joins the individual failures.
func (t *Transport) ConnectAll(ctx context.Context, servers []config.MCPServerConfig) error {
	var errs []error
	for _, s := range servers {
		if err := t.Connect(ctx, s); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] ConnectAll: %v", err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connect starts or dials the server described by cfg, initializes the MCP
// session and caches its tool list.
func (t *Transport) Connect(ctx context.Context, cfg config.MCPServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if t.connected(cfg.ID) {
		return fmt.Errorf("mcp server %s already connected", cfg.ID)
	}

	var (
		c   *client.Client
		cmd *exec.Cmd
		err error
	)
	switch cfg.TransportType() {
	case config.TransportStdio:
		c, cmd, err = t.createLocalClient(cfg)
	case config.TransportSSE:
		c, err = t.createSSEClient(ctx, cfg)
	case config.TransportStreamableHTTP:
		c, err = t.createStreamableHTTPClient(ctx, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to mcp server %s: %w", cfg.ID, err)
	}

	if err := t.register(ctx, cfg.ID, c, cmd); err != nil {
		killProcess(cfg.ID, cmd)
		return err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Connected '%s' over %s (%d tools)", cfg.ID, cfg.TransportType(), len(t.toolsOf(cfg.ID)))
	}
	return nil
}

// Attach registers an already started client under id, e.g. an in-process
// server.
func (t *Transport) Attach(ctx context.Context, id string, c *client.Client) error {
	if t.connected(id) {
		return fmt.Errorf("mcp server %s already connected", id)
	}
	return t.register(ctx, id, c, nil)
}

func (t *Transport) register(ctx context.Context, id string, c *client.Client, cmd *exec.Cmd) error {
	c.OnNotification(func(n mcptypes.JSONRPCNotification) {
		go t.notified(id, n)
	})

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "pchat",
				Version: "1.0.0",
			},
		},
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize mcp server %s: %w", id, err)
	}

	toolsResult, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.servers[id]; exists {
		return fmt.Errorf("mcp server %s already connected", id)
	}
	t.servers[id] = &conn{
		id:      id,
		client:  c,
		process: cmd,
		tools:   ToolDefs(toolsResult.Tools),
	}
	t.order = append(t.order, id)
	return nil
}

func (t *Transport) connected(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.servers[id]
	return ok
}

func (t *Transport) toolsOf(id string) []model.ToolDef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.servers[id]; ok {
		return s.tools
	}
	return nil
}

// Servers returns the connected servers and their tools in connection order.
func (t *Transport) Servers() []model.ToolServer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.ToolServer, 0, len(t.order))
	for _, id := range t.order {
		s := t.servers[id]
		tools := make([]model.ToolDef, len(s.tools))
		copy(tools, s.tools)
		out = append(out, model.ToolServer{ID: id, Tools: tools})
	}
	return out
}

// Execute calls toolName on serverID. A result flagged as an error by the
// server is returned as an error carrying the server's text.
func (t *Transport) Execute(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error) {
	t.mu.RLock()
	s, ok := t.servers[serverID]
	t.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("mcp server %s not connected", serverID)
	}

	arguments, err := decodeArguments(args)
	if err != nil {
		return "", err
	}

	if t.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	})
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] CallTool '%s' on '%s' took %s (err=%v)", toolName, serverID, time.Since(start).Round(time.Millisecond), err)
	}
	if err != nil {
		return "", fmt.Errorf("tool call failed: %w", err)
	}

	return ResultText(result)
}

// Refresh re-reads a server's tool list.
func (t *Transport) Refresh(ctx context.Context, serverID string) error {
	t.mu.RLock()
	s, ok := t.servers[serverID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("mcp server %s not connected", serverID)
	}

	toolsResult, err := s.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to refresh tools: %w", err)
	}

	t.mu.Lock()
	s.tools = ToolDefs(toolsResult.Tools)
	t.mu.Unlock()
	return nil
}

// notified refreshes a server's tools when it announces that its tool list
// changed.
func (t *Transport) notified(serverID string, n mcptypes.JSONRPCNotification) {
	if n.Method != mcptypes.MethodNotificationToolsListChanged {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := t.Refresh(ctx, serverID)
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] tools/list_changed from '%s': %d tools (err=%v)", serverID, len(t.toolsOf(serverID)), err)
	}
}

// Disconnect closes one server's client and, for local servers, kills the
// process if closing does not finish within a second.
func (t *Transport) Disconnect(ctx context.Context, serverID string) error {
	t.mu.Lock()
	s, ok := t.servers[serverID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("mcp server %s not found", serverID)
	}
	delete(t.servers, serverID)
	for i, id := range t.order {
		if id == serverID {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	closed := false
	if s.client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- s.client.Close()
		}()

		select {
		case err := <-closeDone:
			closed = err == nil
			if err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Disconnect: error closing client for '%s': %v", serverID, err)
			}
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Disconnect: close timed out for '%s'", serverID)
			}
		}
	}

	if !closed {
		killProcess(serverID, s.process)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Disconnect: '%s' removed", serverID)
	}
	return nil
}

// Shutdown disconnects all servers in parallel.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.RLock()
	ids := append([]string(nil), t.order...)
	t.mu.RUnlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Shutdown: stopping %d servers", len(ids))
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := t.Disconnect(ctx, id); err != nil {
				errChan <- err
			}
		}(id)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func killProcess(id string, cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Killing process for '%s' (PID: %d)", id, cmd.Process.Pid)
	}
	if err := cmd.Process.Kill(); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Error killing process for '%s': %v", id, err)
	}
}

func (t *Transport) createLocalClient(cfg config.MCPServerConfig) (*client.Client, *exec.Cmd, error) {
	var capturedCmd *exec.Cmd

	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Starting '%s': %s %v", cfg.ID, cfg.Command, cfg.Args)
	}

	c, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		cfg.Environ(),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Started '%s' with PID %d", cfg.ID, capturedCmd.Process.Pid)
	}
	return c, capturedCmd, nil
}

func (t *Transport) createSSEClient(ctx context.Context, cfg config.MCPServerConfig) (*client.Client, error) {
	var opts []transport.ClientOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(cfg.Headers))
	}

	var (
		c   *client.Client
		err error
	)
	if cfg.OAuth != nil {
		c, err = client.NewOAuthSSEClient(cfg.URL, client.OAuthConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURI:  cfg.OAuth.RedirectURI,
			Scopes:       cfg.OAuth.Scopes,
			TokenStore:   t.tokenStore(cfg.ID),
			PKCEEnabled:  true,
		}, opts...)
	} else {
		c, err = client.NewSSEMCPClient(cfg.URL, opts...)
	}
	if err != nil {
		return nil, err
	}

	if err := c.GetTransport().Start(ctx); err != nil {
		if client.IsOAuthAuthorizationRequiredError(err) {
			return nil, fmt.Errorf("server requires OAuth authorization: %w", err)
		}
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}
	return c, nil
}

func (t *Transport) createStreamableHTTPClient(ctx context.Context, cfg config.MCPServerConfig) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}

	c, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}
	return c, nil
}

func (t *Transport) tokenStore(serverID string) transport.TokenStore {
	if t.cfg == nil {
		return transport.NewMemoryTokenStore()
	}
	return t.cfg.TokenStore(serverID)
}

func decodeArguments(args json.RawMessage) (map[string]any, error) {
	arguments := map[string]any{}
	if len(args) == 0 || string(args) == "null" {
		return arguments, nil
	}
	if err := json.Unmarshal(args, &arguments); err != nil {
		return nil, fmt.Errorf("tool arguments are not a JSON object: %w", err)
	}
	return arguments, nil
}
