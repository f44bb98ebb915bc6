package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"pchat/config"
	"pchat/model"
)

// ToolTransport is the capability the engine needs from a tool server
// transport: list servers and execute a named tool on one of them.
type ToolTransport interface {
	Servers() []model.ToolServer
	Execute(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error)
}

// Dispatcher resolves tool names to servers and turns executions into
// tool_result blocks.
type Dispatcher struct {
	transport ToolTransport
}

// NewDispatcher creates a dispatcher. A nil transport behaves as if no server
// advertises any tool.
func NewDispatcher(transport ToolTransport) *Dispatcher {
	return &Dispatcher{transport: transport}
}

// Servers returns the transport's servers, or nil without a transport.
func (d *Dispatcher) Servers() []model.ToolServer {
	if d.transport == nil {
		return nil
	}
	return d.transport.Servers()
}

// Resolve returns the id of the first configured server whose advertised tool
// list contains toolName.
func (d *Dispatcher) Resolve(configured []string, toolName string) (string, bool) {
	byID := make(map[string]model.ToolServer)
	for _, s := range d.Servers() {
		byID[s.ID] = s
	}
	for _, id := range configured {
		if s, ok := byID[id]; ok && s.HasTool(toolName) {
			return id, true
		}
	}
	return "", false
}

// Execute delegates to the transport.
func (d *Dispatcher) Execute(ctx context.Context, serverID, toolName string, args json.RawMessage) (string, error) {
	if d.transport == nil {
		return "", &ToolExecutionError{Tool: toolName, Server: serverID, Err: fmt.Errorf("no tool transport configured")}
	}
	out, err := d.transport.Execute(ctx, serverID, toolName, args)
	if err != nil {
		return "", &ToolExecutionError{Tool: toolName, Server: serverID, Err: err}
	}
	return out, nil
}

// Dispatch executes one tool_use block and always returns a tool_result block
// answering it. Unknown tools and execution failures produce an error-flagged
// result so the model can react.
func (d *Dispatcher) Dispatch(ctx context.Context, configured []string, use model.ContentBlock) model.ContentBlock {
	serverID, ok := d.Resolve(configured, use.Name)
	if !ok {
		err := &ToolExecutionError{Tool: use.Name, Err: fmt.Errorf("no configured tool server provides this tool")}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] Dispatch: %v", err)
		}
		return model.NewToolResultBlock(use.ID, err.Error(), true)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Engine] Dispatch: executing '%s' on server '%s' (tool_use %s)", use.Name, serverID, use.ID)
	}

	out, err := d.Execute(ctx, serverID, use.Name, use.Input)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Engine] Dispatch: %v", err)
		}
		return model.NewToolResultBlock(use.ID, err.Error(), true)
	}
	return model.NewToolResultBlock(use.ID, out, false)
}
