package mcp

import (
	"encoding/json"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestToolDefs(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		validate func(t *testing.T, schema map[string]any)
	}{
		{
			name: "empty schema defaults to object",
			input: []mcptypes.Tool{{
				Name:        "ping",
				Description: "Check liveness",
			}},
			validate: func(t *testing.T, schema map[string]any) {
				if schema["type"] != "object" {
					t.Errorf("expected type 'object', got %v", schema["type"])
				}
				if props, ok := schema["properties"].(map[string]any); !ok || len(props) != 0 {
					t.Errorf("expected empty properties, got %v", schema["properties"])
				}
				if _, ok := schema["required"]; ok {
					t.Error("required should be omitted when empty")
				}
			},
		},
		{
			name: "tool with properties",
			input: []mcptypes.Tool{{
				Name:        "calculate",
				Description: "Perform calculation",
				InputSchema: mcptypes.ToolInputSchema{
					Type: "object",
					Properties: map[string]any{
						"operation": map[string]any{
							"type": "string",
							"enum": []any{"add", "subtract", "multiply", "divide"},
						},
						"a": map[string]any{"type": "number"},
						"b": map[string]any{"type": "number"},
					},
					Required: []string{"operation", "a", "b"},
				},
			}},
			validate: func(t *testing.T, schema map[string]any) {
				props := schema["properties"].(map[string]any)
				if len(props) != 3 {
					t.Errorf("expected 3 properties, got %d", len(props))
				}
				if req := schema["required"].([]string); len(req) != 3 {
					t.Errorf("expected 3 required fields, got %v", req)
				}
			},
		},
		{
			name: "defs are carried",
			input: []mcptypes.Tool{{
				Name: "create_user",
				InputSchema: mcptypes.ToolInputSchema{
					Type:       "object",
					Properties: map[string]any{"user": map[string]any{"$ref": "#/$defs/User"}},
					Defs:       map[string]any{"User": map[string]any{"type": "object"}},
				},
			}},
			validate: func(t *testing.T, schema map[string]any) {
				if _, ok := schema["$defs"]; !ok {
					t.Error("expected $defs in schema")
				}
			},
		},
		{
			name: "raw schema wins",
			input: []mcptypes.Tool{
				mcptypes.NewToolWithRawSchema("lookup", "Look something up",
					json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`)),
			},
			validate: func(t *testing.T, schema map[string]any) {
				props := schema["properties"].(map[string]any)
				if _, ok := props["key"]; !ok {
					t.Errorf("raw schema properties lost: %v", schema)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs := ToolDefs(tt.input)
			if len(defs) != len(tt.input) {
				t.Fatalf("expected %d defs, got %d", len(tt.input), len(defs))
			}
			if defs[0].Name != tt.input[0].Name || defs[0].Description != tt.input[0].Description {
				t.Errorf("name/description mismatch: %+v", defs[0])
			}
			tt.validate(t, defs[0].InputSchema)
		})
	}
}

func TestResultText(t *testing.T) {
	tests := []struct {
		name    string
		result  *mcptypes.CallToolResult
		want    string
		wantErr bool
	}{
		{
			name:   "single text",
			result: mcptypes.NewToolResultText("42 results"),
			want:   "42 results",
		},
		{
			name: "mixed content",
			result: &mcptypes.CallToolResult{Content: []mcptypes.Content{
				mcptypes.NewTextContent("line one"),
				mcptypes.NewImageContent("AAAA", "image/png"),
				mcptypes.NewTextContent("line two"),
			}},
			want: "line one\n[image: image/png]\nline two",
		},
		{
			name: "embedded text resource",
			result: &mcptypes.CallToolResult{Content: []mcptypes.Content{
				mcptypes.NewEmbeddedResource(mcptypes.TextResourceContents{URI: "file:///a.txt", Text: "file body"}),
			}},
			want: "file body",
		},
		{
			name: "structured only",
			result: &mcptypes.CallToolResult{
				StructuredContent: map[string]any{"temp": 18},
			},
			want: `{"temp":18}`,
		},
		{
			name:    "error result",
			result:  mcptypes.NewToolResultError("city not found"),
			want:    "city not found",
			wantErr: true,
		},
		{
			name:    "error without text",
			result:  &mcptypes.CallToolResult{IsError: true},
			want:    "tool reported an error",
			wantErr: true,
		},
		{
			name:    "nil result",
			result:  nil,
			want:    "empty tool result",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResultText(tt.result)
			if tt.wantErr {
				if err == nil || err.Error() != tt.want {
					t.Errorf("ResultText() error = %v, want %q", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResultText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeArguments(t *testing.T) {
	for _, in := range []string{"", "null", "{}"} {
		args, err := decodeArguments(json.RawMessage(in))
		if err != nil || args == nil || len(args) != 0 {
			t.Errorf("decodeArguments(%q) = %v, %v", in, args, err)
		}
	}

	args, err := decodeArguments(json.RawMessage(`{"q":"go","n":3}`))
	if err != nil || args["q"] != "go" || args["n"] != float64(3) {
		t.Errorf("decodeArguments() = %v, %v", args, err)
	}

	if _, err := decodeArguments(json.RawMessage(`[1,2]`)); err == nil {
		t.Error("expected an error for a non-object")
	}
}
