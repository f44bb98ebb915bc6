package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pchat/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolDefs converts MCP tools to the provider-neutral tool definitions the
// engine advertises to models.
func ToolDefs(mcpTools []mcptypes.Tool) []model.ToolDef {
	defs := make([]model.ToolDef, 0, len(mcpTools))
	for _, t := range mcpTools {
		defs = append(defs, ToolDef(t))
	}
	return defs
}

// ToolDef converts one MCP tool. A raw input schema takes precedence over the
// structured one, matching how mcp-go marshals tools.
//
// MCP Tool structure:
//
//	{
//	  "name": "get_weather",
//	  "description": "Get weather data",
//	  "inputSchema": {
//	    "type": "object",
//	    "properties": {...},
//	    "required": [...]
//	  }
//	}
func ToolDef(tool mcptypes.Tool) model.ToolDef {
	return model.ToolDef{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: inputSchema(tool),
	}
}

func inputSchema(tool mcptypes.Tool) map[string]any {
	if len(tool.RawInputSchema) > 0 {
		var schema map[string]any
		if err := json.Unmarshal(tool.RawInputSchema, &schema); err == nil {
			return schema
		}
	}

	in := tool.InputSchema
	schemaType := in.Type
	if schemaType == "" {
		schemaType = "object"
	}
	properties := in.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	schema := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(in.Required) > 0 {
		schema["required"] = in.Required
	}
	if in.Defs != nil {
		schema["$defs"] = in.Defs
	}
	return schema
}

// ResultText flattens a tool result into the string handed back to the model.
// Text content is joined with newlines; other content kinds are summarized.
// Structured content is used when no text was returned. Results the server
// flags as errors come back as an error with the same text.
func ResultText(result *mcptypes.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("empty tool result")
	}

	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcptypes.TextContent:
			parts = append(parts, v.Text)
		case *mcptypes.TextContent:
			parts = append(parts, v.Text)
		case mcptypes.ImageContent:
			parts = append(parts, fmt.Sprintf("[image: %s]", v.MIMEType))
		case mcptypes.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio: %s]", v.MIMEType))
		case mcptypes.EmbeddedResource:
			parts = append(parts, embeddedText(v))
		case mcptypes.ResourceLink:
			parts = append(parts, fmt.Sprintf("[resource: %s]", v.URI))
		default:
			if data, err := json.Marshal(c); err == nil {
				parts = append(parts, string(data))
			}
		}
	}

	text := strings.Join(parts, "\n")
	if text == "" && result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			text = string(data)
		}
	}

	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func embeddedText(r mcptypes.EmbeddedResource) string {
	switch res := r.Resource.(type) {
	case mcptypes.TextResourceContents:
		return res.Text
	case *mcptypes.TextResourceContents:
		return res.Text
	case mcptypes.BlobResourceContents:
		return fmt.Sprintf("[blob: %s]", res.URI)
	case *mcptypes.BlobResourceContents:
		return fmt.Sprintf("[blob: %s]", res.URI)
	}
	return "[resource]"
}
