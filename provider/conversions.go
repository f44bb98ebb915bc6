package provider

import (
	"encoding/json"
	"strings"

	"pchat/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// emptyToolOutput stands in for a tool result with no output; providers reject
// empty content.
const emptyToolOutput = "(no output)"

// ConvertToAnthropicMessages converts pchat messages to Anthropic message params.
//
// Cache hints on content blocks become cache_control breakpoints. Empty text
// blocks are dropped because the API rejects them; a message left without
// blocks is dropped entirely.
func ConvertToAnthropicMessages(messages []model.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks)+1)
		for _, b := range msg.Normalized() {
			if param, ok := toAnthropicBlock(b); ok {
				blocks = append(blocks, param)
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if msg.Role == model.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result
}

func toAnthropicBlock(b model.ContentBlock) (anthropic.ContentBlockParamUnion, bool) {
	var param anthropic.ContentBlockParamUnion
	switch b.Type {
	case model.BlockText:
		if b.Text == "" {
			return param, false
		}
		param = anthropic.NewTextBlock(b.Text)
		if b.CacheControl != nil {
			param.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
	case model.BlockToolUse:
		input := b.Input
		if len(input) == 0 || !json.Valid(input) {
			input = json.RawMessage(`{}`)
		}
		param = anthropic.NewToolUseBlock(b.ID, input, b.Name)
		if b.CacheControl != nil {
			param.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
	case model.BlockToolResult:
		content := b.Content
		if content == "" {
			content = emptyToolOutput
		}
		param = anthropic.NewToolResultBlock(b.ToolUseID, content, b.IsError)
		if b.CacheControl != nil {
			param.OfToolResult.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
	default:
		return param, false
	}
	return param, true
}

// ConvertFromAnthropicContent converts the content of a final Anthropic message
// to pchat content blocks. Block types pchat does not model are skipped.
func ConvertFromAnthropicContent(content []anthropic.ContentBlockUnion) []model.ContentBlock {
	blocks := make([]model.ContentBlock, 0, len(content))
	for _, block := range content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, model.NewTextBlock(variant.Text))
		case anthropic.ToolUseBlock:
			blocks = append(blocks, model.NewToolUseBlock(variant.ID, variant.Name, variant.Input))
		}
	}
	return blocks
}

// ConvertToolsToAnthropic converts tool definitions to Anthropic tool params,
// carrying the cache hint of the last tool.
func ConvertToolsToAnthropic(tools []model.ToolDef) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		properties, required, defs := splitSchema(tool.InputSchema)
		inputSchema := anthropic.ToolInputSchemaParam{
			// Type defaults to "object" when omitted
			Properties: properties,
			Required:   required,
		}
		if defs != nil {
			inputSchema.ExtraFields = map[string]any{"$defs": defs}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
		if tool.CacheControl != nil {
			result[i].OfTool.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
	}
	return result
}

// ConvertToOpenAIMessages converts pchat messages to OpenAI chat messages.
//
// tool_result blocks become "tool" role messages placed before any text of
// the same user message, so they directly follow the assistant's tool calls.
// Cache hints are dropped; OpenAI caches prompt prefixes automatically.
func ConvertToOpenAIMessages(system string, messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		if msg.IsPlain() {
			if msg.Role == model.RoleAssistant {
				result = append(result, openai.AssistantMessage(msg.Text))
			} else {
				result = append(result, openai.UserMessage(msg.Text))
			}
			continue
		}

		switch msg.Role {
		case model.RoleAssistant:
			result = append(result, openAIAssistantMessage(msg))
		default:
			for _, r := range msg.ToolResults() {
				result = append(result, openai.ToolMessage(toolResultText(r), r.ToolUseID))
			}
			if text := msg.PlainText(); text != "" {
				result = append(result, openai.UserMessage(text))
			}
		}
	}
	return result
}

func openAIAssistantMessage(msg model.Message) openai.ChatCompletionMessageParamUnion {
	uses := msg.ToolUses()
	if len(uses) == 0 {
		return openai.AssistantMessage(msg.PlainText())
	}

	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(uses))
	for i, u := range uses {
		args := string(u.Input)
		if args == "" {
			args = "{}"
		}
		calls[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: u.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      u.Name,
					Arguments: args,
				},
			},
		}
	}

	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if text := msg.PlainText(); text != "" {
		assistant.Content.OfString = openai.String(text)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

// ConvertFromOpenAIMessage converts a completed OpenAI message to pchat blocks.
func ConvertFromOpenAIMessage(msg openai.ChatCompletionMessage) []model.ContentBlock {
	var blocks []model.ContentBlock
	if msg.Content != "" {
		blocks = append(blocks, model.NewTextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		if call.Function.Name == "" {
			continue
		}
		blocks = append(blocks, model.NewToolUseBlock(call.ID, call.Function.Name, parseToolArguments(call.Function.Arguments)))
	}
	return blocks
}

// ConvertToolsToOpenAI converts tool definitions to OpenAI function tools.
// This format is shared between OpenAI and OpenRouter.
func ConvertToolsToOpenAI(tools []model.ToolDef) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		properties, required, defs := splitSchema(tool.InputSchema)
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		if defs != nil {
			params["$defs"] = defs
		}

		fn := openai.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: params,
		}
		if tool.Description != "" {
			fn.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(fn)
	}
	return result
}

// ConvertToOllamaMessages converts pchat messages to Ollama messages.
//
// Ollama has no tool call ids: tool results are sent as "tool" role messages
// in the order of the calls they answer.
func ConvertToOllamaMessages(system string, messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages)+1)
	if system != "" {
		result = append(result, api.Message{Role: "system", Content: system})
	}

	for _, msg := range messages {
		role := string(msg.Role)
		if msg.IsPlain() {
			result = append(result, api.Message{Role: role, Content: msg.Text})
			continue
		}

		if msg.Role == model.RoleAssistant {
			out := api.Message{Role: role, Content: msg.PlainText()}
			for _, u := range msg.ToolUses() {
				out.ToolCalls = append(out.ToolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      u.Name,
						Arguments: toolArgumentMap(u.Input),
					},
				})
			}
			result = append(result, out)
			continue
		}

		for _, r := range msg.ToolResults() {
			result = append(result, api.Message{Role: "tool", Content: toolResultText(r)})
		}
		if text := msg.PlainText(); text != "" {
			result = append(result, api.Message{Role: role, Content: text})
		}
	}
	return result
}

// ConvertFromOllamaMessage converts an accumulated Ollama reply to pchat
// blocks, synthesizing ids for its tool calls.
func ConvertFromOllamaMessage(content string, calls []api.ToolCall) []model.ContentBlock {
	var blocks []model.ContentBlock
	if content != "" {
		blocks = append(blocks, model.NewTextBlock(content))
	}
	for _, call := range calls {
		input, err := json.Marshal(map[string]any(call.Function.Arguments))
		if err != nil {
			input = json.RawMessage(`{}`)
		}
		blocks = append(blocks, model.NewToolUseBlock(newToolCallID(), call.Function.Name, input))
	}
	return blocks
}

// ConvertToolsToOllama converts tool definitions to Ollama API tools.
func ConvertToolsToOllama(tools []model.ToolDef) []api.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		properties, required, defs := splitSchema(tool.InputSchema)
		params := api.ToolFunctionParameters{
			Type:       "object",
			Required:   required,
			Properties: make(map[string]api.ToolProperty),
		}
		if defs != nil {
			params.Defs = defs
		}
		for name, value := range properties {
			params.Properties[name] = convertPropertyValue(value)
		}

		result = append(result, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return result
}

// convertPropertyValue converts one JSON schema property to an Ollama ToolProperty.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// If it's not a map, try to marshal and unmarshal it
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// Type can be a string or a list of strings
	switch t := propMap["type"].(type) {
	case string:
		toolProp.Type = api.PropertyType{t}
	case []string:
		toolProp.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		toolProp.Type = api.PropertyType(types)
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enumSlice, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enumSlice
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOfSlice, ok := propMap["anyOf"].([]any); ok {
		anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
		for _, item := range anyOfSlice {
			anyOfProps = append(anyOfProps, convertPropertyValue(item))
		}
		toolProp.AnyOf = anyOfProps
	}

	return toolProp
}

// splitSchema pulls properties, required and $defs out of a JSON schema map.
func splitSchema(schema map[string]any) (map[string]any, []string, any) {
	properties, _ := schema["properties"].(map[string]any)
	if properties == nil {
		properties = map[string]any{}
	}

	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}

	return properties, required, schema["$defs"]
}

func toolResultText(r model.ContentBlock) string {
	content := r.Content
	if content == "" {
		content = emptyToolOutput
	}
	if r.IsError && !strings.HasPrefix(content, "Error") {
		return "Error: " + content
	}
	return content
}

// parseToolArguments validates streamed tool arguments, falling back to an
// empty object when the model produced nothing usable.
func parseToolArguments(argsJSON string) json.RawMessage {
	argsJSON = strings.TrimSpace(argsJSON)
	if argsJSON == "" || !json.Valid([]byte(argsJSON)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(argsJSON)
}

func toolArgumentMap(input json.RawMessage) map[string]any {
	args := make(map[string]any)
	if len(input) == 0 {
		return args
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return make(map[string]any)
	}
	return args
}

func newToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
