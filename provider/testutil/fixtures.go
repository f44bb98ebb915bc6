package testutil

import (
	"encoding/json"
	"time"

	"pchat/model"
)

var fixtureTime = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

// AssistantText returns a block-form assistant reply holding one text block.
func AssistantText(text string) model.Message {
	return model.Message{
		Role:      model.RoleAssistant,
		Blocks:    []model.ContentBlock{model.NewTextBlock(text)},
		Timestamp: fixtureTime,
	}
}

// AssistantToolUse returns an assistant reply requesting one tool call.
func AssistantToolUse(text, id, name, input string) model.Message {
	var blocks []model.ContentBlock
	if text != "" {
		blocks = append(blocks, model.NewTextBlock(text))
	}
	blocks = append(blocks, model.NewToolUseBlock(id, name, json.RawMessage(input)))
	return model.Message{Role: model.RoleAssistant, Blocks: blocks, Timestamp: fixtureTime}
}

// ToolResult returns a user message answering one tool call.
func ToolResult(id, content string, isError bool) model.Message {
	return model.Message{
		Role:      model.RoleUser,
		Blocks:    []model.ContentBlock{model.NewToolResultBlock(id, content, isError)},
		Timestamp: fixtureTime,
	}
}

// TestMessages returns a sample plain-text conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Text: "Hello, how are you?", Timestamp: fixtureTime},
		{Role: model.RoleAssistant, Text: "I'm doing well, thank you!", Timestamp: fixtureTime},
		{Role: model.RoleUser, Text: "Can you help me with a task?", Timestamp: fixtureTime},
	}
}

// ToolConversation returns a history with two completed tool round-trips
// (ids t1 and t2) followed by a final answer.
func ToolConversation() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Text: "Find the weather in Paris and Berlin", Timestamp: fixtureTime},
		AssistantToolUse("Checking Paris.", "t1", "get_weather", `{"location":"Paris"}`),
		ToolResult("t1", "18C, cloudy", false),
		AssistantToolUse("Now Berlin.", "t2", "get_weather", `{"location":"Berlin"}`),
		ToolResult("t2", "12C, rain", false),
		AssistantText("Paris is 18C and cloudy, Berlin is 12C with rain."),
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Text: content, Timestamp: fixtureTime}}
}

// TestTools returns sample tool definitions for testing
func TestTools() []model.ToolDef {
	return []model.ToolDef{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a location",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				"required": []any{"location"},
			},
		},
		{
			Name:        "calculate",
			Description: "Perform a mathematical calculation",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "The mathematical expression to evaluate",
					},
				},
				"required": []any{"expression"},
			},
		},
	}
}

// EmptyMessages returns an empty message slice for edge case testing
func EmptyMessages() []model.Message {
	return []model.Message{}
}
