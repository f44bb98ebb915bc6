package engine

import (
	"errors"
	"fmt"
)

// ErrTurnInProgress is returned when a turn is submitted for a conversation
// whose previous turn has not finished.
var ErrTurnInProgress = errors.New("a turn is already running for this conversation")

// ConfigError aborts a turn before any network call, e.g. a missing API key.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

// ProviderError is a network or API failure during the main streaming call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ToolExecutionError describes a failed tool call. It never reaches the
// caller; its message becomes an error-flagged tool_result for the model.
type ToolExecutionError struct {
	Tool   string
	Server string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	if e.Server == "" {
		return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %q on server %q: %v", e.Tool, e.Server, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ElisionJudgeError is logged and swallowed.
type ElisionJudgeError struct {
	Err error
}

func (e *ElisionJudgeError) Error() string {
	return fmt.Sprintf("tool result judge failed: %v", e.Err)
}

func (e *ElisionJudgeError) Unwrap() error { return e.Err }

// TitleGenerationError is logged and swallowed.
type TitleGenerationError struct {
	Err error
}

func (e *TitleGenerationError) Error() string {
	return fmt.Sprintf("title generation failed: %v", e.Err)
}

func (e *TitleGenerationError) Unwrap() error { return e.Err }
