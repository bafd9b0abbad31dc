package agent

import (
	"errors"
	"fmt"
)

// ToolErrorType classifies why a tool dispatch failed. The registry tags
// every failed call with one of these; the text still reaches the model
// as an ordinary tool_result, but the audit trail and metrics get a
// stable category instead of parsing prose.
type ToolErrorType string

const (
	// ToolErrorNotFound: the model asked for a tool the registry doesn't have.
	ToolErrorNotFound ToolErrorType = "not_found"

	// ToolErrorInvalidInput: the arguments failed schema validation.
	ToolErrorInvalidInput ToolErrorType = "invalid_input"

	// ToolErrorDenied: the policy engine or the user refused the call.
	ToolErrorDenied ToolErrorType = "denied"

	// ToolErrorTimeout: the call exceeded its resolved timeout.
	ToolErrorTimeout ToolErrorType = "timeout"

	// ToolErrorPanic: the tool implementation panicked.
	ToolErrorPanic ToolErrorType = "panic"

	// ToolErrorExecution: the tool ran and reported a failure.
	ToolErrorExecution ToolErrorType = "execution"
)

// ToolError is the structured form of a failed tool call.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
}

// NewToolError builds a ToolError; message is what the model sees.
func NewToolError(t ToolErrorType, toolName, message string) *ToolError {
	return &ToolError{Type: t, ToolName: toolName, Message: message}
}

// WithCause attaches the underlying error for Unwrap chains.
func (e *ToolError) WithCause(cause error) *ToolError {
	e.Cause = cause
	return e
}

// WithToolCallID ties the error to the originating call id.
func (e *ToolError) WithToolCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

func (e *ToolError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.ToolName == "" {
		return fmt.Sprintf("[%s] %s", e.Type, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.ToolName, msg)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// Result renders the error as the ToolResult handed back to the loop, so
// a failed call becomes model-visible output instead of aborting the turn.
func (e *ToolError) Result() *ToolResult {
	return &ToolResult{Content: e.Error(), IsError: true}
}

// GetToolError extracts a ToolError from an error chain.
func GetToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsToolError reports whether err is or wraps a ToolError.
func IsToolError(err error) bool {
	_, ok := GetToolError(err)
	return ok
}
