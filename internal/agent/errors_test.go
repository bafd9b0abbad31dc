package agent

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestToolErrorFormatsTypeAndTool(t *testing.T) {
	te := NewToolError(ToolErrorTimeout, "shell", "timed out after 1 seconds")
	text := te.Error()
	if !strings.Contains(text, "[timeout]") || !strings.Contains(text, "shell") {
		t.Fatalf("unexpected error text %q", text)
	}
	if !strings.Contains(text, "timed out after 1 seconds") {
		t.Fatalf("message must survive formatting: %q", text)
	}
}

func TestToolErrorWithoutToolName(t *testing.T) {
	te := NewToolError(ToolErrorExecution, "", "boom")
	if got := te.Error(); got != "[execution] boom" {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestToolErrorFallsBackToCause(t *testing.T) {
	cause := errors.New("underlying")
	te := (&ToolError{Type: ToolErrorExecution, ToolName: "search"}).WithCause(cause)
	if !strings.Contains(te.Error(), "underlying") {
		t.Fatalf("expected cause in text, got %q", te.Error())
	}
	if !errors.Is(te, cause) {
		t.Fatalf("expected Unwrap to reach the cause")
	}
}

func TestToolErrorResult(t *testing.T) {
	result := NewToolError(ToolErrorDenied, "shell", "operation denied by user").Result()
	if !result.IsError {
		t.Fatalf("expected IsError result")
	}
	if !strings.Contains(result.Content, "operation denied by user") {
		t.Fatalf("unexpected content %q", result.Content)
	}
}

func TestGetToolErrorWalksChains(t *testing.T) {
	te := NewToolError(ToolErrorPanic, "boom", "tool crashed").WithToolCallID("call-1")
	wrapped := fmt.Errorf("dispatch: %w", te)

	got, ok := GetToolError(wrapped)
	if !ok || got.Type != ToolErrorPanic || got.ToolCallID != "call-1" {
		t.Fatalf("expected to extract the ToolError, got %+v ok=%v", got, ok)
	}
	if IsToolError(errors.New("plain")) {
		t.Fatalf("plain errors are not ToolErrors")
	}
}
