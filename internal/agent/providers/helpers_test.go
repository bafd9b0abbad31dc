package providers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/haasonsaas/agentcore/internal/agent"
)

var errTimeout = errors.New("request timeout")

// stubProviderTool is a minimal agent.Tool for conversion tests.
type stubProviderTool struct {
	name        string
	description string
	schema      string
}

func (t stubProviderTool) Name() string        { return t.name }
func (t stubProviderTool) Description() string { return t.description }
func (t stubProviderTool) Schema() json.RawMessage {
	if t.schema == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(t.schema)
}
func (t stubProviderTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: "ok"}, nil
}
