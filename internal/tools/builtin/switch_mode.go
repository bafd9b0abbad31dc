package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// SwitchFunc requests a mode transition; it mirrors ModeController.SwitchMode
// without this package importing internal/tools (which itself imports this
// package for the tool implementation), avoiding an import cycle.
type SwitchFunc func(models.AgentMode)

// SwitchModeTool lets the model itself request a mode change mid
// conversation, rather than only through an external front-end action.
type SwitchModeTool struct {
	switchFn SwitchFunc
}

// NewSwitchModeTool builds the switch_mode tool bound to switchFn.
func NewSwitchModeTool(switchFn SwitchFunc) *SwitchModeTool {
	return &SwitchModeTool{switchFn: switchFn}
}

func (t *SwitchModeTool) Name() string { return "switch_mode" }

func (t *SwitchModeTool) Description() string {
	return "Switch the session's agent mode (ask, plan, build). Takes effect once the current turn finishes."
}

func (t *SwitchModeTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode": map[string]interface{}{
				"type":        "string",
				"description": "Target mode: ask, plan, or build.",
				"enum":        []string{"ask", "plan", "build"},
			},
		},
		"required": []string{"mode"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *SwitchModeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	var mode models.AgentMode
	switch input.Mode {
	case "ask":
		mode = models.ModeAsk
	case "plan":
		mode = models.ModePlan
	case "build":
		mode = models.ModeBuild
	default:
		return errResult(fmt.Sprintf("unknown mode: %q", input.Mode)), nil
	}

	if t.switchFn == nil {
		return errResult("mode switching is unavailable in this session"), nil
	}
	t.switchFn(mode)

	payload, _ := json.Marshal(map[string]string{"status": "switch requested", "mode": input.Mode})
	return &agent.ToolResult{Content: string(payload)}, nil
}
