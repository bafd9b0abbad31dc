package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// Tool is the Plan-mode `plan` tool (§3 AgentMode: "plan-management
// tools"): add/complete/list operations on the session's Tracker, mirrored
// in shape on the donor's process tool action dispatch.
type Tool struct {
	tracker *Tracker
}

// NewTool builds the plan-management tool bound to tracker.
func NewTool(tracker *Tracker) *Tool {
	return &Tool{tracker: tracker}
}

func (t *Tool) Name() string { return "plan" }

func (t *Tool) Description() string {
	return "Manage the session's plan: add a step, mark one complete, or list the current plan."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "One of: add, complete, list.",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Step description, required for action=add.",
			},
			"step_id": map[string]interface{}{
				"type":        "string",
				"description": "Step id, required for action=complete.",
			},
		},
		"required": []string{"action"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Action string `json:"action"`
		Text   string `json:"text"`
		StepID string `json:"step_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "add":
		if strings.TrimSpace(input.Text) == "" {
			return errResult("text is required for action=add"), nil
		}
		step := t.tracker.Add(input.Text)
		return jsonResult(step)
	case "complete":
		if strings.TrimSpace(input.StepID) == "" {
			return errResult("step_id is required for action=complete"), nil
		}
		if !t.tracker.Complete(input.StepID) {
			return errResult(fmt.Sprintf("no such step: %s", input.StepID)), nil
		}
		return jsonResult(map[string]string{"status": "completed", "step_id": input.StepID})
	case "list":
		return jsonResult(map[string]any{"steps": t.tracker.List()})
	default:
		return errResult("action must be one of: add, complete, list"), nil
	}
}

// CompleteTool is the Build-mode plan-completion tool: it lets the model
// declare the plan finished, but only once every tracked step is done, so
// a model can't skip ahead of its own plan.
type CompleteTool struct {
	tracker *Tracker
}

// NewCompleteTool builds the mark_plan_complete tool bound to tracker.
func NewCompleteTool(tracker *Tracker) *CompleteTool {
	return &CompleteTool{tracker: tracker}
}

func (t *CompleteTool) Name() string { return "mark_plan_complete" }

func (t *CompleteTool) Description() string {
	return "Declare the session's plan finished. Fails if any tracked step is still open."
}

func (t *CompleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *CompleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	_ = params
	if !t.tracker.AllDone() {
		return errResult("plan has open steps; complete them before marking it done"), nil
	}
	return jsonResult(map[string]string{"status": "plan complete"})
}

// ProposeChangeTool emits a unified diff for review without touching the
// filesystem, the Plan-mode counterpart to Build-mode's patch_file: it
// validates the same header shape patch_file requires so a proposal that
// can't later be applied is rejected up front, but it never calls Resolve
// or writes anything.
type ProposeChangeTool struct{}

// NewProposeChangeTool builds the propose_change tool.
func NewProposeChangeTool() *ProposeChangeTool {
	return &ProposeChangeTool{}
}

func (t *ProposeChangeTool) Name() string { return "propose_change" }

func (t *ProposeChangeTool) Description() string {
	return "Propose a unified diff for later application; does not modify the workspace."
}

func (t *ProposeChangeTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patch": map[string]interface{}{
				"type":        "string",
				"description": "Unified diff patch (---/+++ headers required).",
			},
			"summary": map[string]interface{}{
				"type":        "string",
				"description": "One-line human-readable summary of the proposed change.",
			},
		},
		"required": []string{"patch"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ProposeChangeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Patch   string `json:"patch"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if err := validateUnifiedDiffShape(input.Patch); err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]string{
		"status":  "proposed",
		"summary": input.Summary,
		"patch":   input.Patch,
	})
}

// validateUnifiedDiffShape checks for the minimal structure patch_file
// later requires (---/+++ file headers and at least one @@ hunk) without
// parsing hunks or touching any file.
func validateUnifiedDiffShape(patch string) error {
	trimmed := strings.TrimSpace(patch)
	if trimmed == "" {
		return fmt.Errorf("patch is required")
	}
	if !strings.Contains(patch, "--- ") || !strings.Contains(patch, "+++ ") {
		return fmt.Errorf("patch is missing --- / +++ file headers")
	}
	if !strings.Contains(patch, "@@") {
		return fmt.Errorf("patch has no @@ hunk header")
	}
	return nil
}

func errResult(message string) *agent.ToolResult {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

func jsonResult(v any) (*agent.ToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
