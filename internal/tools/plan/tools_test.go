package plan

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestToolAddCompleteList(t *testing.T) {
	tracker := NewTracker()
	tool := NewTool(tracker)

	params, _ := json.Marshal(map[string]any{"action": "add", "text": "write the tests"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	var step Step
	if err := json.Unmarshal([]byte(result.Content), &step); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if step.ID == "" || step.Done {
		t.Fatalf("unexpected step: %+v", step)
	}

	completeParams, _ := json.Marshal(map[string]any{"action": "complete", "step_id": step.ID})
	result, err = tool.Execute(context.Background(), completeParams)
	if err != nil {
		t.Fatalf("execute complete: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}

	listParams, _ := json.Marshal(map[string]any{"action": "list"})
	result, err = tool.Execute(context.Background(), listParams)
	if err != nil {
		t.Fatalf("execute list: %v", err)
	}
	if !strings.Contains(result.Content, step.ID) {
		t.Fatalf("expected listed step in result: %s", result.Content)
	}
}

func TestToolCompleteUnknownStep(t *testing.T) {
	tool := NewTool(NewTracker())
	params, _ := json.Marshal(map[string]any{"action": "complete", "step_id": "step-99"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error result for unknown step")
	}
}

func TestCompleteToolRequiresAllDone(t *testing.T) {
	tracker := NewTracker()
	tracker.Add("step one")
	completeTool := NewCompleteTool(tracker)

	result, err := completeTool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error while steps are open")
	}

	for _, step := range tracker.List() {
		tracker.Complete(step.ID)
	}
	result, err = completeTool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success once all steps done: %s", result.Content)
	}
}

func TestProposeChangeToolValidatesDiffShape(t *testing.T) {
	tool := NewProposeChangeTool()

	badParams, _ := json.Marshal(map[string]string{"patch": "not a diff"})
	result, err := tool.Execute(context.Background(), badParams)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error for malformed patch")
	}

	goodPatch := "--- a/file.go\n+++ b/file.go\n@@ -1 +1 @@\n-old\n+new\n"
	goodParams, _ := json.Marshal(map[string]string{"patch": goodPatch, "summary": "fix typo"})
	result, err = tool.Execute(context.Background(), goodParams)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success for well-formed patch: %s", result.Content)
	}
	if !strings.Contains(result.Content, "fix typo") {
		t.Fatalf("expected summary echoed in result: %s", result.Content)
	}
}

func TestTrackerAllDone(t *testing.T) {
	tracker := NewTracker()
	if tracker.AllDone() {
		t.Fatalf("empty tracker should not report all-done")
	}
	step := tracker.Add("do the thing")
	if tracker.AllDone() {
		t.Fatalf("tracker with an open step should not report all-done")
	}
	if !tracker.Complete(step.ID) {
		t.Fatalf("expected Complete to find the step")
	}
	if !tracker.AllDone() {
		t.Fatalf("expected all-done once every step is complete")
	}
}
