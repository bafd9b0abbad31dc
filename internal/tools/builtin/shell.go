// Package builtin holds tools available across multiple modes rather than
// owned by one mode's builder: the restricted shell Ask mode exposes and
// the switch_mode tool every mode exposes.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/classifier"
	safeexec "github.com/haasonsaas/agentcore/internal/exec"
)

// DefaultSafeShellTimeout bounds how long a restricted-shell command may
// run before it is killed.
const DefaultSafeShellTimeout = 30 * time.Second

// SafeShellTool is Ask mode's restricted shell (§3): an allowlist of
// non-mutating command heads, not a filesystem sandbox. It checks the
// command's head against the classifier's own read-head table, then runs
// it directly rather than chrooting the process.
type SafeShellTool struct {
	workingDir string
}

// NewSafeShellTool builds the Ask-mode shell tool scoped to workingDir.
func NewSafeShellTool(workingDir string) *SafeShellTool {
	return &SafeShellTool{workingDir: workingDir}
}

func (t *SafeShellTool) Name() string { return "shell" }

func (t *SafeShellTool) Description() string {
	return "Run a read-only shell command (cat, ls, grep, git log, ...). Commands that write or delete are rejected before they run."
}

func (t *SafeShellTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute. Must be a non-mutating command.",
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *SafeShellTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return errResult("command is required"), nil
	}

	head := classifier.FirstToken(command)
	if !classifier.IsReadOnlyHead(head) {
		return errResult(fmt.Sprintf("%q is not on the Ask-mode read-only allowlist", head)), nil
	}
	if _, err := safeexec.SanitizeExecutableValue(strings.Fields(command)[0]); err != nil {
		return errResult(fmt.Sprintf("unsafe command: %v", err)), nil
	}
	if strings.Contains(command, ">") || strings.Contains(command, ">>") {
		return errResult("output redirection is not permitted in Ask mode"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, DefaultSafeShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, "sh", "-c", command)
	cmd.Dir = t.workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if callCtx.Err() != nil {
			return errResult(fmt.Sprintf("timed out after %d seconds", int(DefaultSafeShellTimeout.Seconds()))), nil
		}
		payload, _ := json.MarshalIndent(map[string]interface{}{
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": cmd.ProcessState.ExitCode(),
		}, "", "  ")
		return &agent.ToolResult{Content: string(payload), IsError: true}, nil
	}

	payload, _ := json.MarshalIndent(map[string]interface{}{
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}, "", "  ")
	return &agent.ToolResult{Content: string(payload)}, nil
}

func errResult(message string) *agent.ToolResult {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
