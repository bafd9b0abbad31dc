package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

type deleteParams struct {
	Path string `json:"path" jsonschema:"required,description=Path to the file to delete (relative to workspace)."`
}

// DeleteTool removes a single file from the workspace. It classifies as
// a Delete operation, carries the Dangerous risk tag, and never removes
// directories.
type DeleteTool struct {
	resolver Resolver
}

// NewDeleteTool creates a delete tool scoped to the workspace.
func NewDeleteTool(cfg Config) *DeleteTool {
	return &DeleteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *DeleteTool) Name() string { return "delete_file" }

func (t *DeleteTool) Description() string {
	return "Delete a single file from the workspace."
}

func (t *DeleteTool) Schema() json.RawMessage {
	return generatedSchema[deleteParams]()
}

func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input deleteParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("stat file: %v", err)), nil
	}
	if info.IsDir() {
		return toolError("refusing to delete a directory"), nil
	}

	if err := os.Remove(resolved); err != nil {
		return toolError(fmt.Sprintf("delete file: %v", err)), nil
	}

	payload, err := json.Marshal(map[string]interface{}{"path": input.Path, "deleted": true})
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
