package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// ListTool lists the immediate contents of a workspace directory.
type ListTool struct {
	resolver Resolver
}

// NewListTool creates a directory-listing tool scoped to the workspace.
func NewListTool(cfg Config) *ListTool {
	return &ListTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ListTool) Name() string { return "list_dir" }

func (t *ListTool) Description() string {
	return "List the immediate contents of a directory in the workspace."
}

func (t *ListTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (relative to workspace, default \".\").",
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	path := input.Path
	if strings.TrimSpace(path) == "" {
		path = "."
	}

	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("list dir: %v", err)), nil
	}

	type entry struct {
		Name  string `json:"name"`
		IsDir bool   `json:"is_dir"`
		Size  int64  `json:"size"`
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		out = append(out, entry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	payload, err := json.MarshalIndent(map[string]interface{}{
		"path":    path,
		"entries": out,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
