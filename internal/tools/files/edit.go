package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

type editOp struct {
	OldText    string `json:"old_text" jsonschema:"required,description=Text to replace."`
	NewText    string `json:"new_text" jsonschema:"required,description=Replacement text."`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema:"description=Replace all occurrences (default false)."`
}

type editParams struct {
	Path  string   `json:"path" jsonschema:"required,description=Path to edit (relative to workspace)."`
	Edits []editOp `json:"edits" jsonschema:"required,description=Find/replace operations applied in order."`
}

// EditTool applies ordered find/replace edits to one workspace file. All
// edits apply or none do: a missing old_text fails the call before
// anything is written back.
type EditTool struct {
	resolver Resolver
}

// NewEditTool creates an edit tool scoped to the workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *EditTool) Name() string { return "edit_file" }

func (t *EditTool) Description() string {
	return "Apply one or more find/replace edits to a file in the workspace."
}

func (t *EditTool) Schema() json.RawMessage {
	return generatedSchema[editParams]()
}

func (t *EditTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input editParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}
	if len(input.Edits) == 0 {
		return toolError("edits are required"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	content, replacements, err := applyEdits(string(data), input.Edits)
	if err != nil {
		return toolError(err.Error()), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return toolError(fmt.Sprintf("write file: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"path":         input.Path,
		"replacements": replacements,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// applyEdits runs the operations in order against content, returning the
// edited text and how many replacements were made.
func applyEdits(content string, edits []editOp) (string, int, error) {
	replacements := 0
	for _, edit := range edits {
		if edit.OldText == "" {
			return "", 0, fmt.Errorf("old_text is required")
		}
		count := strings.Count(content, edit.OldText)
		if count == 0 {
			return "", 0, fmt.Errorf("old_text not found")
		}
		if edit.ReplaceAll {
			content = strings.ReplaceAll(content, edit.OldText, edit.NewText)
			replacements += count
		} else {
			content = strings.Replace(content, edit.OldText, edit.NewText, 1)
			replacements++
		}
	}
	return content, replacements, nil
}
