package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

type patchParams struct {
	Patch string `json:"patch" jsonschema:"required,description=Unified diff patch (---/+++ headers required)."`
}

// ApplyPatchTool applies a unified diff to workspace files. Context and
// delete lines are matched exactly against the target; any mismatch
// fails the whole call so a half-applied patch never reaches disk for
// that file.
type ApplyPatchTool struct {
	resolver Resolver
}

// NewApplyPatchTool creates a patch tool scoped to the workspace.
func NewApplyPatchTool(cfg Config) *ApplyPatchTool {
	return &ApplyPatchTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ApplyPatchTool) Name() string { return "patch_file" }

func (t *ApplyPatchTool) Description() string {
	return "Apply a unified diff patch to one or more files in the workspace."
}

func (t *ApplyPatchTool) Schema() json.RawMessage {
	return generatedSchema[patchParams]()
}

func (t *ApplyPatchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input patchParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Patch) == "" {
		return toolError("patch is required"), nil
	}

	patches, err := parseUnifiedDiff(input.Patch)
	if err != nil {
		return toolError(err.Error()), nil
	}

	applied := make([]map[string]interface{}, 0, len(patches))
	for _, patch := range patches {
		resolved, err := t.resolver.Resolve(patch.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return toolError(fmt.Sprintf("read file: %v", err)), nil
		}
		content, stats, err := patch.apply(string(data))
		if err != nil {
			return toolError(fmt.Sprintf("apply patch to %s: %v", patch.Path, err)), nil
		}
		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return toolError(fmt.Sprintf("write file: %v", err)), nil
		}
		applied = append(applied, map[string]interface{}{
			"path":          patch.Path,
			"hunks":         len(patch.Hunks),
			"lines_added":   stats.added,
			"lines_removed": stats.removed,
		})
	}

	payload, err := json.MarshalIndent(map[string]interface{}{"applied": applied}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// filePatch is one file's worth of hunks from a unified diff.
type filePatch struct {
	Path  string
	Hunks []hunk
}

// hunk is one @@ block: its old-file anchor plus the prefixed lines.
type hunk struct {
	OldStart int
	Lines    []string
}

type patchStats struct {
	added   int
	removed int
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+\d+(?:,\d+)? @@`)

// parseUnifiedDiff splits a unified diff into per-file patches. The +++
// header names the target; a/ and b/ prefixes are stripped so git-style
// diffs resolve against the workspace directly.
func parseUnifiedDiff(patch string) ([]filePatch, error) {
	var patches []filePatch
	var hunkLines *[]string

	lines := strings.Split(patch, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "):
			// git preamble, carries nothing the apply step needs

		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("invalid patch: missing +++ header")
			}
			target := strings.TrimSpace(strings.TrimPrefix(lines[i+1], "+++ "))
			target = strings.TrimPrefix(strings.TrimPrefix(target, "b/"), "a/")
			patches = append(patches, filePatch{Path: target})
			hunkLines = nil
			i++

		case strings.HasPrefix(line, "@@ "):
			if len(patches) == 0 {
				return nil, fmt.Errorf("invalid patch: hunk without file header")
			}
			match := hunkHeaderRe.FindStringSubmatch(line)
			if match == nil {
				return nil, fmt.Errorf("invalid patch: malformed hunk header")
			}
			oldStart, _ := strconv.Atoi(match[1])
			current := &patches[len(patches)-1]
			current.Hunks = append(current.Hunks, hunk{OldStart: oldStart})
			hunkLines = &current.Hunks[len(current.Hunks)-1].Lines

		default:
			if hunkLines == nil || line == "" || line == `\ No newline at end of file` {
				continue
			}
			switch line[0] {
			case ' ', '+', '-':
				*hunkLines = append(*hunkLines, line)
			default:
				return nil, fmt.Errorf("invalid patch line: %s", line)
			}
		}
	}

	if len(patches) == 0 {
		return nil, fmt.Errorf("invalid patch: no file headers found")
	}
	return patches, nil
}

// apply replays the patch's hunks against content. Context (" ") and
// delete ("-") lines must match the file exactly at the cursor.
func (p filePatch) apply(content string) (string, patchStats, error) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	var fileLines []string
	if trimmed := strings.TrimSuffix(content, "\n"); trimmed != "" {
		fileLines = strings.Split(trimmed, "\n")
	}

	var stats patchStats
	for _, h := range p.Hunks {
		cursor := h.OldStart - 1
		if cursor < 0 {
			cursor = 0
		}
		for _, line := range h.Lines {
			text := line[1:]
			switch line[0] {
			case ' ':
				if cursor >= len(fileLines) || fileLines[cursor] != text {
					return "", patchStats{}, fmt.Errorf("context mismatch at line %d", cursor+1)
				}
				cursor++
			case '-':
				if cursor >= len(fileLines) || fileLines[cursor] != text {
					return "", patchStats{}, fmt.Errorf("delete mismatch at line %d", cursor+1)
				}
				fileLines = append(fileLines[:cursor], fileLines[cursor+1:]...)
				stats.removed++
			case '+':
				fileLines = append(fileLines[:cursor], append([]string{text}, fileLines[cursor:]...)...)
				cursor++
				stats.added++
			}
		}
	}

	result := strings.Join(fileLines, "\n")
	if hadTrailingNewline {
		result += "\n"
	}
	return result, stats, nil
}
