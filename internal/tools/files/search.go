package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// SearchTool greps for a regular expression across workspace files.
type SearchTool struct {
	resolver  Resolver
	maxHits   int
	skipDirs  map[string]bool
}

// NewSearchTool creates a search tool scoped to the workspace.
func NewSearchTool(cfg Config) *SearchTool {
	return &SearchTool{
		resolver: Resolver{Root: cfg.Workspace},
		maxHits:  500,
		skipDirs: map[string]bool{".git": true, "node_modules": true, "vendor": true},
	}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search workspace files for a regular expression, returning matching file:line excerpts."
}

func (t *SearchTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regular expression to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to search under (relative to workspace, default \".\").",
			},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}
	re, err := regexp.Compile(input.Pattern)
	if err != nil {
		return toolError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	root := input.Path
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	resolved, err := t.resolver.Resolve(root)
	if err != nil {
		return toolError(err.Error()), nil
	}

	type match struct {
		Path string `json:"path"`
		Line int    `json:"line"`
		Text string `json:"text"`
	}
	var hits []match

	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if t.skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(hits) >= t.maxHits {
			return fs.SkipAll
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if re.MatchString(line) {
				rel, relErr := filepath.Rel(resolved, path)
				if relErr != nil {
					rel = path
				}
				hits = append(hits, match{Path: rel, Line: lineNum, Text: strings.TrimSpace(line)})
				if len(hits) >= t.maxHits {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != fs.SkipAll {
		return toolError(fmt.Sprintf("search: %v", walkErr)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"pattern": input.Pattern,
		"matches": hits,
		"count":   len(hits),
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
