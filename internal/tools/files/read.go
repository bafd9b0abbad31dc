package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// Config controls filesystem tool defaults.
type Config struct {
	Workspace    string
	MaxReadBytes int
}

// defaultMaxReadBytes caps a single read so one large file can't blow
// out the conversation context.
const defaultMaxReadBytes = 200_000

type readParams struct {
	Path     string `json:"path" jsonschema:"required,description=Path to the file (relative to workspace)."`
	Offset   int64  `json:"offset,omitempty" jsonschema:"minimum=0,description=Byte offset to start reading from (default 0)."`
	MaxBytes int    `json:"max_bytes,omitempty" jsonschema:"minimum=0,description=Maximum bytes to read; capped by the tool default."`
}

// ReadTool reads a workspace file, windowed by offset and a byte cap.
type ReadTool struct {
	resolver Resolver
	maxBytes int
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = defaultMaxReadBytes
	}
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace}, maxBytes: limit}
}

func (t *ReadTool) Name() string { return "read_file" }

func (t *ReadTool) Description() string {
	return "Read a file from the workspace with optional offset and byte limit."
}

func (t *ReadTool) Schema() json.RawMessage {
	return generatedSchema[readParams]()
}

func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input readParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}
	if input.Offset < 0 {
		return toolError("offset must be >= 0"), nil
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err)), nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return toolError(fmt.Sprintf("stat file: %v", err)), nil
	}
	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return toolError(fmt.Sprintf("seek file: %v", err)), nil
		}
	}

	window := t.windowSize(input, info.Size())
	buf, err := io.ReadAll(io.LimitReader(file, window))
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"path":      input.Path,
		"content":   string(buf),
		"offset":    input.Offset,
		"bytes":     len(buf),
		"truncated": info.Size() > 0 && input.Offset+int64(len(buf)) < info.Size(),
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}

// windowSize resolves how many bytes this call may read: the caller's
// max_bytes bounded by the tool cap, bounded again by what remains of
// the file past the offset.
func (t *ReadTool) windowSize(input readParams, fileSize int64) int64 {
	limit := int64(t.maxBytes)
	if input.MaxBytes > 0 && int64(input.MaxBytes) < limit {
		limit = int64(input.MaxBytes)
	}
	if fileSize <= 0 {
		return limit
	}
	remaining := fileSize - input.Offset
	if remaining < 0 {
		return 0
	}
	if remaining < limit {
		return remaining
	}
	return limit
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
