// Package classifier derives a deterministic CommandClassification from a
// tool name and its arguments, the input the policy engine reasons about.
package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// CommandClassification is the deterministic, pure output of Classify.
type CommandClassification struct {
	Operation        models.Operation `json:"operation"`
	InWorkdir        bool             `json:"in_workdir"`
	ClassificationID string           `json:"classification_id"`
	// CommandString is a human-readable rendering of the invocation, used
	// by the tool registry to display what is being approved.
	CommandString string `json:"command_string"`
}

// readHeads are shell command heads classified as read-only.
var readHeads = map[string]bool{
	"cat": true, "less": true, "more": true, "ls": true, "grep": true,
	"egrep": true, "fgrep": true, "rg": true, "find": true, "head": true,
	"tail": true, "wc": true, "pwd": true, "echo": true, "which": true,
	"file": true, "stat": true, "diff": true, "tree": true, "env": true,
	"git-log": true, "git-status": true, "git-diff": true, "git-show": true,
	"git-branch": true, "printenv": true, "whoami": true, "date": true,
	"go-vet": true, "go-build": true,
}

// deleteHeads are shell command heads classified as destructive deletes.
var deleteHeads = map[string]bool{
	"rm": true, "rmdir": true, "unlink": true,
}

// writeHeads are shell command heads classified as writes.
var writeHeads = map[string]bool{
	"mv": true, "cp": true, "mkdir": true, "touch": true, "chmod": true,
	"chown": true, "tee": true, "sed": true, "git-commit": true,
	"git-add": true, "git-checkout": true, "git-merge": true, "git-rebase": true,
	"git-push": true, "git-reset": true, "truncate": true,
}

// fileToolOperations fixes the operation for file-oriented tools by identity.
var fileToolOperations = map[string]models.Operation{
	"read_file":  models.OpRead,
	"list_dir":   models.OpRead,
	"search":     models.OpRead,
	"write_file": models.OpWrite,
	"edit_file":  models.OpWrite,
	"patch_file": models.OpWrite,
	"delete_file": models.OpDelete,
}

// pathArgKeys are checked, in order, for the first path-like argument on a
// file-oriented tool call.
var pathArgKeys = []string{"path", "file", "file_path", "target", "dir", "directory"}

// IsReadOnlyHead reports whether head (as produced by FirstToken) is a
// known non-mutating command, the table the Ask-mode restricted shell
// allowlists against.
func IsReadOnlyHead(head string) bool {
	return readHeads[head]
}

// FirstToken exposes the shell head-extraction rule used for command
// classification so callers (e.g. the Ask-mode restricted shell) can
// allowlist against the same notion of "head" the classifier uses.
func FirstToken(command string) string {
	return firstToken(command)
}

// Classifier canonicalizes shell and file tool invocations into a
// CommandClassification. It touches the filesystem only to resolve the
// in_workdir check against WorkDir; it never executes anything.
type Classifier struct {
	WorkDir string
}

// Classify is deterministic and pure aside from path canonicalization: same
// inputs always yield the same CommandClassification, including id.
func (c Classifier) Classify(toolName string, args json.RawMessage) CommandClassification {
	if op, ok := fileToolOperations[toolName]; ok {
		return c.classifyFileTool(toolName, op, args)
	}
	if toolName == "shell" || toolName == "exec" {
		return c.classifyShell(toolName, args)
	}
	return c.build(toolName, models.OpExecute, true, "")
}

func (c Classifier) classifyFileTool(toolName string, op models.Operation, args json.RawMessage) CommandClassification {
	path := extractPathArg(args)
	inWorkdir := true
	if path != "" {
		inWorkdir = c.inWorkdir(path)
	}
	return c.build(toolName, op, inWorkdir, path)
}

func (c Classifier) classifyShell(toolName string, args json.RawMessage) CommandClassification {
	command := extractCommandArg(args)
	trimmed := strings.TrimLeft(command, " \t")
	if trimmed == "" {
		return c.build(toolName, models.OpExecute, true, "")
	}

	head := firstToken(trimmed)
	op := classifyHead(head, trimmed)
	return c.build(toolName, op, true, command)
}

// firstToken returns the first whitespace-delimited token before any
// redirection or logical operator, normalizing "git log" style subcommands
// to "git-log" for table lookup.
func firstToken(command string) string {
	cut := len(command)
	for _, sep := range []string{"|", "&", ";", ">", "<", "$(", "`"} {
		if idx := strings.Index(command, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	head := command[:cut]
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ""
	}
	if fields[0] == "git" && len(fields) > 1 {
		return "git-" + fields[1]
	}
	if fields[0] == "go" && len(fields) > 1 {
		return "go-" + fields[1]
	}
	return fields[0]
}

func classifyHead(head, fullCommand string) models.Operation {
	switch {
	case deleteHeads[head]:
		return models.OpDelete
	case writeHeads[head]:
		return models.OpWrite
	case strings.Contains(fullCommand, ">"):
		return models.OpWrite
	case readHeads[head]:
		return models.OpRead
	}
	return models.OpExecute
}

func (c Classifier) inWorkdir(path string) bool {
	workDir := strings.TrimSpace(c.WorkDir)
	if workDir == "" {
		workDir = "."
	}
	workAbs, err := filepath.Abs(workDir)
	if err != nil {
		return false
	}
	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(workAbs, path)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(workAbs, targetAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func (c Classifier) build(toolName string, op models.Operation, inWorkdir bool, commandString string) CommandClassification {
	return CommandClassification{
		Operation:        op,
		InWorkdir:        inWorkdir,
		ClassificationID: classificationID(op, inWorkdir, toolName),
		CommandString:    commandString,
	}
}

func classificationID(op models.Operation, inWorkdir bool, toolName string) string {
	h := sha256.New()
	h.Write([]byte(string(op)))
	h.Write([]byte{0})
	if inWorkdir {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte{0})
	h.Write([]byte(toolName))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func extractPathArg(args json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	for _, key := range pathArgKeys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func extractCommandArg(args json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return ""
	}
	for _, key := range []string{"command", "cmd", "script"} {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
