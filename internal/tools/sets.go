package tools

import (
	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/tools/exec"
	"github.com/haasonsaas/agentcore/internal/tools/files"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type builderEntry = struct {
	Tool agent.Tool
	Risk models.RiskLevel
}

// readOnlyEntries builds the file/search tools common to every mode:
// AskBuilder and PlanBuilder return exactly these, BuildBuilder adds to them.
func readOnlyEntries(workingDir string) map[string]builderEntry {
	cfg := files.Config{Workspace: workingDir}
	return map[string]builderEntry{
		"read_file": {Tool: files.NewReadTool(cfg), Risk: models.RiskReadOnly},
		"list_dir":  {Tool: files.NewListTool(cfg), Risk: models.RiskReadOnly},
		"search":    {Tool: files.NewSearchTool(cfg), Risk: models.RiskReadOnly},
	}
}

// AskBuilder returns the Ask-mode tool set: strictly read-only, shell
// execution never included regardless of shellEnabled.
func AskBuilder(workingDir string, shellEnabled bool) map[string]builderEntry {
	return readOnlyEntries(workingDir)
}

// PlanBuilder returns the Plan-mode tool set: the same read-only tools Ask
// has, for investigating the workspace while drafting a plan. Plan never
// mutates the workspace or shells out.
func PlanBuilder(workingDir string, shellEnabled bool) map[string]builderEntry {
	return readOnlyEntries(workingDir)
}

// BuildBuilder returns the Build-mode tool set: read-only tools plus
// write/delete file tools and, if shellEnabled, command execution.
func BuildBuilder(workingDir string, shellEnabled bool) map[string]builderEntry {
	cfg := files.Config{Workspace: workingDir}
	out := readOnlyEntries(workingDir)
	out["write_file"] = builderEntry{Tool: files.NewWriteTool(cfg), Risk: models.RiskWrite}
	out["edit_file"] = builderEntry{Tool: files.NewEditTool(cfg), Risk: models.RiskWrite}
	out["patch_file"] = builderEntry{Tool: files.NewApplyPatchTool(cfg), Risk: models.RiskWrite}
	out["delete_file"] = builderEntry{Tool: files.NewDeleteTool(cfg), Risk: models.RiskDangerous}

	if shellEnabled {
		manager := exec.NewManager(workingDir)
		out["shell"] = builderEntry{Tool: exec.NewExecTool("shell", manager), Risk: models.RiskRisky}
		out["process"] = builderEntry{Tool: exec.NewProcessTool(manager), Risk: models.RiskRisky}
	}
	return out
}
