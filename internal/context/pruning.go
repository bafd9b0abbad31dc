package context

import (
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// PruningMode selects the strategy used to keep tool-result content from
// dominating the token budget between compactions.
type PruningMode string

const (
	// PruningCacheTTL soft-trims then hard-clears old tool results once
	// they have aged out of the provider's prompt cache window.
	PruningCacheTTL PruningMode = "cache_ttl"
)

// ToolMatch selects which tool results are eligible for pruning by name.
type ToolMatch struct {
	Allow []string
	Deny  []string
}

// Allowed reports whether a tool name may be pruned under this match set.
// An empty Allow list means "all tools" unless explicitly denied.
func (m ToolMatch) Allowed(tool string) bool {
	for _, d := range m.Deny {
		if d == tool {
			return false
		}
	}
	if len(m.Allow) == 0 {
		return true
	}
	for _, a := range m.Allow {
		if a == tool {
			return true
		}
	}
	return false
}

// SoftTrimSettings configures truncation of a tool result's body, keeping a
// head and tail slice and eliding the middle.
type SoftTrimSettings struct {
	MaxChars  int
	HeadChars int
	TailChars int
}

// HardClearSettings configures full replacement of an aged-out tool
// result's content with a placeholder.
type HardClearSettings struct {
	Enabled     bool
	Placeholder string
}

// PruningSettings is the runtime form of a ContextPruningConfig.
type PruningSettings struct {
	Mode                 PruningMode
	TTL                  time.Duration
	KeepLastAssistants   int
	SoftTrimRatio        float64
	HardClearRatio       float64
	MinPrunableToolChars int
	Tools                ToolMatch
	SoftTrim             SoftTrimSettings
	HardClear            HardClearSettings
}

// DefaultPruningSettings returns conservative defaults: soft-trim tool
// results older than the TTL, hard-clear once twice that old.
func DefaultPruningSettings() PruningSettings {
	return PruningSettings{
		Mode:                 PruningCacheTTL,
		TTL:                  10 * time.Minute,
		KeepLastAssistants:   2,
		SoftTrimRatio:        0.6,
		HardClearRatio:       0.85,
		MinPrunableToolChars: 400,
		SoftTrim:             SoftTrimSettings{MaxChars: 2000, HeadChars: 800, TailChars: 400},
		HardClear:            HardClearSettings{Enabled: true, Placeholder: "[tool result pruned]"},
	}
}

// PruneToolResults soft-trims, then hard-clears, tool_result parts older
// than settings.TTL (resp. 2x TTL), skipping results belonging to the last
// KeepLastAssistants assistant turns. It returns a new slice; msgs is not
// mutated. The system prompt (index 0) is never touched. Pruning only ever
// replaces a tool_result's text, so tool_call/tool_result pairing by id is
// preserved exactly as invariant (b) requires.
func PruneToolResults(msgs []models.Message, now time.Time, settings PruningSettings) []models.Message {
	if len(msgs) == 0 || settings.Mode != PruningCacheTTL {
		return msgs
	}

	toolNames := map[string]string{}
	for _, m := range msgs {
		for _, p := range m.Parts {
			if p.Type == models.PartToolCall {
				toolNames[p.ToolCallID] = p.ToolCallName
			}
		}
	}

	protectedFrom := len(msgs)
	assistantsSeen := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			assistantsSeen++
		}
		protectedFrom = i
		if assistantsSeen >= settings.KeepLastAssistants {
			break
		}
	}

	out := make([]models.Message, len(msgs))
	copy(out, msgs)

	for i := 1; i < protectedFrom; i++ {
		if out[i].Role != models.RoleTool {
			continue
		}
		age := now.Sub(out[i].CreatedAt)
		if age < settings.TTL {
			continue
		}

		newParts := make([]models.Part, len(out[i].Parts))
		copy(newParts, out[i].Parts)
		changed := false
		for j, p := range newParts {
			if p.Type != models.PartToolResult {
				continue
			}
			if !settings.Tools.Allowed(toolNames[p.ToolCallID]) {
				continue
			}
			if len(p.ToolResultText) < settings.MinPrunableToolChars {
				continue
			}
			if settings.HardClear.Enabled && age >= 2*settings.TTL {
				p.ToolResultText = settings.HardClear.Placeholder
			} else {
				p.ToolResultText = softTrim(p.ToolResultText, settings.SoftTrim)
			}
			newParts[j] = p
			changed = true
		}
		if changed {
			out[i].Parts = newParts
		}
	}

	return out
}

func softTrim(text string, s SoftTrimSettings) string {
	if s.MaxChars <= 0 || len(text) <= s.MaxChars {
		return text
	}
	head := s.HeadChars
	tail := s.TailChars
	if head+tail >= len(text) {
		return text
	}
	return text[:head] + "\n... [pruned] ...\n" + text[len(text)-tail:]
}
