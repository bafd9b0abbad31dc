package config

import "time"

// AgentConfig sets the session-level defaults the CLI flags can override:
// mode, trust level, working directory, and the per-turn iteration cap.
type AgentConfig struct {
	// Mode is the starting agent mode: "ask", "plan", or "build".
	Mode string `yaml:"mode"`

	// Trust is the trust level applied in Build mode: "balanced",
	// "careful", or "manual".
	Trust string `yaml:"trust"`

	// WorkDir is the working directory tools operate against. Empty means
	// the process working directory.
	WorkDir string `yaml:"workdir"`

	// ShellEnabled gates the unrestricted shell tool in Build mode. Nil
	// means enabled.
	ShellEnabled *bool `yaml:"shell_enabled"`

	// MaxIterations caps model/tool round trips within a single turn.
	MaxIterations int `yaml:"max_iterations"`

	// ContextPruning ages out old tool results between compactions.
	ContextPruning ContextPruningConfig `yaml:"context_pruning"`
}

// ContextConfig bounds the conversation context and its compaction.
type ContextConfig struct {
	// MaxTokens is the configured context ceiling.
	MaxTokens int `yaml:"max_tokens"`

	// NearLimitRatio triggers auto-compaction when usage crosses it.
	NearLimitRatio float64 `yaml:"near_limit_ratio"`

	// KeepRecent is how many trailing messages survive compaction.
	KeepRecent int `yaml:"keep_recent"`
}

// ContextPruningConfig controls in-memory tool result pruning for sessions.
type ContextPruningConfig struct {
	Mode                 string                  `yaml:"mode"`
	TTL                  *time.Duration          `yaml:"ttl"`
	KeepLastAssistants   *int                    `yaml:"keep_last_assistants"`
	SoftTrimRatio        *float64                `yaml:"soft_trim_ratio"`
	HardClearRatio       *float64                `yaml:"hard_clear_ratio"`
	MinPrunableToolChars *int                    `yaml:"min_prunable_tool_chars"`
	Tools                ContextPruningToolMatch `yaml:"tools"`
	SoftTrim             ContextPruningSoftTrim  `yaml:"soft_trim"`
	HardClear            ContextPruningHardClear `yaml:"hard_clear"`
}

// ContextPruningToolMatch selects which tool results can be trimmed.
type ContextPruningToolMatch struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// ContextPruningSoftTrim configures soft trimming of tool result content.
type ContextPruningSoftTrim struct {
	MaxChars  *int `yaml:"max_chars"`
	HeadChars *int `yaml:"head_chars"`
	TailChars *int `yaml:"tail_chars"`
}

// ContextPruningHardClear configures hard clearing of tool result content.
type ContextPruningHardClear struct {
	Enabled     *bool  `yaml:"enabled"`
	Placeholder string `yaml:"placeholder"`
}
