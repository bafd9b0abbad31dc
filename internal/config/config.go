// Package config loads and validates the agentcore configuration file:
// YAML (or JSON5) with $include resolution, environment variable
// expansion, strict unknown-field rejection, and hot reload via Watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/audit"
)

// Config is the root of the agentcore configuration file.
type Config struct {
	// Version is the config file schema version. Omitted means current.
	Version int `yaml:"version"`

	Agent         AgentConfig         `yaml:"agent"`
	Context       ContextConfig       `yaml:"context"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Interaction   InteractionConfig   `yaml:"interaction"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Audit         audit.Config        `yaml:"audit"`
}

// ConfigValidationError aggregates every issue found in one pass so the
// user can fix the file once rather than replaying load-fix cycles.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Issues, "; "))
}

// Load reads, merges, env-expands, decodes, and validates the config file
// at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets a handful of AGENTCORE_* variables override the
// file without editing it, mirroring the flags the CLI exposes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTCORE_WORKDIR"); v != "" {
		cfg.Agent.WorkDir = v
	}
	if v := os.Getenv("AGENTCORE_MODE"); v != "" {
		cfg.Agent.Mode = v
	}
	if v := os.Getenv("AGENTCORE_TRUST"); v != "" {
		cfg.Agent.Trust = v
	}
	if v := os.Getenv("AGENTCORE_PATTERNS_DB"); v != "" {
		cfg.Tools.PatternsDB = v
	}
	if v := os.Getenv("AGENTCORE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENTCORE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxIterations = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Agent.Mode == "" {
		c.Agent.Mode = "build"
	}
	if c.Agent.Trust == "" {
		c.Agent.Trust = "balanced"
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Context.MaxTokens == 0 {
		c.Context.MaxTokens = 100_000
	}
	if c.Context.NearLimitRatio == 0 {
		c.Context.NearLimitRatio = 0.8
	}
	if c.Context.KeepRecent == 0 {
		c.Context.KeepRecent = 4
	}
	if c.Tools.DefaultTimeout == 0 {
		c.Tools.DefaultTimeout = 60 * time.Second
	}
	if c.Tools.SafetyCap == 0 {
		c.Tools.SafetyCap = 600 * time.Second
	}
	if c.Interaction.ApprovalTimeout == 0 {
		c.Interaction.ApprovalTimeout = 120 * time.Second
	}
	if c.Interaction.QuestionnaireTimeout == 0 {
		c.Interaction.QuestionnaireTimeout = 180 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8787"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/agent"
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = 8
	}
}

// Validate collects every issue in the decoded config.
func (c *Config) Validate() error {
	var issues []string

	if err := ValidateVersion(c.Version); err != nil {
		issues = append(issues, err.Error())
	}

	switch strings.ToLower(c.Agent.Mode) {
	case "ask", "plan", "build":
	default:
		issues = append(issues, fmt.Sprintf("agent.mode must be ask, plan, or build (got %q)", c.Agent.Mode))
	}
	switch strings.ToLower(c.Agent.Trust) {
	case "balanced", "careful", "manual":
	default:
		issues = append(issues, fmt.Sprintf("agent.trust must be balanced, careful, or manual (got %q)", c.Agent.Trust))
	}
	if c.Agent.MaxIterations < 0 {
		issues = append(issues, "agent.max_iterations must not be negative")
	}

	if c.Context.MaxTokens < 0 {
		issues = append(issues, "context.max_tokens must not be negative")
	}
	if c.Context.NearLimitRatio <= 0 || c.Context.NearLimitRatio > 1 {
		issues = append(issues, fmt.Sprintf("context.near_limit_ratio must be in (0, 1] (got %v)", c.Context.NearLimitRatio))
	}
	if c.Context.KeepRecent < 0 {
		issues = append(issues, "context.keep_recent must not be negative")
	}

	if c.LLM.DefaultProvider != "" {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("llm.default_provider %q is not defined under llm.providers", c.LLM.DefaultProvider))
		}
	}
	for _, name := range c.LLM.FallbackChain {
		if _, ok := c.LLM.Providers[name]; !ok {
			issues = append(issues, fmt.Sprintf("llm.fallback_chain entry %q is not defined under llm.providers", name))
		}
	}

	if c.Tools.DefaultTimeout < 0 {
		issues = append(issues, "tools.default_timeout must not be negative")
	}
	if c.Tools.SafetyCap < 0 {
		issues = append(issues, "tools.safety_cap must not be negative")
	}
	if c.Tools.SafetyCap > 0 && c.Tools.DefaultTimeout > c.Tools.SafetyCap {
		issues = append(issues, "tools.default_timeout must not exceed tools.safety_cap")
	}

	if c.Interaction.ApprovalTimeout < 0 {
		issues = append(issues, "interaction.approval_timeout must not be negative")
	}
	if c.Interaction.QuestionnaireTimeout < 0 {
		issues = append(issues, "interaction.questionnaire_timeout must not be negative")
	}
	if c.Interaction.QueueCapacity < 0 {
		issues = append(issues, "interaction.queue_capacity must not be negative")
	}

	if c.Server.MaxSessions < 0 {
		issues = append(issues, "server.max_sessions must not be negative")
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 {
		issues = append(issues, "server.rate_limit.requests_per_minute must not be negative")
	}
	if c.Server.Auth.TokenExpiry < 0 {
		issues = append(issues, "server.auth.token_expiry must not be negative")
	}

	if c.Observability.Tracing.SamplingRate < 0 || c.Observability.Tracing.SamplingRate > 1 {
		issues = append(issues, fmt.Sprintf("observability.tracing.sampling_rate must be in [0, 1] (got %v)", c.Observability.Tracing.SamplingRate))
	}

	issues = append(issues, pluginValidationIssues(c)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
