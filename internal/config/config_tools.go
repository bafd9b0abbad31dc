package config

import "time"

// ToolsConfig bounds tool execution and locates the pattern store.
type ToolsConfig struct {
	// DefaultTimeout is the configured per-call default, validated at load
	// against SafetyCap. The tool registry does not read it: a call that
	// omits timeout_secs gets tools.DefaultCallTimeout.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// SafetyCap is the configured per-call timeout ceiling. The tool
	// registry does not read it: requests are capped at
	// tools.SafetyCapTimeout.
	SafetyCap time.Duration `yaml:"safety_cap"`

	// PatternsDB is the path of the persistent approval-pattern store.
	PatternsDB string `yaml:"patterns_db"`
}

// InteractionConfig bounds the approval/questionnaire mailbox.
type InteractionConfig struct {
	// ApprovalTimeout is the watchdog deadline for approval requests; an
	// unanswered request is implicitly denied when it expires.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`

	// QuestionnaireTimeout is the watchdog deadline for questionnaires.
	QuestionnaireTimeout time.Duration `yaml:"questionnaire_timeout"`

	// QueueCapacity bounds the mailbox; when full, new requests fail
	// synchronously rather than blocking the agent loop.
	QueueCapacity int `yaml:"queue_capacity"`
}
