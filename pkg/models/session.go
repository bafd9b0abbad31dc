package models

import "time"

// ChannelType identifies which front-end owns a session: the local
// terminal or a connection speaking the remote editor protocol (§6).
type ChannelType string

const (
	ChannelTerminal ChannelType = "terminal"
	ChannelRemote   ChannelType = "remote"
)

// Session is the durable record of one agent conversation: its working
// directory, mode, trust level, and the front-end connection it belongs to.
// The live ConversationContext, tool registry, and interaction channel are
// runtime-only and are reconstructed from this record on resume, not stored
// here.
type Session struct {
	ID        string      `json:"id"`
	Key       string      `json:"key"`
	Channel   ChannelType `json:"channel"`
	ChannelID string      `json:"channel_id"`

	WorkingDir   string     `json:"working_dir"`
	Mode         AgentMode  `json:"mode"`
	Trust        TrustLevel `json:"trust"`
	ShellEnabled bool       `json:"shell_enabled"`

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActivity time.Time `json:"last_activity"`

	Metadata map[string]any `json:"metadata,omitempty"`
}
