// Package models holds the data types shared across the agent execution
// core: conversation messages, tool calls/results, and the risk/trust
// vocabulary the policy engine reasons about.
package models

import (
	"encoding/json"
	"time"
)

// Role tags a message by its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// PartType discriminates a Message's content parts.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Part is a single element of a message's content. A Message's Content is
// either plain text (Text on the Message itself) or an ordered sequence of
// Parts of these three kinds.
type Part struct {
	Type PartType `json:"type"`

	// Text, when Type == PartText.
	Text string `json:"text,omitempty"`

	// ToolCall fields, when Type == PartToolCall. ID is opaque and issued by
	// the model; it is echoed back in the matching PartToolResult.
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	ToolCallName string          `json:"tool_call_name,omitempty"`
	ToolCallArgs json.RawMessage `json:"tool_call_args,omitempty"`

	// ToolResult fields, when Type == PartToolResult.
	ToolResultText string `json:"tool_result_text,omitempty"`
}

// Message is one entry in a ConversationContext. Content is either plain
// text (Text non-empty, Parts empty) or an ordered sequence of Parts.
// Messages are append-only within a turn; compaction may replace a prefix
// with a synthetic system summary message.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text,omitempty"`
	Parts     []Part    `json:"parts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasToolCalls reports whether this message carries one or more tool_call parts.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			return true
		}
	}
	return false
}

// ToolCalls extracts the tool_call parts from the message, in order.
func (m Message) ToolCalls() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}

// NewSystemMessage builds a system-role text message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text, CreatedAt: time.Now()}
}

// NewUserMessage builds a user-role text message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text, CreatedAt: time.Now()}
}

// NewAssistantTextMessage builds an assistant-role message carrying plain text only.
func NewAssistantTextMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text, CreatedAt: time.Now()}
}

// NewAssistantPartsMessage builds an assistant-role message carrying an
// interleaved text + tool_call part sequence, as required when the model
// response mixes prose with tool invocations.
func NewAssistantPartsMessage(text string, toolCalls []ToolCall) Message {
	msg := Message{Role: RoleAssistant, CreatedAt: time.Now()}
	if text != "" {
		msg.Parts = append(msg.Parts, Part{Type: PartText, Text: text})
	}
	for _, tc := range toolCalls {
		msg.Parts = append(msg.Parts, Part{
			Type:         PartToolCall,
			ToolCallID:   tc.ID,
			ToolCallName: tc.Name,
			ToolCallArgs: tc.Input,
		})
	}
	return msg
}

// NewToolResultMessage builds a tool-role message carrying a single
// tool_result part tied to the originating call id.
func NewToolResultMessage(callID, text string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type:           PartToolResult,
			ToolCallID:     callID,
			ToolResultText: text,
		}},
		CreatedAt: time.Now(),
	}
}

// ToolCall is the model's request to invoke a named tool with JSON args.
// ID is opaque and is treated as equal only to the ID echoed back in the
// matching ToolResult.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Attachment references binary content (typically an image) carried
// alongside a message or tool result, either inline as a data URL or by
// reference as an http(s)/file URL.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ToolResult is the outcome of a single tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
}

// RiskLevel classifies how dangerous a tool's effects can be. The ordering
// is total: ReadOnly < Write < Risky < Dangerous, and is the only axis the
// trust model uses.
type RiskLevel int

const (
	RiskReadOnly RiskLevel = iota
	RiskWrite
	RiskRisky
	RiskDangerous
)

func (r RiskLevel) String() string {
	switch r {
	case RiskReadOnly:
		return "read_only"
	case RiskWrite:
		return "write"
	case RiskRisky:
		return "risky"
	case RiskDangerous:
		return "dangerous"
	default:
		return "unknown"
	}
}

// ParseRiskLevel parses the canonical string form of a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch s {
	case "read_only":
		return RiskReadOnly, true
	case "write":
		return RiskWrite, true
	case "risky":
		return RiskRisky, true
	case "dangerous":
		return RiskDangerous, true
	default:
		return 0, false
	}
}

// TrustLevel is the user's declared tolerance for auto-approved operations
// within Build mode.
type TrustLevel int

const (
	TrustBalanced TrustLevel = iota
	TrustCareful
	TrustManual
)

func (t TrustLevel) String() string {
	switch t {
	case TrustBalanced:
		return "balanced"
	case TrustCareful:
		return "careful"
	case TrustManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseTrustLevel parses the canonical string form of a TrustLevel.
func ParseTrustLevel(s string) (TrustLevel, bool) {
	switch s {
	case "balanced":
		return TrustBalanced, true
	case "careful":
		return TrustCareful, true
	case "manual":
		return TrustManual, true
	default:
		return 0, false
	}
}

// NeedsApprovalCheck reports whether, at this trust level, a tool of the
// given risk must be checked for approval before running.
//
//	Balanced: Risky, Dangerous
//	Careful:  Write, Risky, Dangerous
//	Manual:   all four
//
// This mapping is monotone in risk for every trust level: raising risk
// never reduces approval requirements.
func (t TrustLevel) NeedsApprovalCheck(risk RiskLevel) bool {
	switch t {
	case TrustManual:
		return true
	case TrustCareful:
		return risk >= RiskWrite
	case TrustBalanced:
		return risk >= RiskRisky
	default:
		return risk >= RiskRisky
	}
}

// AgentMode is the coarse capability profile that selects the available
// tool set and default approval behavior.
type AgentMode string

const (
	ModeAsk   AgentMode = "ask"
	ModePlan  AgentMode = "plan"
	ModeBuild AgentMode = "build"
)

// Operation is the effect class a classified tool invocation falls into.
type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpDelete  Operation = "delete"
	OpExecute Operation = "execute"
)
