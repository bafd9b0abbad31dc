package remote

import "encoding/json"

// Method names for client-to-server requests (§6).
const (
	MethodInitialize        = "initialize"
	MethodSessionCreate      = "session/create"
	MethodSessionSetMode     = "session/set_mode"
	MethodSessionSendMessage = "session/send_message"
	MethodSessionCancel      = "session/cancel"
	MethodContextUpdate      = "context/update"
	MethodApprovalRespond    = "approval/respond"
	MethodQuestionnaireRespond = "questionnaire/respond"
	MethodSessionClose       = "session/close"
)

// Notification names for server-to-client pushes (§6).
const (
	NotifyResponseDelta    = "response/delta"
	NotifyToolEvent        = "tool/event"
	NotifyApprovalRequest  = "approval/request"
	NotifyQuestionnaireRequest = "questionnaire/request"
	NotifyResponseFinal    = "response/final"
	NotifySessionStatus    = "session/status"
	NotifyErrorEvent       = "error/event"
)

// ErrorCode enumerates the framing/protocol errors named in §6.
type ErrorCode string

const (
	ErrUnsupportedVersion    ErrorCode = "unsupported-version"
	ErrPayloadTooLarge       ErrorCode = "payload-too-large"
	ErrSessionNotFound       ErrorCode = "session-not-found"
	ErrSessionBusy           ErrorCode = "session-busy"
	ErrProviderOverrideRejected ErrorCode = "provider-override-rejected"
	ErrRateLimited           ErrorCode = "rate-limited"
	ErrInvalidRequest        ErrorCode = "invalid-request"
	ErrUnauthorized          ErrorCode = "unauthorized"
)

// ProtocolVersion is the version this server negotiates in initialize.
const ProtocolVersion = "1"

// Envelope is the outer shape of every frame exchanged over the duplex
// stream: exactly one of Method (a request, answered by a Response sharing
// its ID) or a standalone Notification (no ID, no reply expected) is set.
type Envelope struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Notification carries NotifyXxx payloads pushed without a request.
	Notification string          `json:"notification,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Response answers a request Envelope by echoing its ID.
type Response struct {
	ID     string        `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the body of a failed Response.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// --- Request/response param and result shapes ---

// InitializeParams authenticates the connection and negotiates a version.
type InitializeParams struct {
	ProtocolVersion string `json:"protocol_version"`
	Token           string `json:"token"`
	ClientName      string `json:"client_name,omitempty"`
}

// InitializeResult confirms the negotiated version and server identity.
type InitializeResult struct {
	ProtocolVersion string `json:"protocol_version"`
	ServerName      string `json:"server_name"`
	MaxSessions     int    `json:"max_sessions"`
}

// SessionCreateParams opens a new session within this connection.
type SessionCreateParams struct {
	Mode       string `json:"mode"`
	WorkingDir string `json:"working_dir,omitempty"`
	Trust      string `json:"trust,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

// SessionCreateResult returns the newly assigned session id.
type SessionCreateResult struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// SessionSetModeParams requests a mode transition (§4.9 deferred semantics
// apply: if a turn is in flight the switch lands after it finishes).
type SessionSetModeParams struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// SessionSendMessageParams carries one user turn. Message is capped at
// MaxMessageBytes; Attachments are metadata references only (§6 excerpt/
// selection caps of 128 KiB apply to their inline content, not enforced by
// this package beyond frame size).
type SessionSendMessageParams struct {
	SessionID   string             `json:"session_id"`
	Message     string             `json:"message"`
	Attachments []AttachmentParams `json:"attachments,omitempty"`
}

// AttachmentParams mirrors models.Attachment over the wire.
type AttachmentParams struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SessionCancelParams requests cooperative cancellation of the session's
// in-flight turn (§5).
type SessionCancelParams struct {
	SessionID string `json:"session_id"`
}

// ContextUpdateParams lets the client push editor-side context (open
// buffers, selection) ahead of the next send_message. BufferList is capped
// at 64 entries per §6.
type ContextUpdateParams struct {
	SessionID string         `json:"session_id"`
	Buffers   []BufferSummary `json:"buffers,omitempty"`
	Selection *SelectionExcerpt `json:"selection,omitempty"`
}

// BufferSummary names one open editor buffer.
type BufferSummary struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
}

// SelectionExcerpt carries the client's current selection, capped at 128
// KiB of Text by the sender; this package does not re-validate that cap
// beyond the overall frame limit.
type SelectionExcerpt struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// ApprovalRespondParams answers an outstanding approval/request notification.
type ApprovalRespondParams struct {
	SessionID     string `json:"session_id"`
	RequestID     string `json:"request_id"`
	Reply         string `json:"reply"`
	SelectedIndex int    `json:"selected_index,omitempty"`
}

// QuestionnaireRespondParams answers an outstanding questionnaire/request.
type QuestionnaireRespondParams struct {
	SessionID string              `json:"session_id"`
	RequestID string              `json:"request_id"`
	Answers   map[string][]string `json:"answers"`
	Cancelled bool                `json:"cancelled,omitempty"`
}

// SessionCloseParams ends a session and frees its slot.
type SessionCloseParams struct {
	SessionID string `json:"session_id"`
}

// --- Notification payloads ---

// ResponseDeltaPayload streams one incremental chunk of assistant text.
type ResponseDeltaPayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ToolEventPayload reports a tool call's start or end within a turn.
type ToolEventPayload struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"` // "start" or "end"
	Tool      string `json:"tool"`
	Success   bool   `json:"success,omitempty"`
	Output    string `json:"output,omitempty"`
}

// ApprovalRequestPayload mirrors interaction.ApprovalRequest over the wire.
type ApprovalRequestPayload struct {
	SessionID         string                     `json:"session_id"`
	RequestID         string                     `json:"request_id"`
	Tool              string                     `json:"tool"`
	Command           string                     `json:"command"`
	Risk              string                     `json:"risk"`
	SuggestedPatterns []SuggestedPatternPayload  `json:"suggested_patterns,omitempty"`
}

// SuggestedPatternPayload mirrors interaction.SuggestedPattern.
type SuggestedPatternPayload struct {
	Pattern     string `json:"pattern"`
	MatchType   string `json:"match_type"`
	Description string `json:"description"`
}

// QuestionnaireRequestPayload mirrors interaction.QuestionnaireRequest.
type QuestionnaireRequestPayload struct {
	SessionID string             `json:"session_id"`
	RequestID string             `json:"request_id"`
	Title     string             `json:"title"`
	Questions []QuestionPayload  `json:"questions"`
}

// QuestionPayload mirrors interaction.Question.
type QuestionPayload struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Kind    string   `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// ResponseFinalPayload closes out a turn with the full agent response.
type ResponseFinalPayload struct {
	SessionID           string   `json:"session_id"`
	Text                string   `json:"text"`
	ToolCallsMade       int      `json:"tool_calls_made"`
	AutoCompacted       bool     `json:"auto_compacted"`
	ContextUsagePercent float64  `json:"context_usage_percent"`
	Cancelled           bool     `json:"cancelled,omitempty"`
}

// SessionStatusPayload is an out-of-band session lifecycle notice.
type SessionStatusPayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"` // "created", "mode_changed", "closed"
	Mode      string `json:"mode,omitempty"`
}

// ErrorEventPayload reports a framing/protocol error tied to a session
// where possible, otherwise connection-scoped (SessionID empty).
type ErrorEventPayload struct {
	SessionID string    `json:"session_id,omitempty"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
}
