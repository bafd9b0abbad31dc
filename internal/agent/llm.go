package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Model describes a model a provider can serve completions from.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}

// ToolResultPart is a tool's prior output being fed back to the model as
// part of a CompletionMessage, keyed to the originating ToolCall by ID.
type ToolResultPart struct {
	ToolCallID  string
	Content     string
	IsError     bool
	Attachments []models.Attachment
}

// CompletionMessage is one turn of conversation handed to a provider. A
// message carries exactly one of: plain Content, one or more ToolCalls (the
// model's prior request to invoke tools), or one or more ToolResults (this
// turn's tool outputs being reported back).
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []ToolResultPart
	Attachments []models.Attachment
}

// CompletionRequest is a single call to an LLMProvider.
type CompletionRequest struct {
	Model                string
	System               string
	Messages             []CompletionMessage
	Tools                []Tool
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// CompletionChunk is one increment of a streamed completion. Exactly one of
// Text, a Thinking/ThinkingStart/ThinkingEnd signal, ToolCall, Error, or the
// terminal Done is meaningfully set per chunk.
type CompletionChunk struct {
	Text  string
	Error error
	Done  bool

	Thinking      string
	ThinkingStart bool
	ThinkingEnd   bool

	ToolCall *models.ToolCall

	InputTokens  int
	OutputTokens int
}

// ToolResult is what a Tool.Execute call returns: the text (or
// JSON-serialized structured payload) the model sees, and whether execution
// failed.
type ToolResult struct {
	Content string
	IsError bool
}

// Tool is a single callable a provider may invoke. Registries hand providers
// a []Tool; Execute is the registry's dispatch entrypoint, already wrapped
// with approval, timeout, and panic-isolation behavior.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// LLMProvider is the uniform interface every concrete model backend
// (Anthropic, OpenAI, Google, Bedrock) implements. Complete streams the
// response as a channel of CompletionChunk, closed once a Done or Error
// chunk has been sent.
type LLMProvider interface {
	Models() []Model
	SupportsTools() bool
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
	CountTokens(req *CompletionRequest) int
}
