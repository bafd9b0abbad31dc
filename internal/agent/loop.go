package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	agentctx "github.com/haasonsaas/agentcore/internal/context"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultMaxIterations bounds a single chat turn's model/tool round trips.
const DefaultMaxIterations = 10

// toolPreviewLen caps the argument/output preview carried in events and the
// tool call log; full output is still stored verbatim in the context.
const toolPreviewLen = 200

// ToolRegistry is the subset of tools.Registry the loop depends on. It is
// expressed as an interface here (rather than importing the tools package
// directly) because tools.Registry itself depends on agent.Tool/ToolResult.
type ToolRegistry interface {
	Execute(ctx context.Context, name string, args json.RawMessage) *ToolResult
	AgentTools() []Tool
}

// Hooks is the Streaming Façade (§4.8): optional observers of a turn in
// progress. A nil field is simply not invoked. Hooks are called
// synchronously on the loop's goroutine, so a hook that blocks holds up
// the turn until it returns.
type Hooks struct {
	OnTextDelta      func(chunk string)
	OnReasoningDelta func(chunk string)
	OnToolStart      func(name string, args json.RawMessage)
	OnToolEnd        func(name string, output string, success bool)
	OnTurnEnd        func(finalText string)
}

func (h Hooks) textDelta(s string) {
	if h.OnTextDelta != nil && s != "" {
		h.OnTextDelta(s)
	}
}

func (h Hooks) reasoningDelta(s string) {
	if h.OnReasoningDelta != nil && s != "" {
		h.OnReasoningDelta(s)
	}
}

func (h Hooks) toolStart(name string, args json.RawMessage) {
	if h.OnToolStart != nil {
		h.OnToolStart(name, args)
	}
}

func (h Hooks) toolEnd(name, output string, success bool) {
	if h.OnToolEnd != nil {
		h.OnToolEnd(name, output, success)
	}
}

func (h Hooks) turnEnd(text string) {
	if h.OnTurnEnd != nil {
		h.OnTurnEnd(text)
	}
}

// ToolCallLogEntry records one dispatched tool call within a turn, in the
// order it was issued.
type ToolCallLogEntry struct {
	Iteration int    `json:"iteration"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Preview   string `json:"preview"`
}

// AgentResponse is the public result of a single chat turn.
type AgentResponse struct {
	Text                string             `json:"text"`
	ToolCallsMade       int                `json:"tool_calls_made"`
	ToolCallLog         []ToolCallLogEntry `json:"tool_call_log"`
	AutoCompacted       bool               `json:"auto_compacted"`
	ContextUsagePercent float64            `json:"context_usage_percent"`
	Cancelled           bool               `json:"cancelled,omitempty"`
}

// Loop drives one session's model turns: it sends the conversation context
// and tool definitions to the provider, dispatches any tool calls the model
// emits through the registry (which applies the policy engine), appends
// results, and iterates until the model stops calling tools or the
// iteration cap is hit.
type Loop struct {
	Provider  LLMProvider
	Registry  ToolRegistry
	Context   *agentctx.ConversationContext
	Model     string
	MaxTokens int

	// MaxIterations caps tool/model round trips within a single Chat call.
	// Nil uses DefaultMaxIterations; a non-nil value of zero or less makes
	// Chat return the cap-notice immediately without making any model call,
	// distinguishing an explicit cap from "unset".
	MaxIterations *int

	// Metrics and Tracer, when set, record LLM request counts/durations and
	// wrap each model call in a span. Both are nil-safe: a nil Metrics or
	// Tracer simply means this turn isn't instrumented.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Summarizer backs auto-compaction when the context nears its limit. A
	// nil Summarizer still compacts, falling back to trimming without an
	// LLM-produced summary (see ConversationContext.AutoCompact).
	Summarizer agentctx.Summarizer

	Hooks Hooks

	// cancel is polled between iterations and between tool calls (§5
	// Cancellation). Set it via RequestCancel.
	cancel atomic.Bool
}

// RequestCancel sets the shared cancel flag the loop polls between
// iterations and between tool calls within an iteration. It does not abort
// an in-flight tool call; that call is allowed to finish since its effect
// may already be committed.
func (l *Loop) RequestCancel() {
	l.cancel.Store(true)
}

// resetCancel clears the flag at the start of a new turn so a stale cancel
// from a prior turn can't short-circuit this one.
func (l *Loop) resetCancel() {
	l.cancel.Store(false)
}

func (l *Loop) cancelled() bool {
	return l.cancel.Load()
}

// resolvedMaxIterations returns the effective iteration cap. A nil
// MaxIterations means "unset", defaulting to DefaultMaxIterations. A non-nil
// value of zero or less is an explicit cap: the caller asked for no model
// calls this turn at all, and capped reports that so Chat can return the
// cap-notice without ever invoking the provider.
func (l *Loop) resolvedMaxIterations() (n int, capped bool) {
	if l.MaxIterations == nil {
		return DefaultMaxIterations, false
	}
	if *l.MaxIterations <= 0 {
		return 0, true
	}
	return *l.MaxIterations, false
}

// Chat runs the algorithm in §4.7: auto-compact if near the limit, append
// the user message, then loop calling the model and dispatching any tool
// calls it emits until a pure-text response, the iteration cap, or a
// cancellation ends the turn.
func (l *Loop) Chat(ctx context.Context, userMessage string) (*AgentResponse, error) {
	l.resetCancel()
	resp := &AgentResponse{}

	if l.Context.IsNearLimit() {
		resp.AutoCompacted = l.Context.AutoCompact(ctx, l.Summarizer)
	}

	l.Context.AddUser(userMessage)
	l.Context.ApplyPruning()

	maxIterations, capped := l.resolvedMaxIterations()
	if capped {
		resp.Text = "(reached the maximum number of steps for this turn)"
		l.Context.AddAssistant(resp.Text, nil)
		l.Hooks.turnEnd(resp.Text)
		return l.finalize(resp), nil
	}

	iterations := 0
	for iterations < maxIterations {
		if l.cancelled() {
			resp.Text = "(cancelled before the next model turn)"
			resp.Cancelled = true
			l.Hooks.turnEnd(resp.Text)
			break
		}

		req := &CompletionRequest{
			Model:     l.Model,
			System:    systemPrompt(l.Context.Messages()),
			Messages:  toCompletionMessages(l.Context.Messages()),
			Tools:     l.Registry.AgentTools(),
			MaxTokens: l.MaxTokens,
		}

		spanCtx, span := l.Tracer.TraceLLMRequest(ctx, "", l.Model)
		start := time.Now()
		chunks, err := l.Provider.Complete(spanCtx, req)
		if err != nil {
			l.Tracer.RecordError(span, err)
			span.End()
			l.Metrics.RecordLLMRequest(l.Model, "error", time.Since(start), 0, 0)
			return nil, fmt.Errorf("model completion: %w", err)
		}

		text, toolCalls, inTok, outTok, err := l.drain(chunks)
		if err != nil {
			l.Tracer.RecordError(span, err)
		}
		span.End()
		if err != nil {
			l.Metrics.RecordLLMRequest(l.Model, "error", time.Since(start), inTok, outTok)
			return nil, fmt.Errorf("model stream: %w", err)
		}
		l.Metrics.RecordLLMRequest(l.Model, "ok", time.Since(start), inTok, outTok)
		iterations++

		if len(toolCalls) == 0 {
			l.Context.AddAssistant(text, nil)
			resp.Text = text
			l.Hooks.turnEnd(text)
			return l.finalize(resp), nil
		}

		l.Context.AddAssistant(text, toolCalls)

		cutShort := false
		for i, call := range toolCalls {
			if l.cancelled() {
				// Keep the transcript well-formed: every emitted tool_call
				// still gets a result, even if it is a cancellation notice.
				for _, skipped := range toolCalls[i:] {
					l.Context.AddToolResult(skipped.ID, "cancelled by user")
				}
				cutShort = true
				break
			}
			result := l.dispatch(ctx, iterations, call)
			resp.ToolCallsMade++
			resp.ToolCallLog = append(resp.ToolCallLog, ToolCallLogEntry{
				Iteration: iterations,
				Name:      call.Name,
				Success:   !result.IsError,
				Preview:   truncatePreview(result.Content),
			})
		}

		if cutShort {
			resp.Text = text
			resp.Cancelled = true
			l.Hooks.turnEnd(text)
			break
		}
	}

	if resp.Text == "" && !resp.Cancelled {
		resp.Text = "(reached the maximum number of steps for this turn)"
		l.Context.AddAssistant(resp.Text, nil)
		l.Hooks.turnEnd(resp.Text)
	}

	return l.finalize(resp), nil
}

func (l *Loop) finalize(resp *AgentResponse) *AgentResponse {
	resp.ContextUsagePercent = l.Context.UsagePercentage() * 100
	l.Metrics.RecordContextWindow(l.Model, l.Context.EstimateTotalTokens())
	return resp
}

// dispatch publishes the tool_started/tool_ended events, invokes the
// registry, and appends the result to the context tied to the call's id.
func (l *Loop) dispatch(ctx context.Context, iteration int, call models.ToolCall) *ToolResult {
	l.Hooks.toolStart(call.Name, call.Input)
	ctx = observability.AddToolCallID(ctx, call.ID)
	result := l.Registry.Execute(ctx, call.Name, call.Input)
	l.Hooks.toolEnd(call.Name, truncatePreview(result.Content), !result.IsError)
	l.Context.AddToolResult(call.ID, result.Content)
	return result
}

// drain consumes a completion stream to its end, forwarding text/reasoning
// deltas to the hooks as they arrive and accumulating the final text and
// any tool calls the model requested.
func (l *Loop) drain(chunks <-chan *CompletionChunk) (text string, toolCalls []models.ToolCall, inputTokens, outputTokens int, err error) {
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, 0, 0, chunk.Error
		}
		if chunk.Text != "" {
			text += chunk.Text
			l.Hooks.textDelta(chunk.Text)
		}
		if chunk.Thinking != "" {
			l.Hooks.reasoningDelta(chunk.Thinking)
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		if chunk.InputTokens > 0 {
			inputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			outputTokens = chunk.OutputTokens
		}
		if chunk.Done {
			break
		}
	}
	return text, toolCalls, inputTokens, outputTokens, nil
}

func truncatePreview(s string) string {
	if len(s) <= toolPreviewLen {
		return s
	}
	return s[:toolPreviewLen] + "..."
}

// systemPrompt extracts the first (system) message's text, which providers
// expect separately from the turn-by-turn message list.
func systemPrompt(msgs []models.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[0].Text
}

// toCompletionMessages converts the context's message log into the
// provider-facing shape, dropping the leading system message (callers pass
// it via CompletionRequest.System instead).
func toCompletionMessages(msgs []models.Message) []CompletionMessage {
	if len(msgs) <= 1 {
		return nil
	}
	out := make([]CompletionMessage, 0, len(msgs)-1)
	for _, m := range msgs[1:] {
		out = append(out, convertMessage(m))
	}
	return out
}

func convertMessage(m models.Message) CompletionMessage {
	cm := CompletionMessage{Role: string(m.Role), Content: m.Text}
	for _, p := range m.Parts {
		switch p.Type {
		case models.PartText:
			cm.Content = p.Text
		case models.PartToolCall:
			cm.ToolCalls = append(cm.ToolCalls, models.ToolCall{
				ID:    p.ToolCallID,
				Name:  p.ToolCallName,
				Input: p.ToolCallArgs,
			})
		case models.PartToolResult:
			cm.ToolResults = append(cm.ToolResults, ToolResultPart{
				ToolCallID: p.ToolCallID,
				Content:    p.ToolResultText,
			})
		}
	}
	return cm
}
