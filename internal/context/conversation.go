package context

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/agentcore/internal/audit"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// CompactionConfig controls when and how a ConversationContext compacts.
type CompactionConfig struct {
	// MaxTokens is the configured context ceiling (typical 100k-1M).
	MaxTokens int

	// NearLimitRatio triggers auto-compaction when usage crosses it (e.g. 0.8).
	NearLimitRatio float64

	// KeepRecent is how many of the most recent messages survive compaction
	// untouched, in addition to the system prompt.
	KeepRecent int
}

// DefaultCompactionConfig mirrors typical model defaults (80% trigger, keep last 4).
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		MaxTokens:      DefaultContextWindow,
		NearLimitRatio: 0.8,
		KeepRecent:     4,
	}
}

// Summarizer produces a condensed summary of the given messages. Callers
// typically implement this against an LLM provider; ConversationContext
// treats it as opaque.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.Message) (string, error)
}

// ConversationContext is the ordered message log a single agent turn owns
// exclusively for its duration, plus a cached token-count estimate.
//
// Invariants: (a) the first message is always a system prompt; (b) every
// tool_call part is eventually followed, in order, by a matching tool_result
// with the same id before another assistant text message can be emitted to
// the user; (c) estimate_total_tokens only grows as messages are appended;
// compaction, ApplyPruning and ReplaceSystemPrompt recompute it and can
// lower it.
type ConversationContext struct {
	mu       sync.Mutex
	messages []models.Message
	window   *Window
	cfg      CompactionConfig

	// SessionID and SessionKey identify this context's owning session for
	// compaction audit/metrics records. Both optional.
	SessionID  string
	SessionKey string

	// Metrics and AuditLog, when set, record a compaction event every time
	// AutoCompact actually compacts. Both are nil-safe.
	Metrics  *observability.Metrics
	AuditLog *audit.Logger

	// Pruning, when set, ages out old tool results between compactions (see
	// ApplyPruning). Nil disables between-compaction pruning entirely.
	Pruning *PruningSettings
}

// NewConversationContext starts a context with the given system prompt.
func NewConversationContext(systemPrompt string, cfg CompactionConfig) *ConversationContext {
	if cfg.MaxTokens <= 0 {
		cfg = DefaultCompactionConfig()
	}
	cc := &ConversationContext{
		window: NewWindow(cfg.MaxTokens, "config"),
		cfg:    cfg,
	}
	sys := models.NewSystemMessage(systemPrompt)
	sys.ID = uuid.NewString()
	cc.messages = []models.Message{sys}
	cc.window.AddText(systemPrompt)
	return cc
}

func (c *ConversationContext) append(msg models.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	c.messages = append(c.messages, msg)
	c.window.Add(estimateMessageTokens(msg))
}

// AddSystem appends a system message.
func (c *ConversationContext) AddSystem(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(models.NewSystemMessage(text))
}

// AddUser appends a user message.
func (c *ConversationContext) AddUser(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(models.NewUserMessage(text))
}

// AddAssistant appends an assistant message, optionally carrying tool calls.
// When toolCalls is non-empty, text and tool_call parts are combined into a
// single message so the transcript stays well-formed.
func (c *ConversationContext) AddAssistant(text string, toolCalls []models.ToolCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(toolCalls) == 0 {
		c.append(models.NewAssistantTextMessage(text))
		return
	}
	c.append(models.NewAssistantPartsMessage(text, toolCalls))
}

// AddToolResult appends a tool-role message carrying the result for callID.
func (c *ConversationContext) AddToolResult(callID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(models.NewToolResultMessage(callID, text))
}

// ReplaceSystemPrompt swaps the first message for a new system message
// carrying text, keeping every subsequent message untouched. Used by the
// mode controller (§4.9) when a mode switch changes the active system
// prompt without discarding the rest of the transcript.
func (c *ConversationContext) ReplaceSystemPrompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sys := models.NewSystemMessage(text)
	sys.ID = uuid.NewString()
	if len(c.messages) == 0 {
		c.messages = []models.Message{sys}
	} else {
		c.messages[0] = sys
	}
	c.window.Reset()
	for _, m := range c.messages {
		c.window.Add(estimateMessageTokens(m))
	}
}

// Messages returns a snapshot slice of the current message log.
func (c *ConversationContext) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// EstimateTotalTokens returns the cached character-based token estimate.
func (c *ConversationContext) EstimateTotalTokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.usedTokens
}

// UsagePercentage returns token usage as a fraction of the configured maximum.
func (c *ConversationContext) UsagePercentage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Info().UsedPercent / 100
}

// IsNearLimit reports whether usage has crossed the configured trigger ratio.
func (c *ConversationContext) IsNearLimit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window.totalTokens <= 0 {
		return false
	}
	return float64(c.window.usedTokens)/float64(c.window.totalTokens) >= c.cfg.NearLimitRatio
}

// CompactWithSummary replaces every message but the system prompt and the
// last keepRecent messages with a single synthetic system message carrying
// the summary. Zero-token (empty) contexts are a no-op.
func (c *ConversationContext) CompactWithSummary(summaryText string, keepRecent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return
	}
	if keepRecent < 0 {
		keepRecent = 0
	}

	sysPrompt := c.messages[0]
	tail := tailMessages(c.messages[1:], keepRecent)

	summary := models.NewSystemMessage(fmt.Sprintf("Summary of earlier conversation:\n%s", summaryText))
	summary.ID = uuid.NewString()

	rebuilt := make([]models.Message, 0, 2+len(tail))
	rebuilt = append(rebuilt, sysPrompt, summary)
	rebuilt = append(rebuilt, tail...)
	c.messages = rebuilt

	c.window.Reset()
	for _, m := range c.messages {
		c.window.Add(estimateMessageTokens(m))
	}
}

// TrimToRecent is the fallback compaction: it drops the oldest non-system
// messages without summarization, keeping the system prompt plus the last
// keepRecent messages.
func (c *ConversationContext) TrimToRecent(keepRecent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return
	}
	if keepRecent < 0 {
		keepRecent = 0
	}

	sysPrompt := c.messages[0]
	tail := tailMessages(c.messages[1:], keepRecent)

	rebuilt := make([]models.Message, 0, 1+len(tail))
	rebuilt = append(rebuilt, sysPrompt)
	rebuilt = append(rebuilt, tail...)
	c.messages = rebuilt

	c.window.Reset()
	for _, m := range c.messages {
		c.window.Add(estimateMessageTokens(m))
	}
}

// tailMessages returns the last n messages of msgs, cut at a point that
// never splits a tool_call from its tool_result: if the cut would land
// inside an unresolved pairing, it is extended backward until the pairing
// is either whole or entirely excluded.
func tailMessages(msgs []models.Message, n int) []models.Message {
	if n >= len(msgs) {
		out := make([]models.Message, len(msgs))
		copy(out, msgs)
		return out
	}
	start := len(msgs) - n
	for start > 0 && danglingToolCallBefore(msgs, start) {
		start--
	}
	out := make([]models.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out
}

// danglingToolCallBefore reports whether cutting msgs at idx would split a
// tool pairing: a tool_call in msgs[idx:] without its tool_result, or a
// tool_result whose originating tool_call fell before the cut.
func danglingToolCallBefore(msgs []models.Message, idx int) bool {
	pending := map[string]bool{}
	for _, m := range msgs[idx:] {
		for _, p := range m.Parts {
			switch p.Type {
			case models.PartToolCall:
				pending[p.ToolCallID] = true
			case models.PartToolResult:
				if !pending[p.ToolCallID] {
					return true
				}
				delete(pending, p.ToolCallID)
			}
		}
	}
	return len(pending) > 0
}

// AutoCompact runs summarization-based compaction when near the limit,
// falling back to trim-only compaction if summarization fails. It never
// drops the system prompt. Returns true if a compaction ran.
func (c *ConversationContext) AutoCompact(ctx context.Context, summarizer Summarizer) bool {
	if !c.IsNearLimit() {
		return false
	}
	keepRecent := c.cfg.KeepRecent
	before := c.messageCount()
	tokensBefore := c.EstimateTotalTokens()

	older := c.olderPortion(keepRecent)
	if summarizer != nil && len(older) > 0 {
		summary, err := summarizer.Summarize(ctx, older)
		if err == nil && summary != "" {
			c.CompactWithSummary(summary, keepRecent)
			c.recordCompaction(ctx, "summary", before, tokensBefore)
			return true
		}
	}
	c.TrimToRecent(keepRecent)
	c.recordCompaction(ctx, "trim", before, tokensBefore)
	return true
}

func (c *ConversationContext) messageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// recordCompaction reports a just-completed compaction to Metrics/AuditLog,
// if set. Called after CompactWithSummary/TrimToRecent have already run.
func (c *ConversationContext) recordCompaction(ctx context.Context, method string, before, tokensBefore int) {
	c.Metrics.RecordCompaction(method)
	if c.AuditLog == nil {
		return
	}
	after := c.messageCount()
	tokensSaved := tokensBefore - c.EstimateTotalTokens()
	c.AuditLog.LogSessionCompact(ctx, c.SessionID, c.SessionKey, before, after, tokensSaved, method)
}

// ApplyPruning soft-trims/hard-clears aged-out tool results per the
// configured PruningSettings. A nil Pruning is a no-op, so callers can
// invoke this unconditionally every turn.
func (c *ConversationContext) ApplyPruning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Pruning == nil {
		return
	}
	c.messages = PruneToolResults(c.messages, time.Now(), *c.Pruning)
	c.window.Reset()
	for _, m := range c.messages {
		c.window.Add(estimateMessageTokens(m))
	}
}

func (c *ConversationContext) olderPortion(keepRecent int) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) <= 1 {
		return nil
	}
	body := c.messages[1:]
	tail := tailMessages(body, keepRecent)
	if len(tail) >= len(body) {
		return nil
	}
	older := make([]models.Message, len(body)-len(tail))
	copy(older, body[:len(body)-len(tail)])
	return older
}

func estimateMessageTokens(m models.Message) int {
	total := EstimateTokens(m.Text) + 4
	for _, p := range m.Parts {
		total += EstimateTokens(p.Text)
		total += EstimateTokens(string(p.ToolCallArgs))
		total += EstimateTokens(p.ToolResultText)
		total += 4
	}
	return total
}
