package context

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/haasonsaas/agentcore/pkg/models"
)

type fixedSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *fixedSummarizer) Summarize(ctx context.Context, messages []models.Message) (string, error) {
	s.calls++
	return s.summary, s.err
}

func smallContext(t *testing.T) *ConversationContext {
	t.Helper()
	return NewConversationContext("system prompt", CompactionConfig{
		MaxTokens:      200,
		NearLimitRatio: 0.8,
		KeepRecent:     4,
	})
}

func fillPastLimit(cc *ConversationContext) {
	filler := strings.Repeat("word ", 10)
	for i := 0; !cc.IsNearLimit(); i++ {
		cc.AddUser(fmt.Sprintf("%d %s", i, filler))
	}
}

func TestSystemPromptAlwaysFirst(t *testing.T) {
	cc := smallContext(t)
	cc.AddUser("hello")
	cc.AddAssistant("hi", nil)

	msgs := cc.Messages()
	if msgs[0].Role != models.RoleSystem || msgs[0].Text != "system prompt" {
		t.Fatalf("expected system prompt first, got %+v", msgs[0])
	}
}

func TestCompactWithSummaryKeepsRecentTail(t *testing.T) {
	cc := smallContext(t)
	for i := 0; i < 10; i++ {
		cc.AddUser(fmt.Sprintf("message %d", i))
	}

	cc.CompactWithSummary("the gist of it", 4)

	msgs := cc.Messages()
	// system prompt + summary + 4 recent
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages after compaction, got %d", len(msgs))
	}
	if msgs[0].Text != "system prompt" {
		t.Fatalf("system prompt must survive compaction")
	}
	if msgs[1].Role != models.RoleSystem || !strings.Contains(msgs[1].Text, "the gist of it") {
		t.Fatalf("expected summary message second, got %+v", msgs[1])
	}
	for i, want := range []string{"message 6", "message 7", "message 8", "message 9"} {
		if msgs[2+i].Text != want {
			t.Fatalf("expected tail message %q, got %q", want, msgs[2+i].Text)
		}
	}
}

func TestCompactionNeverSplitsToolCallFromResult(t *testing.T) {
	cc := smallContext(t)
	for i := 0; i < 6; i++ {
		cc.AddUser(fmt.Sprintf("chatter %d", i))
	}
	cc.AddAssistant("checking", []models.ToolCall{{ID: "call-9", Name: "read_file"}})
	cc.AddToolResult("call-9", "contents")
	cc.AddAssistant("done", nil)

	// keepRecent=2 would cut between the tool_call and its result; the cut
	// point must extend backward to keep the pairing whole.
	cc.CompactWithSummary("summary", 2)

	pending := map[string]bool{}
	for _, m := range cc.Messages() {
		for _, p := range m.Parts {
			switch p.Type {
			case models.PartToolCall:
				pending[p.ToolCallID] = true
			case models.PartToolResult:
				delete(pending, p.ToolCallID)
			}
		}
	}
	if len(pending) != 0 {
		t.Fatalf("compaction left dangling tool calls: %v", pending)
	}
}

func TestAppendAfterCompactionPreservesTail(t *testing.T) {
	cc := smallContext(t)
	for i := 0; i < 8; i++ {
		cc.AddUser(fmt.Sprintf("old %d", i))
	}
	cc.CompactWithSummary("summary", 2)

	appended := []string{"new 1", "new 2", "new 3"}
	for _, text := range appended {
		cc.AddUser(text)
	}

	msgs := cc.Messages()
	tail := msgs[len(msgs)-len(appended):]
	for i, want := range appended {
		if tail[i].Text != want {
			t.Fatalf("expected tail[%d] = %q, got %q", i, want, tail[i].Text)
		}
	}
}

func TestAutoCompactUsesSummarizer(t *testing.T) {
	cc := smallContext(t)
	fillPastLimit(cc)

	s := &fixedSummarizer{summary: "condensed history"}
	if !cc.AutoCompact(context.Background(), s) {
		t.Fatalf("expected compaction to run")
	}
	if s.calls != 1 {
		t.Fatalf("expected one summarizer call, got %d", s.calls)
	}

	msgs := cc.Messages()
	if msgs[0].Text != "system prompt" {
		t.Fatalf("system prompt must survive auto-compaction")
	}
	if !strings.Contains(msgs[1].Text, "condensed history") {
		t.Fatalf("expected summary message, got %q", msgs[1].Text)
	}
}

func TestAutoCompactFallsBackToTrim(t *testing.T) {
	cc := smallContext(t)
	fillPastLimit(cc)
	before := len(cc.Messages())

	s := &fixedSummarizer{err: errors.New("model unavailable")}
	if !cc.AutoCompact(context.Background(), s) {
		t.Fatalf("expected compaction to run")
	}

	msgs := cc.Messages()
	if len(msgs) >= before {
		t.Fatalf("expected trim to shrink context: before=%d after=%d", before, len(msgs))
	}
	if msgs[0].Text != "system prompt" {
		t.Fatalf("system prompt must survive trim")
	}
	for _, m := range msgs[1:] {
		if m.Role == models.RoleSystem {
			t.Fatalf("trim fallback must not fabricate a summary message")
		}
	}
}

func TestAutoCompactBelowLimitIsNoOp(t *testing.T) {
	cc := smallContext(t)
	cc.AddUser("just one message")

	s := &fixedSummarizer{summary: "unused"}
	if cc.AutoCompact(context.Background(), s) {
		t.Fatalf("expected no compaction below the limit")
	}
	if s.calls != 0 {
		t.Fatalf("summarizer must not be called below the limit")
	}
}

func TestCompactEmptyContextIsNoOp(t *testing.T) {
	cc := NewConversationContext("sys", DefaultCompactionConfig())
	cc.CompactWithSummary("summary", 4)

	msgs := cc.Messages()
	// Nothing to fold into a summary besides the prompt itself.
	if len(msgs) != 2 {
		t.Fatalf("expected system prompt + summary only, got %d messages", len(msgs))
	}
}

func TestReplaceSystemPromptKeepsTranscript(t *testing.T) {
	cc := smallContext(t)
	cc.AddUser("hello")
	cc.AddAssistant("hi", nil)

	cc.ReplaceSystemPrompt("new mode prompt")

	msgs := cc.Messages()
	if msgs[0].Text != "new mode prompt" {
		t.Fatalf("expected replaced system prompt, got %q", msgs[0].Text)
	}
	if len(msgs) != 3 || msgs[1].Text != "hello" || msgs[2].Text != "hi" {
		t.Fatalf("non-system messages must be untouched, got %+v", msgs)
	}
}

func TestTokenEstimateMonotoneBetweenCompactions(t *testing.T) {
	cc := smallContext(t)
	prev := cc.EstimateTotalTokens()
	for i := 0; i < 5; i++ {
		cc.AddUser("some words to count here")
		now := cc.EstimateTotalTokens()
		if now < prev {
			t.Fatalf("token estimate decreased without compaction: %d -> %d", prev, now)
		}
		prev = now
	}
}
