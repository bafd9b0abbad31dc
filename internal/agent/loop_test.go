package agent

import (
	"context"
	"encoding/json"
	"testing"

	agentctx "github.com/haasonsaas/agentcore/internal/context"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// scriptedProvider replays a fixed sequence of completion chunks per call,
// one sequence per call to Complete, in order.
type scriptedProvider struct {
	calls int
	turns [][]*CompletionChunk
}

func (p *scriptedProvider) Models() []Model { return nil }
func (p *scriptedProvider) SupportsTools() bool { return true }
func (p *scriptedProvider) CountTokens(req *CompletionRequest) int { return 0 }

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	turn := p.turns[p.calls]
	p.calls++
	ch := make(chan *CompletionChunk, len(turn))
	for _, c := range turn {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// recordingRegistry logs every Execute call and returns a fixed result.
type recordingRegistry struct {
	executed []string
	result   *ToolResult
	tools    []Tool
}

func (r *recordingRegistry) Execute(ctx context.Context, name string, args json.RawMessage) *ToolResult {
	r.executed = append(r.executed, name)
	return r.result
}

func (r *recordingRegistry) AgentTools() []Tool { return r.tools }

func newTestLoop(provider *scriptedProvider, registry *recordingRegistry) *Loop {
	return &Loop{
		Provider: provider,
		Registry: registry,
		Context:  agentctx.NewConversationContext("you are a helpful agent", agentctx.DefaultCompactionConfig()),
		Model:    "test-model",
	}
}

func TestLoopPureTextResponseEndsTurn(t *testing.T) {
	provider := &scriptedProvider{turns: [][]*CompletionChunk{
		{{Text: "hello"}, {Done: true}},
	}}
	registry := &recordingRegistry{}
	loop := newTestLoop(provider, registry)

	resp, err := loop.Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text != "hello" {
		t.Fatalf("expected text %q, got %q", "hello", resp.Text)
	}
	if resp.ToolCallsMade != 0 {
		t.Fatalf("expected no tool calls, got %d", resp.ToolCallsMade)
	}
	if len(registry.executed) != 0 {
		t.Fatalf("expected no tool executions")
	}
}

func TestLoopDispatchesToolCallsThenReturnsText(t *testing.T) {
	toolCall := models.ToolCall{ID: "call-1", Name: "read_file", Input: json.RawMessage(`{"path":"a.go"}`)}
	provider := &scriptedProvider{turns: [][]*CompletionChunk{
		{{Text: "let me check"}, {ToolCall: &toolCall}, {Done: true}},
		{{Text: "done"}, {Done: true}},
	}}
	registry := &recordingRegistry{result: &ToolResult{Content: "file contents"}}
	loop := newTestLoop(provider, registry)

	var started, ended int
	loop.Hooks.OnToolStart = func(name string, args json.RawMessage) { started++ }
	loop.Hooks.OnToolEnd = func(name, output string, success bool) { ended++ }

	resp, err := loop.Chat(context.Background(), "check the file")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text != "done" {
		t.Fatalf("expected final text %q, got %q", "done", resp.Text)
	}
	if resp.ToolCallsMade != 1 {
		t.Fatalf("expected 1 tool call, got %d", resp.ToolCallsMade)
	}
	if len(registry.executed) != 1 || registry.executed[0] != "read_file" {
		t.Fatalf("expected read_file to be executed, got %v", registry.executed)
	}
	if started != 1 || ended != 1 {
		t.Fatalf("expected tool start/end hooks once each, got start=%d end=%d", started, ended)
	}

	msgs := loop.Context.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleAssistant || last.Text != "done" {
		t.Fatalf("expected final assistant message, got %+v", last)
	}
}

func TestLoopStopsAtMaxIterations(t *testing.T) {
	toolCall := models.ToolCall{ID: "call-1", Name: "read_file", Input: json.RawMessage(`{}`)}
	turn := []*CompletionChunk{{ToolCall: &toolCall}, {Done: true}}
	provider := &scriptedProvider{turns: [][]*CompletionChunk{turn, turn, turn}}
	registry := &recordingRegistry{result: &ToolResult{Content: "ok"}}
	loop := newTestLoop(provider, registry)
	maxIterations := 3
	loop.MaxIterations = &maxIterations

	resp, err := loop.Chat(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.ToolCallsMade != 3 {
		t.Fatalf("expected 3 tool calls, got %d", resp.ToolCallsMade)
	}
	if resp.Text == "" {
		t.Fatalf("expected a step-limit notice")
	}
}

func TestLoopCancellationStopsBeforeNextModelTurn(t *testing.T) {
	toolCall := models.ToolCall{ID: "call-1", Name: "read_file", Input: json.RawMessage(`{}`)}
	turn := []*CompletionChunk{{ToolCall: &toolCall}, {Done: true}}
	provider := &scriptedProvider{turns: [][]*CompletionChunk{turn, turn}}
	registry := &recordingRegistry{result: &ToolResult{Content: "ok"}}
	loop := newTestLoop(provider, registry)

	// Cancel mid-turn: the in-flight tool call finishes, then the loop
	// unwinds before issuing the next model call.
	loop.Hooks.OnToolEnd = func(name, output string, success bool) { loop.RequestCancel() }

	resp, err := loop.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !resp.Cancelled {
		t.Fatalf("expected Cancelled = true")
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one model call before the cancel took effect, got %d", provider.calls)
	}
	if len(registry.executed) != 1 {
		t.Fatalf("expected the in-flight tool call to finish, got %v", registry.executed)
	}
}

func TestLoopCancellationSkipsRemainingToolCalls(t *testing.T) {
	first := models.ToolCall{ID: "call-1", Name: "read_file", Input: json.RawMessage(`{}`)}
	second := models.ToolCall{ID: "call-2", Name: "search", Input: json.RawMessage(`{}`)}
	provider := &scriptedProvider{turns: [][]*CompletionChunk{
		{{ToolCall: &first}, {ToolCall: &second}, {Done: true}},
	}}
	registry := &recordingRegistry{result: &ToolResult{Content: "ok"}}
	loop := newTestLoop(provider, registry)
	loop.Hooks.OnToolEnd = func(name, output string, success bool) { loop.RequestCancel() }

	resp, err := loop.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !resp.Cancelled {
		t.Fatalf("expected Cancelled = true")
	}
	if len(registry.executed) != 1 {
		t.Fatalf("expected only the first tool call to run, got %v", registry.executed)
	}

	// The skipped call still gets a tool_result so no tool_call dangles.
	calls, results := 0, 0
	for _, m := range loop.Context.Messages() {
		for _, p := range m.Parts {
			switch p.Type {
			case models.PartToolCall:
				calls++
			case models.PartToolResult:
				results++
			}
		}
	}
	if calls != results {
		t.Fatalf("expected tool_call/tool_result parity, got %d calls and %d results", calls, results)
	}
}

func TestLoopExplicitZeroMaxIterationsSkipsModelEntirely(t *testing.T) {
	provider := &scriptedProvider{turns: [][]*CompletionChunk{
		{{Text: "never sent"}, {Done: true}},
	}}
	registry := &recordingRegistry{}
	loop := newTestLoop(provider, registry)
	zero := 0
	loop.MaxIterations = &zero

	resp, err := loop.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no model calls, got %d", provider.calls)
	}
	if resp.Text == "" {
		t.Fatalf("expected a step-cap notice")
	}
}
