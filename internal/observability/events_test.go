package observability

import (
	"context"
	"testing"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := AddRunID(context.Background(), "run-1")
	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("expected run-1, got %q", got)
	}
	if got := GetRunID(context.Background()); got != "" {
		t.Errorf("expected empty run id on bare context, got %q", got)
	}
}

func TestToolCallIDRoundTrip(t *testing.T) {
	ctx := AddToolCallID(context.Background(), "call-42")
	if got := GetToolCallID(ctx); got != "call-42" {
		t.Errorf("expected call-42, got %q", got)
	}
}

func TestAgentIDRoundTrip(t *testing.T) {
	ctx := AddAgentID(context.Background(), "session-abc")
	if got := GetAgentID(ctx); got != "session-abc" {
		t.Errorf("expected session-abc, got %q", got)
	}
}

func TestMessageIDRoundTrip(t *testing.T) {
	ctx := AddMessageID(context.Background(), "msg-7")
	if got := GetMessageID(ctx); got != "msg-7" {
		t.Errorf("expected msg-7, got %q", got)
	}
}

func TestCorrelationIDsCompose(t *testing.T) {
	ctx := context.Background()
	ctx = AddRunID(ctx, "run-1")
	ctx = AddToolCallID(ctx, "call-1")
	ctx = AddAgentID(ctx, "session-1")

	if GetRunID(ctx) != "run-1" || GetToolCallID(ctx) != "call-1" || GetAgentID(ctx) != "session-1" {
		t.Fatal("expected all three correlation IDs to survive composition")
	}
}
