package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestRetryScheduleStopsOnSuccess(t *testing.T) {
	s := newRetrySchedule(3, time.Millisecond)
	calls := 0
	err := s.run(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls < 2 {
			return errors.New("rate limit")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, err=%v calls=%d", err, calls)
	}
}

func TestRetryScheduleNonRetryableFailsFast(t *testing.T) {
	s := newRetrySchedule(5, time.Millisecond)
	calls := 0
	err := s.run(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return errors.New("invalid api key")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one attempt for non-retryable error, err=%v calls=%d", err, calls)
	}
}

func TestRetryScheduleExhausts(t *testing.T) {
	s := newRetrySchedule(3, time.Millisecond)
	calls := 0
	boom := errors.New("503")
	err := s.run(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("expected schedule exhausted after 3 attempts, err=%v calls=%d", err, calls)
	}
}

func TestRetryScheduleHonorsContext(t *testing.T) {
	s := newRetrySchedule(5, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.run(ctx, func(error) bool { return true }, func() error {
		return errors.New("rate limit")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation to end the schedule, got %v", err)
	}
}

func TestPickHelpers(t *testing.T) {
	if got := pickModel("requested", "default"); got != "requested" {
		t.Errorf("pickModel ignored the request: %q", got)
	}
	if got := pickModel("", "default"); got != "default" {
		t.Errorf("pickModel ignored the fallback: %q", got)
	}
	if got := pickMaxTokens(0); got != defaultCompletionTokens {
		t.Errorf("pickMaxTokens(0) = %d", got)
	}
	if got := pickMaxTokens(512); got != 512 {
		t.Errorf("pickMaxTokens(512) = %d", got)
	}
}

func TestEstimateRequestTokens(t *testing.T) {
	req := &agent.CompletionRequest{
		System: "0123456789abcdef", // 16 chars -> 4 tokens
		Messages: []agent.CompletionMessage{
			{
				Role:    "user", // 4 chars -> 1 token
				Content: "12345678",
				ToolCalls: []models.ToolCall{
					{Name: "read", Input: json.RawMessage(`{"path":"x"}`)},
				},
				ToolResults: []agent.ToolResultPart{{Content: "result text!"}},
			},
		},
	}
	got := estimateRequestTokens(req)
	if got <= 0 {
		t.Fatalf("expected a positive estimate, got %d", got)
	}
	// Doubling the content should strictly grow the estimate.
	req.Messages[0].Content += req.Messages[0].Content
	req.System += req.System
	if grown := estimateRequestTokens(req); grown <= got {
		t.Fatalf("estimate did not grow with input: %d -> %d", got, grown)
	}
}
