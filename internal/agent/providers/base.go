// Package providers implements agent.LLMProvider against the model
// backends this core can talk to: Anthropic, OpenAI, Google Gemini, and
// AWS Bedrock. Every provider streams its response as CompletionChunks,
// assembles tool calls out of the backend's delta events, and wraps
// failures in ProviderError so the loop can tell retryable rate limits
// from terminal request errors.
//
// The conversation surface here is deliberately narrow: text, thinking
// deltas, and tool call/result blocks. Editor attachments ride the remote
// protocol as metadata and are not folded into provider requests.
package providers

import (
	"context"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// defaultCompletionTokens bounds a response when the request leaves
// MaxTokens unset.
const defaultCompletionTokens = 4096

// retrySchedule is the retry policy shared by every provider: up to
// attempts tries with exponential backoff starting at baseDelay.
type retrySchedule struct {
	attempts  int
	baseDelay time.Duration
}

func newRetrySchedule(attempts int, baseDelay time.Duration) retrySchedule {
	if attempts <= 0 {
		attempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return retrySchedule{attempts: attempts, baseDelay: baseDelay}
}

// run invokes op until it succeeds, fails with a non-retryable error, or
// the schedule is exhausted. retryable decides which errors are worth
// another attempt; nil means none are.
func (s retrySchedule) run(ctx context.Context, retryable func(error) bool, op func() error) error {
	var lastErr error
	delay := s.baseDelay
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if retryable == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// pickModel resolves the model for a request: the requested id, or the
// provider's configured default.
func pickModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

// pickMaxTokens resolves the response token cap for a request.
func pickMaxTokens(requested int) int {
	if requested <= 0 {
		return defaultCompletionTokens
	}
	return requested
}

// estimateRequestTokens approximates a request's token footprint at ~4
// characters per token, covering the system prompt, every message part,
// and the tool definitions. It is a sizing heuristic, not a tokenizer:
// good enough for context-window checks, off by 10-20% either way.
func estimateRequestTokens(req *agent.CompletionRequest) int {
	total := len(req.System) / 4
	for _, msg := range req.Messages {
		total += len(msg.Content)/4 + len(msg.Role)/4
		for _, tc := range msg.ToolCalls {
			total += len(tc.Name)/4 + len(tc.Input)/4
		}
		for _, tr := range msg.ToolResults {
			total += len(tr.Content) / 4
		}
	}
	for _, tool := range req.Tools {
		total += len(tool.Name())/4 + len(tool.Description())/4 + len(tool.Schema())/4
	}
	return total
}
