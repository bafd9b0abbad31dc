package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		text string
		want FailoverReason
	}{
		{"request timeout", FailoverTimeout},
		{"context deadline exceeded", FailoverTimeout},
		{"rate limit exceeded", FailoverRateLimit},
		{"HTTP 429 too many requests", FailoverRateLimit},
		{"invalid api key", FailoverAuth},
		{"401 unauthorized", FailoverAuth},
		{"insufficient quota", FailoverBilling},
		{"blocked by content policy", FailoverContentFilter},
		{"model not found", FailoverModelUnavailable},
		{"internal server error", FailoverServerError},
		{"something novel", FailoverUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := ClassifyError(errors.New(tc.text)); got != tc.want {
				t.Errorf("ClassifyError(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}

	if got := ClassifyError(nil); got != FailoverUnknown {
		t.Errorf("ClassifyError(nil) = %s, want unknown", got)
	}
}

func TestReasonRetryAndFailover(t *testing.T) {
	retryable := map[FailoverReason]bool{
		FailoverRateLimit:   true,
		FailoverTimeout:     true,
		FailoverServerError: true,
	}
	failover := map[FailoverReason]bool{
		FailoverBilling:          true,
		FailoverAuth:             true,
		FailoverModelUnavailable: true,
	}
	all := []FailoverReason{
		FailoverBilling, FailoverRateLimit, FailoverAuth, FailoverTimeout,
		FailoverServerError, FailoverInvalidRequest, FailoverModelUnavailable,
		FailoverContentFilter, FailoverUnknown,
	}
	for _, r := range all {
		if got := r.IsRetryable(); got != retryable[r] {
			t.Errorf("%s.IsRetryable() = %v, want %v", r, got, retryable[r])
		}
		if got := r.ShouldFailover(); got != failover[r] {
			t.Errorf("%s.ShouldFailover() = %v, want %v", r, got, failover[r])
		}
	}
}

func TestProviderErrorWithStatusReclassifies(t *testing.T) {
	tests := []struct {
		status int
		want   FailoverReason
	}{
		{http.StatusUnauthorized, FailoverAuth},
		{http.StatusForbidden, FailoverAuth},
		{http.StatusPaymentRequired, FailoverBilling},
		{http.StatusTooManyRequests, FailoverRateLimit},
		{http.StatusBadRequest, FailoverInvalidRequest},
		{http.StatusNotFound, FailoverModelUnavailable},
		{http.StatusBadGateway, FailoverServerError},
	}
	for _, tc := range tests {
		e := NewProviderError("anthropic", "m", errors.New("boom")).WithStatus(tc.status)
		if e.Reason != tc.want {
			t.Errorf("status %d classified as %s, want %s", tc.status, e.Reason, tc.want)
		}
	}
}

func TestProviderErrorWithCode(t *testing.T) {
	e := NewProviderError("openai", "m", errors.New("boom")).WithCode("rate_limit_exceeded")
	if e.Reason != FailoverRateLimit {
		t.Fatalf("expected rate_limit from code, got %s", e.Reason)
	}

	// Unknown codes record the code but keep the prior classification.
	e = NewProviderError("openai", "m", errors.New("timeout")).WithCode("mystery_code")
	if e.Reason != FailoverTimeout || e.Code != "mystery_code" {
		t.Fatalf("unexpected error after unknown code: %+v", e)
	}
}

func TestProviderErrorFormatsAndUnwraps(t *testing.T) {
	cause := errors.New("underlying failure")
	e := NewProviderError("google", "gemini-2.0-flash", cause).WithStatus(http.StatusServiceUnavailable)

	text := e.Error()
	for _, want := range []string{"[server_error]", "google", "model=gemini-2.0-flash", "status=503"} {
		if !strings.Contains(text, want) {
			t.Errorf("error text %q missing %q", text, want)
		}
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected Unwrap to reach the cause")
	}
}

func TestIsRetryableClassifiesRawErrors(t *testing.T) {
	if !IsRetryable(errors.New("500 internal server error")) {
		t.Errorf("raw server error should be retryable")
	}
	if IsRetryable(errors.New("invalid api key")) {
		t.Errorf("auth failure must not be retryable")
	}
	wrapped := fmt.Errorf("request: %w", NewProviderError("anthropic", "m", errors.New("rate limit")))
	if !IsRetryable(wrapped) {
		t.Errorf("wrapped ProviderError should classify through the chain")
	}
}

func TestShouldFailover(t *testing.T) {
	if !ShouldFailover(NewProviderError("x", "m", errors.New("invalid api key"))) {
		t.Errorf("auth failure should fail over")
	}
	if ShouldFailover(errors.New("rate limit")) {
		t.Errorf("rate limit should retry, not fail over")
	}
}

func TestGetProviderError(t *testing.T) {
	pe := NewProviderError("bedrock", "m", errors.New("boom"))
	got, ok := GetProviderError(fmt.Errorf("outer: %w", pe))
	if !ok || got != pe {
		t.Fatalf("expected to extract the ProviderError")
	}
	if _, ok := GetProviderError(errors.New("plain")); ok {
		t.Fatalf("plain errors carry no ProviderError")
	}
}
