package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailoverReason buckets a provider failure by what the caller can do
// about it: retry the same backend, fail over to another one, or give up.
type FailoverReason string

const (
	FailoverBilling          FailoverReason = "billing"
	FailoverRateLimit        FailoverReason = "rate_limit"
	FailoverAuth             FailoverReason = "auth"
	FailoverTimeout          FailoverReason = "timeout"
	FailoverServerError      FailoverReason = "server_error"
	FailoverInvalidRequest   FailoverReason = "invalid_request"
	FailoverModelUnavailable FailoverReason = "model_unavailable"
	FailoverContentFilter    FailoverReason = "content_filter"
	FailoverUnknown          FailoverReason = "unknown"
)

// IsRetryable reports whether the same request may succeed on a retry.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	}
	return false
}

// ShouldFailover reports whether the error warrants a different
// provider or model rather than a retry.
func (r FailoverReason) ShouldFailover() bool {
	switch r {
	case FailoverBilling, FailoverAuth, FailoverModelUnavailable:
		return true
	}
	return false
}

// ProviderError carries the structured context of a failed provider
// request: classification, which backend/model, the HTTP status and
// provider error code when known, and the provider's request id.
type ProviderError struct {
	Reason    FailoverReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	switch {
	case e.Message != "":
		parts = append(parts, e.Message)
	case e.Cause != nil:
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps cause, classifying it by its error text.
func NewProviderError(provider, model string, cause error) *ProviderError {
	e := &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: FailoverUnknown}
	if cause != nil {
		e.Message = cause.Error()
		e.Reason = ClassifyError(cause)
	}
	return e
}

// WithStatus records the HTTP status and reclassifies from it, since a
// status code is a stronger signal than error-text matching.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	e.Reason = classifyStatusCode(status)
	return e
}

// WithCode records the provider-specific error code, reclassifying when
// the code is one this package knows.
func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	if reason, ok := errorCodeReasons[strings.ToLower(code)]; ok {
		e.Reason = reason
	}
	return e
}

// WithMessage replaces the human-readable message.
func (e *ProviderError) WithMessage(msg string) *ProviderError {
	e.Message = msg
	return e
}

// WithRequestID records the provider's request id for support tickets.
func (e *ProviderError) WithRequestID(id string) *ProviderError {
	e.RequestID = id
	return e
}

// reasonPatterns maps error-text fragments to a classification, checked
// in order (timeouts before rate limits, etc. — first match wins).
var reasonPatterns = []struct {
	reason    FailoverReason
	fragments []string
}{
	{FailoverTimeout, []string{"timeout", "deadline exceeded", "context deadline", "etimedout"}},
	{FailoverRateLimit, []string{"rate limit", "rate_limit", "too many requests", "429"}},
	{FailoverAuth, []string{"unauthorized", "invalid api key", "invalid_api_key", "authentication", "401", "403"}},
	{FailoverBilling, []string{"billing", "payment", "quota", "insufficient", "402"}},
	{FailoverContentFilter, []string{"content_filter", "content policy", "safety", "blocked"}},
	{FailoverModelUnavailable, []string{"model not found", "model_not_found", "does not exist", "unavailable"}},
	{FailoverServerError, []string{"internal server", "server error", "500", "502", "503", "504"}},
}

// ClassifyError buckets a raw error by matching its text against the
// known failure fragments.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return FailoverUnknown
	}
	text := strings.ToLower(err.Error())
	for _, entry := range reasonPatterns {
		for _, fragment := range entry.fragments {
			if strings.Contains(text, fragment) {
				return entry.reason
			}
		}
	}
	return FailoverUnknown
}

func classifyStatusCode(status int) FailoverReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailoverAuth
	case status == http.StatusPaymentRequired:
		return FailoverBilling
	case status == http.StatusTooManyRequests:
		return FailoverRateLimit
	case status == http.StatusBadRequest:
		return FailoverInvalidRequest
	case status == http.StatusNotFound:
		return FailoverModelUnavailable
	case status >= 500:
		return FailoverServerError
	}
	return FailoverUnknown
}

// errorCodeReasons maps provider-specific error codes (Anthropic's
// error.type values, OpenAI's error codes) to a classification.
var errorCodeReasons = map[string]FailoverReason{
	"rate_limit_error":         FailoverRateLimit,
	"rate_limit_exceeded":      FailoverRateLimit,
	"authentication_error":     FailoverAuth,
	"invalid_api_key":          FailoverAuth,
	"billing_error":            FailoverBilling,
	"insufficient_quota":       FailoverBilling,
	"model_not_found":          FailoverModelUnavailable,
	"model_not_available":      FailoverModelUnavailable,
	"content_policy_violation": FailoverContentFilter,
	"content_filter":           FailoverContentFilter,
	"server_error":             FailoverServerError,
	"internal_error":           FailoverServerError,
	"invalid_request_error":    FailoverInvalidRequest,
}

// IsProviderError reports whether err carries a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// GetProviderError extracts the ProviderError from an error chain.
func GetProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err is worth another attempt against the
// same backend, classifying raw errors on the fly.
func IsRetryable(err error) bool {
	if pe, ok := GetProviderError(err); ok {
		return pe.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}

// ShouldFailover reports whether err warrants trying another provider.
func ShouldFailover(err error) bool {
	if pe, ok := GetProviderError(err); ok {
		return pe.Reason.ShouldFailover()
	}
	return ClassifyError(err).ShouldFailover()
}
