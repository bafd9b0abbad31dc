package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks the agent core's own
// activity: LLM request performance, tool execution and approval outcomes,
// context compaction, and error rates. Nothing here tracks channel/transport
// traffic — this core has no channel adapters.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	start := time.Now()
//	...
//	metrics.RecordLLMRequest(model, "ok", time.Since(start), inTok, outTok)
type Metrics struct {
	// LLMRequestDuration measures model completion latency in seconds.
	// Labels: model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model completions by model and status.
	// Labels: model, status (ok|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: model, type (input|output)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ApprovalDecisionCounter counts approval outcomes raised by the policy
	// engine and the registry's interactive prompt.
	// Labels: tool_name, decision (auto_allowed|user_approved|user_denied|denied)
	ApprovalDecisionCounter *prometheus.CounterVec

	// CompactionCounter counts conversation-context compactions.
	// Labels: method (summary|trim)
	CompactionCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (agent|tool|policy), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active sessions.
	ActiveSessions prometheus.Gauge

	// SessionDuration measures session lifetime in seconds.
	SessionDuration prometheus.Histogram

	// ContextWindowUsed tracks context window utilization in tokens.
	// Labels: model
	ContextWindowUsed *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_llm_request_duration_seconds",
				Help:    "Duration of model completion requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_requests_total",
				Help: "Total number of model completion requests by model and status",
			},
			[]string{"model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_tokens_total",
				Help: "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ApprovalDecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_approval_decisions_total",
				Help: "Total number of approval decisions by tool name and decision",
			},
			[]string{"tool_name", "decision"},
		),

		CompactionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_compactions_total",
				Help: "Total number of conversation context compactions by method",
			},
			[]string{"method"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_active_sessions",
				Help: "Current number of active remote-editor sessions",
			},
		),

		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentcore_session_duration_seconds",
				Help:    "Duration of remote-editor sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800},
			},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_context_window_tokens",
				Help:    "Context window tokens used per turn",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"model"},
		),
	}
}

// RecordLLMRequest records metrics for a model completion request. Nil-safe:
// a nil *Metrics is a no-op, so callers never need to guard.
func (m *Metrics) RecordLLMRequest(model, status string, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordApprovalDecision records an approval outcome for a tool call.
func (m *Metrics) RecordApprovalDecision(toolName, decision string) {
	if m == nil {
		return
	}
	m.ApprovalDecisionCounter.WithLabelValues(toolName, decision).Inc()
}

// RecordCompaction records a conversation-context compaction by method.
func (m *Metrics) RecordCompaction(method string) {
	if m == nil {
		return
	}
	m.CompactionCounter.WithLabelValues(method).Inc()
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active sessions gauge and records session duration.
func (m *Metrics) SessionEnded(duration time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordContextWindow records context window utilization.
func (m *Metrics) RecordContextWindow(model string, tokensUsed int) {
	if m == nil {
		return
	}
	m.ContextWindowUsed.WithLabelValues(model).Observe(float64(tokensUsed))
}
