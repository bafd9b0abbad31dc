package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLLMRequestCounterLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_llm_requests_total",
			Help: "Test LLM request counter",
		},
		[]string{"model", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("claude-3-opus", "ok").Inc()
	counter.WithLabelValues("claude-3-opus", "error").Inc()

	expected := `
		# HELP test_llm_requests_total Test LLM request counter
		# TYPE test_llm_requests_total counter
		test_llm_requests_total{model="claude-3-opus",status="error"} 1
		test_llm_requests_total{model="claude-3-opus",status="ok"} 1
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestToolExecutionCounterLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_tool_executions_total",
			Help: "Test tool execution counter",
		},
		[]string{"tool_name", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("write_file", "success").Inc()
	counter.WithLabelValues("write_file", "success").Inc()
	counter.WithLabelValues("run_shell", "error").Inc()

	if count := testutil.CollectAndCount(counter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestApprovalDecisionCounterLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_approval_decisions_total",
			Help: "Test approval decision counter",
		},
		[]string{"tool_name", "decision"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("run_shell", "user_approved").Inc()
	counter.WithLabelValues("run_shell", "user_denied").Inc()
	counter.WithLabelValues("read_file", "auto_allowed").Inc()

	if count := testutil.CollectAndCount(counter); count != 3 {
		t.Errorf("expected 3 label combinations, got %d", count)
	}
}

// TestNilMetricsIsNoop exercises the actual exported methods against a nil
// *Metrics, since every call site in the agent/tools/policy packages treats
// an unset Metrics field as optional.
func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordLLMRequest("claude-3-opus", "ok", 10*time.Millisecond, 10, 20)
	m.RecordToolExecution("run_shell", "success", 5*time.Millisecond)
	m.RecordApprovalDecision("run_shell", "user_approved")
	m.RecordCompaction("trim")
	m.RecordError("agent", "timeout")
	m.SessionStarted()
	m.SessionEnded(time.Second)
	m.RecordContextWindow("claude-3-opus", 4096)
}

func TestNewMetricsPopulatesAllFields(t *testing.T) {
	m := NewMetrics()
	if m.LLMRequestCounter == nil || m.LLMRequestDuration == nil || m.LLMTokensUsed == nil {
		t.Fatal("expected LLM metrics to be initialized")
	}
	if m.ToolExecutionCounter == nil || m.ToolExecutionDuration == nil {
		t.Fatal("expected tool metrics to be initialized")
	}
	if m.ApprovalDecisionCounter == nil || m.CompactionCounter == nil {
		t.Fatal("expected approval/compaction metrics to be initialized")
	}
	if m.ErrorCounter == nil || m.ActiveSessions == nil || m.SessionDuration == nil {
		t.Fatal("expected error/session metrics to be initialized")
	}
	if m.ContextWindowUsed == nil {
		t.Fatal("expected context window histogram to be initialized")
	}

	m.RecordLLMRequest("claude-3-opus", "ok", 100*time.Millisecond, 50, 75)
	m.RecordToolExecution("write_file", "success", 20*time.Millisecond)
	m.RecordApprovalDecision("write_file", "auto_allowed")
	m.RecordCompaction("summary")
	m.RecordContextWindow("claude-3-opus", 12000)
}
