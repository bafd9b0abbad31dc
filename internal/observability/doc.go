// Package observability provides metrics, structured logging, and distributed
// tracing for the agent core: the model/tool round trips the agent loop
// drives, the approvals the policy engine raises, and the compactions the
// conversation context runs.
//
// # Metrics
//
// Metrics are Prometheus counters/histograms covering LLM requests, tool
// executions, approval decisions, and compactions:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... model completion ...
//	metrics.RecordLLMRequest(model, "ok", time.Since(start), inputTokens, outputTokens)
//
//	start = time.Now()
//	// ... tool execution ...
//	metrics.RecordToolExecution(toolName, "success", time.Since(start))
//
// Every Record*/Session* method is nil-safe, so a component that is handed a
// nil *Metrics (because the caller didn't wire one in) simply records
// nothing rather than panicking.
//
// # Logging
//
// Logging is built on log/slog with automatic redaction of API keys,
// tokens, and secrets, plus context-carried correlation IDs:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	ctx = observability.AddSessionID(ctx, sessionID)
//	logger.Info(ctx, "tool executed", "tool", name, "duration_ms", elapsed)
//
// # Tracing
//
// Tracing uses OpenTelemetry to wrap model and tool calls in spans:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "agentcore",
//	    Endpoint:    os.Getenv("OTEL_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceLLMRequest(ctx, "", model)
//	defer span.End()
//
// # Context Propagation
//
// Correlation IDs (run, tool-call, agent/session, message) travel on the
// context and are picked up automatically by Logger.
package observability
