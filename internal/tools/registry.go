// Package tools hosts the mode-appropriate tool set and the registry that
// dispatches calls into it: argument validation, approval gating through
// the policy engine, and timeout/panic isolation around each call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/audit"
	"github.com/haasonsaas/agentcore/internal/classifier"
	"github.com/haasonsaas/agentcore/internal/interaction"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/policy"
	"github.com/haasonsaas/agentcore/internal/tools/builtin"
	"github.com/haasonsaas/agentcore/internal/tools/plan"
	"github.com/haasonsaas/agentcore/pkg/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// DefaultCallTimeout is applied when a tool call omits timeout_secs.
	DefaultCallTimeout = 60 * time.Second
	// SafetyCapTimeout bounds the per-call timeout regardless of what the
	// model requests via timeout_secs.
	SafetyCapTimeout = 600 * time.Second
)

// Definition is a tool's model-facing description: name, prose, and the
// JSON schema for its arguments (already augmented with timeout_secs).
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"json_schema"`
	RiskLevel   models.RiskLevel `json:"risk_level"`
}

// registeredTool pairs a Tool with its static risk level and a compiled
// validator for its declared argument schema.
type registeredTool struct {
	tool      agent.Tool
	risk      models.RiskLevel
	validator *jsonschema.Schema
	schema    json.RawMessage // schema as exposed to the model, with timeout_secs folded in
}

// Builder supplies the per-mode tool set used by for_mode. Callers (the
// mode controller, session setup) provide one Builder per mode; it decides
// which concrete tools exist and their declared risk levels.
type Builder func(workingDir string, shellEnabled bool) map[string]struct {
	Tool agent.Tool
	Risk models.RiskLevel
}

// Registry holds the mode-appropriate tool set, executes by name, and
// enforces timeout, panic isolation, and approval gating.
type Registry struct {
	mode      models.AgentMode
	trust     models.TrustLevel
	sessionID string

	tools map[string]*registeredTool

	classifier classifier.Classifier
	policy     *policy.Engine
	channel    *interaction.Channel

	auditLog *audit.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// Deps bundles the shared, long-lived collaborators for_mode wires into
// every registry it builds: the pattern store and audit sink are shared
// across mode switches and sessions; the interaction channel and trust
// level are carried over by the mode controller (§4.9).
type Deps struct {
	Store      policy.Store
	Audit      policy.AuditSink
	Channel    *interaction.Channel
	Trust      models.TrustLevel
	SessionID  string

	// PlanTracker is the per-session plan/todo state (§9 "shared mutable
	// trackers"). Nil omits the plan and mark_plan_complete tools for this
	// registry; propose_change uses no tracker and is registered in Plan
	// mode either way.
	PlanTracker *plan.Tracker

	// Switch lets the switch_mode tool request a mode transition from
	// inside a tool call. Nil omits the switch_mode tool.
	Switch builtin.SwitchFunc

	// AuditLog, when set, records every tool invocation/completion this
	// registry executes. Nil disables tool-level audit logging (policy
	// decisions are still recorded through Audit above).
	AuditLog *audit.Logger

	// Metrics and Tracer, when set, record tool execution counts/durations
	// and wrap each call in a span. Both are nil-safe.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// ForMode builds a fresh registry scoped to mode, registering the tools the
// builder returns for it plus the ones registerSharedTools adds for that
// mode. Switching modes means calling ForMode
// again and discarding the old registry; conversation context and trust
// level are untouched by this call and must be carried over by the caller.
func ForMode(workingDir string, mode models.AgentMode, shellEnabled bool, build Builder, deps Deps) *Registry {
	c := classifier.Classifier{WorkDir: workingDir}
	eng := policy.NewEngine(deps.Store, c)
	eng.Audit = deps.Audit
	if eng.Audit == nil {
		eng.Audit = policy.NoopAuditSink{}
	}

	reg := &Registry{
		mode:       mode,
		trust:      deps.Trust,
		sessionID:  deps.SessionID,
		tools:      map[string]*registeredTool{},
		classifier: c,
		policy:     eng,
		channel:    deps.Channel,
		auditLog:   deps.AuditLog,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
	}

	for name, entry := range build(workingDir, shellEnabled) {
		reg.register(name, entry.Tool, entry.Risk)
	}
	registerSharedTools(reg, mode, workingDir, deps)
	return reg
}

// registerSharedTools adds the tools that exist across mode builders
// rather than inside any one of them: the restricted shell in Ask mode,
// plan-management tools in Plan mode, the plan-completion tool in Build
// mode, and switch_mode in every mode that has a Switch callback wired.
func registerSharedTools(reg *Registry, mode models.AgentMode, workingDir string, deps Deps) {
	if deps.Switch != nil {
		reg.register("switch_mode", builtin.NewSwitchModeTool(deps.Switch), models.RiskReadOnly)
	}

	switch mode {
	case models.ModeAsk:
		reg.register("shell", builtin.NewSafeShellTool(workingDir), models.RiskReadOnly)
	case models.ModePlan:
		reg.register("propose_change", plan.NewProposeChangeTool(), models.RiskReadOnly)
		if deps.PlanTracker != nil {
			reg.register("plan", plan.NewTool(deps.PlanTracker), models.RiskReadOnly)
		}
	case models.ModeBuild:
		if deps.PlanTracker != nil {
			reg.register("mark_plan_complete", plan.NewCompleteTool(deps.PlanTracker), models.RiskReadOnly)
		}
	}
}

func (r *Registry) register(name string, tool agent.Tool, risk models.RiskLevel) {
	schema := withTimeoutParam(tool.Schema())
	validator, err := compileSchema(name, tool.Schema())
	rt := &registeredTool{tool: tool, risk: risk, validator: validator, schema: schema}
	if err != nil {
		// An unvalidatable declared schema degrades to "accept anything"
		// rather than making the tool entirely uncallable.
		rt.validator = nil
	}
	r.tools[name] = rt
	r.policy.ToolRisks[name] = risk
}

// Definitions returns every registered tool's model-facing definition.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.tools))
	for name, rt := range r.tools {
		out = append(out, Definition{
			Name:        name,
			Description: rt.tool.Description(),
			Schema:      rt.schema,
			RiskLevel:   rt.risk,
		})
	}
	return out
}

// DefinitionsForMode intersects the registered tools with allowed, the
// mode's permitted-tool-name set, without rebuilding the registry.
func (r *Registry) DefinitionsForMode(allowed map[string]bool) []Definition {
	all := r.Definitions()
	if allowed == nil {
		return all
	}
	out := make([]Definition, 0, len(all))
	for _, d := range all {
		if allowed[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// AgentTools returns the registered tools as agent.Tool, in no particular
// order, for handing to an LLMProvider.Complete call.
func (r *Registry) AgentTools() []agent.Tool {
	out := make([]agent.Tool, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, rt.tool)
	}
	return out
}

// Execute runs name with args: validates the args, classifies and gates the
// call through the policy engine (posting an Approval request if needed),
// then invokes the tool inside a timeout and panic-isolated region. It
// never returns a Go error for a tool-domain failure; those are reported as
// ToolResult.IsError so a bad call never aborts the agent loop.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) *agent.ToolResult {
	toolCallID := observability.GetToolCallID(ctx)

	rt, ok := r.tools[name]
	if !ok {
		return failure(agent.ToolErrorNotFound, name, toolCallID, fmt.Sprintf("unknown tool: %s", name))
	}

	if rt.validator != nil {
		var v interface{}
		if err := json.Unmarshal(args, &v); err != nil {
			return failure(agent.ToolErrorInvalidInput, name, toolCallID, fmt.Sprintf("invalid arguments: %v", err))
		}
		if err := rt.validator.Validate(v); err != nil {
			return failure(agent.ToolErrorInvalidInput, name, toolCallID, fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	classification := r.classifier.Classify(name, args)

	decision, err := r.policy.CheckApproval(name, classification, r.mode, r.trust, r.sessionID)
	if err != nil {
		// Policy errors fail safe: the call is treated as denied.
		return failure(agent.ToolErrorDenied, name, toolCallID, fmt.Sprintf("policy error: %v", err))
	}

	if decision.NeedsApproval {
		if decision.MatchedPattern != nil && decision.MatchedPattern.IsDenial {
			// A denial match is terminal; never prompt for it.
			r.metrics.RecordApprovalDecision(name, "denied")
			if r.auditLog != nil {
				r.auditLog.LogToolDenied(ctx, name, toolCallID, "matched denial pattern", decision.MatchedPattern.PatternText, r.sessionID)
			}
			return failure(agent.ToolErrorDenied, name, toolCallID, "operation denied by user")
		}
		result := r.requestApproval(ctx, name, toolCallID, rt.risk, classification)
		if result != nil {
			r.metrics.RecordApprovalDecision(name, "denied")
			if r.auditLog != nil {
				r.auditLog.LogToolDenied(ctx, name, toolCallID, "denied by user", "", r.sessionID)
			}
			return result
		}
		r.metrics.RecordApprovalDecision(name, "approved")
	}

	if r.auditLog != nil {
		r.auditLog.LogToolInvocation(ctx, name, toolCallID, args, r.sessionID)
	}

	timeout := resolveTimeout(args)
	return r.invoke(ctx, name, toolCallID, rt.tool, args, timeout)
}

// requestApproval posts an Approval request and blocks for the reply. It
// returns nil when approval was granted (call should proceed) or a
// terminal error ToolResult otherwise.
func (r *Registry) requestApproval(ctx context.Context, name, toolCallID string, risk models.RiskLevel, classification classifier.CommandClassification) *agent.ToolResult {
	if r.channel == nil {
		// No interaction channel configured and approval is needed: fail safe.
		return failure(agent.ToolErrorDenied, name, toolCallID, "approval required but no interaction channel is configured")
	}

	suggestions := suggestPatterns(classification)
	answer, err := r.channel.PostApproval(ctx, interaction.ApprovalRequest{
		Tool:              name,
		Command:           classification.CommandString,
		Risk:              risk,
		SuggestedPatterns: suggestions,
	})
	if err != nil {
		return failure(agent.ToolErrorDenied, name, toolCallID, "operation denied by user")
	}

	switch answer.Reply {
	case interaction.ReplyApprove:
		return nil
	case interaction.ReplyApproveSession, interaction.ReplyApproveAlways:
		if answer.SelectedIndex >= 0 && answer.SelectedIndex < len(suggestions) {
			scope := policy.ScopeSession
			if answer.Reply == interaction.ReplyApproveAlways {
				scope = policy.ScopePersistent
			}
			sel := suggestions[answer.SelectedIndex]
			_ = r.policy.Store.Save(policy.Pattern{
				Tool:        name,
				PatternText: sel.Pattern,
				MatchType:   policy.MatchType(sel.MatchType),
				IsDenial:    false,
				Scope:       scope,
				SessionID:   r.sessionID,
				Description: sel.Description,
			})
		}
		return nil
	case interaction.ReplyDenyAlways:
		if answer.SelectedIndex >= 0 && answer.SelectedIndex < len(suggestions) {
			sel := suggestions[answer.SelectedIndex]
			_ = r.policy.Store.Save(policy.Pattern{
				Tool:        name,
				PatternText: sel.Pattern,
				MatchType:   policy.MatchType(sel.MatchType),
				IsDenial:    true,
				Scope:       policy.ScopePersistent,
				Description: sel.Description,
			})
		}
		return failure(agent.ToolErrorDenied, name, toolCallID, "operation denied by user")
	default:
		return failure(agent.ToolErrorDenied, name, toolCallID, "operation denied by user")
	}
}

// invoke calls tool.Execute inside a timeout- and panic-isolated region. A
// panic in one call never affects sibling or subsequent calls: it is
// recovered and reported exactly like a checked error. Every outcome is
// timed, traced, and (if an audit sink is configured) recorded as a tool
// completion event.
func (r *Registry) invoke(ctx context.Context, name, toolCallID string, tool agent.Tool, args json.RawMessage, timeout time.Duration) *agent.ToolResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spanCtx, span := r.tracer.TraceToolExecution(callCtx, name)
	start := time.Now()

	finish := func(result *agent.ToolResult, success bool, execErr error) *agent.ToolResult {
		duration := time.Since(start)
		status := "success"
		if !success {
			status = "error"
		}
		if execErr != nil {
			r.tracer.RecordError(span, execErr)
		}
		span.End()
		r.metrics.RecordToolExecution(name, status, duration)
		if r.auditLog != nil {
			r.auditLog.LogToolCompletion(ctx, name, toolCallID, success, result.Content, duration, r.sessionID)
		}
		return result
	}

	type outcome struct {
		result *agent.ToolResult
		err    error
		panicV any
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{panicV: p}
			}
		}()
		result, err := tool.Execute(spanCtx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.panicV != nil {
			te := agent.NewToolError(agent.ToolErrorPanic, name, fmt.Sprintf("tool crashed: %v", o.panicV)).WithToolCallID(toolCallID)
			return finish(te.Result(), false, te)
		}
		if o.err != nil {
			te := agent.NewToolError(agent.ToolErrorExecution, name, o.err.Error()).WithCause(o.err).WithToolCallID(toolCallID)
			return finish(te.Result(), false, te)
		}
		if o.result == nil {
			te := agent.NewToolError(agent.ToolErrorExecution, name, "tool returned no result").WithToolCallID(toolCallID)
			return finish(te.Result(), false, nil)
		}
		return finish(o.result, !o.result.IsError, nil)
	case <-callCtx.Done():
		te := agent.NewToolError(agent.ToolErrorTimeout, name, fmt.Sprintf("timed out after %d seconds", int(timeout.Seconds()))).WithToolCallID(toolCallID)
		return finish(te.Result(), false, te)
	}
}

func resolveTimeout(args json.RawMessage) time.Duration {
	var probe struct {
		TimeoutSecs *int `json:"timeout_secs"`
	}
	if err := json.Unmarshal(args, &probe); err != nil || probe.TimeoutSecs == nil {
		return DefaultCallTimeout
	}
	requested := time.Duration(*probe.TimeoutSecs) * time.Second
	if requested <= 0 {
		return DefaultCallTimeout
	}
	if requested > SafetyCapTimeout {
		return SafetyCapTimeout
	}
	return requested
}

func suggestPatterns(c classifier.CommandClassification) []interaction.SuggestedPattern {
	if c.CommandString == "" {
		return nil
	}
	out := []interaction.SuggestedPattern{
		{Pattern: c.CommandString, MatchType: string(policy.MatchExact), Description: "this exact command"},
	}
	if head := strings.Fields(c.CommandString); len(head) > 0 {
		out = append(out, interaction.SuggestedPattern{
			Pattern:     head[0],
			MatchType:   string(policy.MatchPrefix),
			Description: fmt.Sprintf("any command starting with %q", head[0]),
		})
	}
	return out
}

// failure builds the model-visible result for a dispatch failure, typed
// so the audit trail and metrics see a stable category.
func failure(t agent.ToolErrorType, toolName, toolCallID, message string) *agent.ToolResult {
	return agent.NewToolError(t, toolName, message).WithToolCallID(toolCallID).Result()
}

func withTimeoutParam(schema json.RawMessage) json.RawMessage {
	var m map[string]interface{}
	if err := json.Unmarshal(schema, &m); err != nil || m == nil {
		m = map[string]interface{}{"type": "object"}
	}
	props, _ := m["properties"].(map[string]interface{})
	if props == nil {
		props = map[string]interface{}{}
	}
	if _, exists := props["timeout_secs"]; !exists {
		props["timeout_secs"] = map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("Override the default call timeout (seconds), capped at %d.", int(SafetyCapTimeout.Seconds())),
			"minimum":     1,
			"maximum":     int(SafetyCapTimeout.Seconds()),
		}
	}
	m["properties"] = props
	out, err := json.Marshal(m)
	if err != nil {
		return schema
	}
	return out
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	url := "mem://tools/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(schema))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
