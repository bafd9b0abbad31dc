package tools

import (
	"context"
	"sync"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/tools/plan"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Builders maps each mode to the Builder that supplies its tool set.
type Builders map[models.AgentMode]Builder

// SystemPrompts maps each mode to the system prompt the controller installs
// as the first context message when switching into it.
type SystemPrompts map[models.AgentMode]string

// ModeController implements §4.9: it owns the mode-to-registry binding for
// a session's Loop and applies mode switches either immediately or, if a
// turn is in flight, once that turn completes.
type ModeController struct {
	mu sync.Mutex

	loop         *agent.Loop
	workingDir   string
	shellEnabled bool
	builders     Builders
	prompts      SystemPrompts
	deps         Deps

	current      models.AgentMode
	turnInFlight bool
	pending      *models.AgentMode
}

// NewModeController wires loop to a freshly built registry for initialMode.
// deps.Trust and deps.Channel are carried unchanged across every later
// SwitchMode call. deps.PlanTracker defaults to a fresh Tracker and
// deps.Switch defaults to this controller's own SwitchMode if the caller
// left them nil, so the same tracker handle and switch callback are passed
// into every registry built for this session, across every mode switch
// (§9 "shared mutable trackers").
func NewModeController(loop *agent.Loop, workingDir string, shellEnabled bool, builders Builders, prompts SystemPrompts, deps Deps, initialMode models.AgentMode) *ModeController {
	if deps.PlanTracker == nil {
		deps.PlanTracker = plan.NewTracker()
	}
	mc := &ModeController{
		loop:         loop,
		workingDir:   workingDir,
		shellEnabled: shellEnabled,
		builders:     builders,
		prompts:      prompts,
		current:      initialMode,
	}
	if deps.Switch == nil {
		deps.Switch = mc.SwitchMode
	}
	mc.deps = deps
	loop.Registry = ForMode(workingDir, initialMode, shellEnabled, builders[initialMode], deps)
	return mc
}

// Mode returns the mode currently active (not a pending deferred switch).
func (mc *ModeController) Mode() models.AgentMode {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.current
}

// SwitchMode requests a transition to mode. If no turn is in flight it
// applies immediately; otherwise the request is stored and applied when
// the in-flight turn completes (see Chat).
func (mc *ModeController) SwitchMode(mode models.AgentMode) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mode == mc.current {
		mc.pending = nil
		return
	}
	if mc.turnInFlight {
		m := mode
		mc.pending = &m
		return
	}
	mc.apply(mode)
}

// SetTrust changes the trust level applied to future approval checks and
// rebuilds the registry so the change takes effect. Like SwitchMode, the
// rebuild is deferred to turn end when a turn is in flight.
func (mc *ModeController) SetTrust(trust models.TrustLevel) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if trust == mc.deps.Trust {
		return
	}
	mc.deps.Trust = trust
	if mc.turnInFlight {
		m := mc.current
		mc.pending = &m
		return
	}
	mc.apply(mc.current)
}

// apply rebuilds the registry for mode, replaces the context's system
// message, and records mode as current. Caller must hold mc.mu.
func (mc *ModeController) apply(mode models.AgentMode) {
	mc.loop.Registry = ForMode(mc.workingDir, mode, mc.shellEnabled, mc.builders[mode], mc.deps)
	if prompt, ok := mc.prompts[mode]; ok {
		mc.loop.Context.ReplaceSystemPrompt(prompt)
	}
	mc.current = mode
	mc.pending = nil
}

// Chat runs one turn through the underlying loop, marking it in-flight so a
// concurrent SwitchMode call is deferred rather than rebuilding the
// registry out from under a running tool dispatch, then applies any
// deferred switch once the turn completes.
func (mc *ModeController) Chat(ctx context.Context, userMessage string) (*agent.AgentResponse, error) {
	mc.mu.Lock()
	mc.turnInFlight = true
	mc.mu.Unlock()

	resp, err := mc.loop.Chat(ctx, userMessage)

	mc.mu.Lock()
	mc.turnInFlight = false
	if mc.pending != nil {
		mode := *mc.pending
		mc.apply(mode)
	}
	mc.mu.Unlock()

	return resp, err
}
