package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/agentcore/internal/classifier"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ErrInvalidMode and ErrInvalidTrust mark programming errors: a caller
// passed a mode or trust level this engine does not recognize.
var (
	ErrInvalidMode  = errors.New("policy: invalid mode")
	ErrInvalidTrust = errors.New("policy: invalid trust level")
)

// ApprovalDecision is produced purely from its inputs and the pattern
// store; it never has an I/O side effect.
type ApprovalDecision struct {
	NeedsApproval  bool
	Classification classifier.CommandClassification
	MatchedPattern *Pattern
}

// AuditEntry is one record of a policy decision. Loss of the audit log is
// a warning, never a fatal error, so AuditSink.Write errors are not
// propagated to callers of CheckApproval.
type AuditEntry struct {
	Timestamp      time.Time
	Tool           string
	Classification classifier.CommandClassification
	Decision       ApprovalDecision
	SessionID      string
}

// AuditSink receives every policy decision for append-only logging.
type AuditSink interface {
	Write(AuditEntry)
}

// NoopAuditSink discards every entry; used when no audit log is configured.
type NoopAuditSink struct{}

func (NoopAuditSink) Write(AuditEntry) {}

// Engine combines mode, trust level, classification, and pattern matches
// into an ApprovalDecision. It never mutates the pattern store.
type Engine struct {
	Store      Store
	Classifier classifier.Classifier
	Audit      AuditSink

	// ToolRisks maps tool name to its declared, static risk level, as
	// registered by the tool registry for the active mode. Looked up only
	// in Build mode when no pattern match decided the call outright.
	ToolRisks map[string]models.RiskLevel
}

// NewEngine builds an Engine with a no-op audit sink; set Audit afterward
// to wire a real one.
func NewEngine(store Store, c classifier.Classifier) *Engine {
	return &Engine{Store: store, Classifier: c, Audit: NoopAuditSink{}, ToolRisks: map[string]models.RiskLevel{}}
}

// CheckApproval implements check_approval(tool, command, mode, trust, session_id).
// classification is the call's classification, already derived by the tool
// registry; its CommandString is what stored patterns are matched against.
func (e *Engine) CheckApproval(
	tool string,
	classification classifier.CommandClassification,
	mode models.AgentMode,
	trust models.TrustLevel,
	sessionID string,
) (ApprovalDecision, error) {
	if mode != models.ModeAsk && mode != models.ModePlan && mode != models.ModeBuild {
		return ApprovalDecision{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	decision, err := e.decide(tool, classification, mode, trust, sessionID)
	if err != nil {
		return ApprovalDecision{}, err
	}

	if e.Audit != nil {
		e.Audit.Write(AuditEntry{
			Timestamp:      time.Now(),
			Tool:           tool,
			Classification: classification,
			Decision:       decision,
			SessionID:      sessionID,
		})
	}
	return decision, nil
}

func (e *Engine) decide(
	tool string,
	classification classifier.CommandClassification,
	mode models.AgentMode,
	trust models.TrustLevel,
	sessionID string,
) (ApprovalDecision, error) {
	matched, ok, err := e.findMatch(tool, classification.CommandString, sessionID)
	if err != nil {
		// StoreUnavailable: callers MUST treat as "no match" and continue.
		ok = false
	}
	if ok {
		// A denial match is terminal: needs_approval=true signals the loop
		// to surface the denial, never to prompt for approval.
		return ApprovalDecision{
			NeedsApproval:  matched.IsDenial,
			Classification: classification,
			MatchedPattern: &matched,
		}, nil
	}

	switch mode {
	case models.ModeAsk, models.ModePlan:
		return ApprovalDecision{NeedsApproval: false, Classification: classification}, nil
	case models.ModeBuild:
		risk, ok := e.ToolRisks[tool]
		if !ok {
			risk = models.RiskDangerous
		}
		needs := trust.NeedsApprovalCheck(risk)
		return ApprovalDecision{NeedsApproval: needs, Classification: classification}, nil
	default:
		return ApprovalDecision{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func (e *Engine) findMatch(tool, command, sessionID string) (Pattern, bool, error) {
	if e.Store == nil {
		return Pattern{}, false, nil
	}
	p, ok, err := e.Store.FindMatch(tool, command, sessionID)
	if err != nil {
		return Pattern{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return p, ok, nil
}
