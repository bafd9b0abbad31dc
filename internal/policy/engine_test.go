package policy

import (
	"testing"

	"github.com/haasonsaas/agentcore/internal/classifier"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func TestCheckApprovalAskModeNeverNeedsApproval(t *testing.T) {
	e := NewEngine(NewMemoryStore(), classifier.Classifier{WorkDir: "/w"})
	classification := classifier.CommandClassification{Operation: models.OpRead, InWorkdir: true, CommandString: "cat f"}

	d, err := e.CheckApproval("shell", classification, models.ModeAsk, models.TrustManual, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.NeedsApproval {
		t.Errorf("Ask mode should never need approval")
	}
}

func TestCheckApprovalBuildModeConsultsTrust(t *testing.T) {
	e := NewEngine(NewMemoryStore(), classifier.Classifier{WorkDir: "/w"})
	e.ToolRisks["delete_file"] = models.RiskDangerous
	classification := classifier.CommandClassification{Operation: models.OpDelete, InWorkdir: true, CommandString: "/w/a.txt"}

	d, err := e.CheckApproval("delete_file", classification, models.ModeBuild, models.TrustBalanced, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.NeedsApproval {
		t.Errorf("Dangerous risk under Balanced trust should need approval")
	}
}

func TestCheckApprovalDenialPatternIsTerminal(t *testing.T) {
	store := NewMemoryStore()
	must(t, store.Save(Pattern{Tool: "shell", PatternText: "rm -rf /", MatchType: MatchExact, IsDenial: true, Scope: ScopePersistent}))
	e := NewEngine(store, classifier.Classifier{WorkDir: "/w"})
	classification := classifier.CommandClassification{Operation: models.OpDelete, InWorkdir: true, CommandString: "rm -rf /"}

	d, err := e.CheckApproval("shell", classification, models.ModeBuild, models.TrustBalanced, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.NeedsApproval || d.MatchedPattern == nil || !d.MatchedPattern.IsDenial {
		t.Errorf("expected a terminal denial decision, got %+v", d)
	}
}

func TestCheckApprovalApprovalPatternSkipsTrustCheck(t *testing.T) {
	store := NewMemoryStore()
	must(t, store.Save(Pattern{Tool: "shell", PatternText: "npm test", MatchType: MatchExact, IsDenial: false, Scope: ScopePersistent}))
	e := NewEngine(store, classifier.Classifier{WorkDir: "/w"})
	e.ToolRisks["shell"] = models.RiskDangerous
	classification := classifier.CommandClassification{Operation: models.OpExecute, InWorkdir: true, CommandString: "npm test"}

	d, err := e.CheckApproval("shell", classification, models.ModeBuild, models.TrustManual, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.NeedsApproval {
		t.Errorf("an approval pattern match should bypass the trust check entirely")
	}
}

func TestCheckApprovalInvalidMode(t *testing.T) {
	e := NewEngine(NewMemoryStore(), classifier.Classifier{WorkDir: "/w"})
	classification := classifier.CommandClassification{Operation: models.OpRead}
	_, err := e.CheckApproval("shell", classification, models.AgentMode("bogus"), models.TrustManual, "s1")
	if err == nil {
		t.Fatalf("expected an error for an invalid mode")
	}
}
