package policy

import "testing"

func TestPrecedenceExactDenialWinsOverEverything(t *testing.T) {
	s := NewMemoryStore()
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "rm -rf /tmp/x", MatchType: MatchExact, IsDenial: false, Scope: ScopePersistent}))
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "rm -rf /tmp/x", MatchType: MatchExact, IsDenial: true, Scope: ScopeSession, SessionID: "s1"}))
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "rm -rf *", MatchType: MatchGlob, IsDenial: false, Scope: ScopePersistent}))

	p, ok, err := s.FindMatch("shell", "rm -rf /tmp/x", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}
	if !p.IsDenial || p.MatchType != MatchExact {
		t.Errorf("expected exact denial to win, got %+v", p)
	}
}

func TestPrecedenceLongestGlobWins(t *testing.T) {
	s := NewMemoryStore()
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "git *", MatchType: MatchGlob, IsDenial: false, Scope: ScopePersistent}))
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "git push *", MatchType: MatchGlob, IsDenial: true, Scope: ScopePersistent}))

	p, ok, err := s.FindMatch("shell", "git push origin main", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !p.IsDenial || p.PatternText != "git push *" {
		t.Errorf("expected longer, more specific denial pattern to win, got %+v ok=%v", p, ok)
	}
}

func TestPrecedencePersistentBreaksSessionTie(t *testing.T) {
	s := NewMemoryStore()
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "npm *", MatchType: MatchGlob, IsDenial: false, Scope: ScopeSession, SessionID: "s1"}))
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "npm *", MatchType: MatchGlob, IsDenial: false, Scope: ScopePersistent}))

	p, ok, err := s.FindMatch("shell", "npm install", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || p.Scope != ScopePersistent {
		t.Errorf("expected persistent pattern to win the tiebreak, got %+v", p)
	}
}

func TestBraceExpansion(t *testing.T) {
	s := NewMemoryStore()
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "git {pull,fetch}", MatchType: MatchGlob, IsDenial: false, Scope: ScopePersistent}))

	for _, cmd := range []string{"git pull", "git fetch"} {
		_, ok, err := s.FindMatch("shell", cmd, "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Errorf("expected %q to match brace-expanded glob", cmd)
		}
	}

	_, ok, err := s.FindMatch("shell", "git push", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("did not expect git push to match {pull,fetch}")
	}
}

func TestPrefixMatchRequiresWhitespaceBoundary(t *testing.T) {
	s := NewMemoryStore()
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "git", MatchType: MatchPrefix, IsDenial: false, Scope: ScopePersistent}))

	_, ok, err := s.FindMatch("shell", "gitk --all", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("prefix match on 'git' should not match 'gitk --all' (not at a whitespace boundary)")
	}

	_, ok, err = s.FindMatch("shell", "git log", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Errorf("expected 'git log' to match prefix pattern 'git'")
	}
}

func TestSessionPatternsPrunedOnSessionEnd(t *testing.T) {
	s := NewMemoryStore()
	must(t, s.Save(Pattern{Tool: "shell", PatternText: "ls", MatchType: MatchExact, IsDenial: false, Scope: ScopeSession, SessionID: "s1"}))

	must(t, s.Prune("s1"))

	_, ok, err := s.FindMatch("shell", "ls", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected session pattern to be gone after prune")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
