// Package policy implements the pattern store and policy engine that decide
// whether a classified tool invocation needs the user's approval.
package policy

import (
	"errors"
	"sort"
	"strings"
)

// MatchType is how a pattern's text is compared against a command.
type MatchType string

const (
	MatchExact  MatchType = "exact"
	MatchPrefix MatchType = "prefix"
	MatchGlob   MatchType = "glob"
)

// Scope is where a pattern lives: tied to one session, or surviving restarts.
type Scope string

const (
	ScopeSession    Scope = "session"
	ScopePersistent Scope = "persistent"
)

// Pattern is an approval or denial rule over a tool's command string.
type Pattern struct {
	ID          string
	Tool        string
	PatternText string
	MatchType   MatchType
	IsDenial    bool
	Scope       Scope
	SessionID   string // empty iff Scope == ScopePersistent
	Description string
}

// ErrStoreUnavailable signals a transient storage failure. Callers MUST
// treat it as "no match" and continue rather than fail the operation.
var ErrStoreUnavailable = errors.New("policy: pattern store unavailable")

// Store persists and matches approval/denial patterns.
type Store interface {
	// Save is an idempotent write keyed on (tool, pattern_text, match_type, scope).
	Save(p Pattern) error

	// FindMatch returns the highest-precedence pattern matching command for
	// tool, considering both session-scoped and persistent patterns. ok is
	// false when nothing matches.
	FindMatch(tool, command, sessionID string) (Pattern, bool, error)

	// ListSession returns the approvals and denials scoped to sessionID.
	ListSession(sessionID string) (approvals, denials []Pattern, err error)

	// Prune discards session-scoped patterns for a finished session.
	Prune(sessionID string) error
}

// patternKey is the primary key (tool, pattern_text, match_type, scope, session_id).
type patternKey struct {
	tool, text string
	matchType  MatchType
	scope      Scope
	sessionID  string
}

func keyOf(p Pattern) patternKey {
	return patternKey{p.Tool, p.PatternText, p.MatchType, p.Scope, p.SessionID}
}

// MemoryStore is an in-process Store. It is safe only for single-goroutine
// use by the policy engine's caller; callers that need concurrent access
// should wrap it or use the sqlite-backed Store.
type MemoryStore struct {
	byKey map[patternKey]Pattern
	order []patternKey
}

// NewMemoryStore returns an empty in-memory pattern store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[patternKey]Pattern)}
}

func (s *MemoryStore) Save(p Pattern) error {
	k := keyOf(p)
	if _, exists := s.byKey[k]; !exists {
		s.order = append(s.order, k)
	}
	if p.ID == "" {
		p.ID = newPatternID()
	}
	s.byKey[k] = p
	return nil
}

func (s *MemoryStore) FindMatch(tool, command, sessionID string) (Pattern, bool, error) {
	var candidates []Pattern
	for _, k := range s.order {
		p := s.byKey[k]
		if p.Tool != tool {
			continue
		}
		if p.Scope == ScopeSession && p.SessionID != sessionID {
			continue
		}
		if matches(p, command) {
			candidates = append(candidates, p)
		}
	}
	return highestPrecedence(candidates)
}

func (s *MemoryStore) ListSession(sessionID string) (approvals, denials []Pattern, err error) {
	for _, k := range s.order {
		p := s.byKey[k]
		if p.Scope != ScopeSession || p.SessionID != sessionID {
			continue
		}
		if p.IsDenial {
			denials = append(denials, p)
		} else {
			approvals = append(approvals, p)
		}
	}
	return approvals, denials, nil
}

func (s *MemoryStore) Prune(sessionID string) error {
	kept := s.order[:0]
	for _, k := range s.order {
		p := s.byKey[k]
		if p.Scope == ScopeSession && p.SessionID == sessionID {
			delete(s.byKey, k)
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return nil
}

// matches reports whether p's pattern text matches command under its
// declared match type.
func matches(p Pattern, command string) bool {
	switch p.MatchType {
	case MatchExact:
		return p.PatternText == command
	case MatchPrefix:
		return matchesPrefix(p.PatternText, command)
	case MatchGlob:
		return matchesGlob(p.PatternText, command)
	default:
		return false
	}
}

// matchesPrefix reports whether command starts with pattern at a whitespace
// boundary: pattern must match the full leading token sequence of command,
// and either consume it exactly or be followed by whitespace.
func matchesPrefix(pattern, command string) bool {
	if !strings.HasPrefix(command, pattern) {
		return false
	}
	if len(command) == len(pattern) {
		return true
	}
	next := command[len(pattern)]
	return next == ' ' || next == '\t'
}

// matchesGlob matches shell-style * and ? anchored at both ends, expanding
// {a,b,...} brace groups into an OR of alternatives before matching.
func matchesGlob(pattern, command string) bool {
	for _, alt := range expandBraces(pattern) {
		if globMatch(alt, command) {
			return true
		}
	}
	return false
}

// expandBraces expands the first {a,b,c} group found in pattern into each
// alternative, recursively, so multiple groups are all expanded. Groups do
// not nest: a group ends at the first '}' after its '{'.
func expandBraces(pattern string) []string {
	start := strings.IndexByte(pattern, '{')
	if start < 0 {
		return []string{pattern}
	}
	end := strings.IndexByte(pattern[start:], '}')
	if end < 0 {
		return []string{pattern}
	}
	end += start

	prefix := pattern[:start]
	body := pattern[start+1 : end]
	suffix := pattern[end+1:]

	var out []string
	for _, opt := range strings.Split(body, ",") {
		for _, rest := range expandBraces(prefix + opt + suffix) {
			out = append(out, rest)
		}
	}
	return out
}

// globMatch is a minimal anchored shell-glob matcher supporting * and ?.
func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		if globMatchRunes(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if globMatchRunes(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	}
}

// highestPrecedence picks the single winning pattern among candidates per
// the precedence order: exact denial > exact approval > prefix/glob denial
// (longest text wins, persistent breaks ties over session) > prefix/glob
// approval (same tiebreak).
func highestPrecedence(candidates []Pattern) (Pattern, bool, error) {
	if len(candidates) == 0 {
		return Pattern{}, false, nil
	}

	if p, ok := pickExact(candidates, true); ok {
		return p, true, nil
	}
	if p, ok := pickExact(candidates, false); ok {
		return p, true, nil
	}
	if p, ok := pickLongest(candidates, true); ok {
		return p, true, nil
	}
	if p, ok := pickLongest(candidates, false); ok {
		return p, true, nil
	}
	return Pattern{}, false, nil
}

func pickExact(candidates []Pattern, denial bool) (Pattern, bool) {
	var matches []Pattern
	for _, p := range candidates {
		if p.MatchType == MatchExact && p.IsDenial == denial {
			matches = append(matches, p)
		}
	}
	return tiebreak(matches)
}

func pickLongest(candidates []Pattern, denial bool) (Pattern, bool) {
	var matches []Pattern
	for _, p := range candidates {
		if p.MatchType != MatchExact && p.IsDenial == denial {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return Pattern{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		li, lj := len(matches[i].PatternText), len(matches[j].PatternText)
		if li != lj {
			return li > lj
		}
		return precedenceRank(matches[i].Scope) < precedenceRank(matches[j].Scope)
	})
	return matches[0], true
}

func tiebreak(matches []Pattern) (Pattern, bool) {
	if len(matches) == 0 {
		return Pattern{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return precedenceRank(matches[i].Scope) < precedenceRank(matches[j].Scope)
	})
	return matches[0], true
}

// precedenceRank ranks Persistent ahead of Session for tiebreaks.
func precedenceRank(s Scope) int {
	if s == ScopePersistent {
		return 0
	}
	return 1
}

var patternIDCounter int

func newPatternID() string {
	patternIDCounter++
	return "pat_" + itoa(patternIDCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
