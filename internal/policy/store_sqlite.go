package policy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const dbTimeout = 2 * time.Second

// schema matches the exposed pattern persistence row shape: session_id is
// NULL iff source=user (persistent).
const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	tool        TEXT NOT NULL,
	pattern     TEXT NOT NULL,
	match_type  TEXT NOT NULL CHECK (match_type IN ('exact','prefix','glob')),
	is_denial   INTEGER NOT NULL,
	source      TEXT NOT NULL CHECK (source IN ('session','user')),
	session_id  TEXT,
	description TEXT,
	UNIQUE(tool, pattern, match_type, source, session_id)
);
CREATE INDEX IF NOT EXISTS idx_patterns_tool ON patterns(tool);
`

// SQLiteStore is a Store backed by a sqlite database, used for persistent
// patterns that must survive process restart. It is also used to hold
// session-scoped patterns for the lifetime of the process, pruned on
// session end.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) a sqlite-backed pattern store
// at path, using the pure-Go modernc.org/sqlite driver.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sourceOf(scope Scope) string {
	if scope == ScopePersistent {
		return "user"
	}
	return "session"
}

func scopeOf(source string) Scope {
	if source == "user" {
		return ScopePersistent
	}
	return ScopeSession
}

func (s *SQLiteStore) Save(p Pattern) error {
	if p.ID == "" {
		p.ID = newPatternID()
	}
	var sessionID any
	if p.Scope == ScopeSession {
		sessionID = p.SessionID
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, tool, pattern, match_type, is_denial, source, session_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool, pattern, match_type, source, session_id) DO UPDATE SET
			is_denial = excluded.is_denial,
			description = excluded.description
	`, p.ID, p.Tool, p.PatternText, string(p.MatchType), boolToInt(p.IsDenial), sourceOf(p.Scope), sessionID, p.Description)
	if err != nil {
		return fmt.Errorf("%w: save: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) FindMatch(tool, command, sessionID string) (Pattern, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, pattern, match_type, is_denial, source, session_id, description
		FROM patterns
		WHERE tool = ? AND (source = 'user' OR session_id = ?)
	`, tool, sessionID)
	if err != nil {
		return Pattern{}, false, fmt.Errorf("%w: find_match: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var candidates []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return Pattern{}, false, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		if matches(p, command) {
			candidates = append(candidates, p)
		}
	}
	if err := rows.Err(); err != nil {
		return Pattern{}, false, fmt.Errorf("%w: rows: %v", ErrStoreUnavailable, err)
	}
	return highestPrecedence(candidates)
}

func (s *SQLiteStore) ListSession(sessionID string) (approvals, denials []Pattern, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, pattern, match_type, is_denial, source, session_id, description
		FROM patterns WHERE source = 'session' AND session_id = ?
	`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list_session: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		if p.IsDenial {
			denials = append(denials, p)
		} else {
			approvals = append(approvals, p)
		}
	}
	return approvals, denials, rows.Err()
}

func (s *SQLiteStore) Prune(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM patterns WHERE source = 'session' AND session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("%w: prune: %v", ErrStoreUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(r rowScanner) (Pattern, error) {
	var (
		p         Pattern
		matchType string
		isDenial  int
		source    string
		sessionID sql.NullString
		desc      sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Tool, &p.PatternText, &matchType, &isDenial, &source, &sessionID, &desc); err != nil {
		return Pattern{}, err
	}
	p.MatchType = MatchType(matchType)
	p.IsDenial = isDenial != 0
	p.Scope = scopeOf(source)
	p.SessionID = sessionID.String
	p.Description = desc.String
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
