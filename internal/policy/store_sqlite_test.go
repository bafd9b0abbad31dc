package policy

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSQLiteStoreSaveWrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO patterns").WillReturnError(errors.New("disk I/O error"))

	store := &SQLiteStore{db: db}
	err = store.Save(Pattern{Tool: "shell", PatternText: "ls", MatchType: MatchExact, Scope: ScopePersistent})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreFindMatchWrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, tool, pattern").WillReturnError(errors.New("connection lost"))

	store := &SQLiteStore{db: db}
	_, _, err = store.FindMatch("shell", "ls", "s1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}
