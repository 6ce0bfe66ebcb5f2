package db

import (
	"database/sql"
	"testing"
)

// NewTestDB returns a private in-memory database with the schema applied,
// closed when the test ends.
func NewTestDB(tb testing.TB) *sql.DB {
	tb.Helper()

	database, err := Open(":memory:")
	if err != nil {
		tb.Fatalf("opening test database: %v", err)
	}
	tb.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		tb.Fatalf("applying schema: %v", err)
	}

	var fk int
	if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil || fk != 1 {
		tb.Fatalf("foreign keys not enforced on test database (%d, %v)", fk, err)
	}
	return database
}
