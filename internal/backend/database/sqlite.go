package database

import (
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

const sqliteCreateTable = `CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image TEXT,
		result TEXT,
		accuracy INTEGER,
		created_at TEXT
	)`

// NewSQLiteDatabase returns an uninitialized SQLite history store.
// Use ":memory:" for a throwaway database.
func NewSQLiteDatabase(connectionString string) (*BunDatabase, error) {
	s, err := newBunDatabase("sqlite", connectionString, sqlitedialect.New(), sqliteCreateTable)
	if err != nil {
		return nil, err
	}
	// every new connection to ":memory:" is a fresh database, and SQLite serializes writers anyway
	s.db.SetMaxOpenConns(1)
	return s, nil
}
