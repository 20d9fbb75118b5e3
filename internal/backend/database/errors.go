package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUninitialized is returned when the history store is used before CreateDatabase succeeded.
var ErrUninitialized = errors.New("database not initialized")

// ErrConstraint marks a write rejected by a table constraint.
var ErrConstraint = errors.New("constraint violation")

// ConnectionError reports that the underlying storage could not be opened or prepared.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open %s database: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed insert or delete.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("history %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// MapDBError maps driver constraint messages onto ErrConstraint while keeping the
// original error in the chain. Matching is string based so the package does not
// depend on driver specific error types.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	// SQLite "constraint failed", Postgres 23xxx, MySQL duplicate entry 1062
	if strings.Contains(le, "constraint") || strings.Contains(le, "unique") ||
		strings.Contains(le, "duplicate") || strings.Contains(le, "sqlstate 23") || strings.Contains(le, "1062") {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	return err
}
