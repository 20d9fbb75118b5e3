package database

import (
	"context"
	"fmt"
	"log/slog"
)

// OpenDatabase returns a history store for the given driver without touching the schema.
func OpenDatabase(databaseType, connectionString string) (HistoryService, error) {
	switch databaseType {
	case "sqlite":
		return NewSQLiteDatabase(connectionString)
	case "postgres":
		return NewPostgresDatabase(connectionString)
	case "mysql":
		return NewMySQLDatabase(connectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
}

// NewDatabase opens the store and ensures the history table exists.
func NewDatabase(ctx context.Context, databaseType, connectionString string) (HistoryService, error) {
	database, err := OpenDatabase(databaseType, connectionString)
	if err != nil {
		return nil, err
	}

	// idempotent, important for in-memory SQLite
	slog.Info("initializing database schema (ensuring tables exist)", "type", databaseType)
	if err := database.CreateDatabase(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
