package database

import "context"

type HistoryService interface {
	// CreateDatabase opens the connection and ensures the history table exists.
	// It must succeed before any other operation is used.
	CreateDatabase(ctx context.Context) error
	DoesDatabaseExist() bool
	Close() error

	// AddHistory inserts a record; ID and CreatedAt are assigned by the store.
	AddHistory(ctx context.Context, image, result string, accuracy int) (*HistoryRecord, error)
	// GetHistory returns all records, most recent first.
	GetHistory(ctx context.Context) ([]*HistoryRecord, error)
	// GetHistoryByID returns nil without error when no record matches.
	GetHistoryByID(ctx context.Context, id int64) (*HistoryRecord, error)
	// DeleteHistory is a no-op for unknown ids.
	DeleteHistory(ctx context.Context, id int64) error
	ClearHistory(ctx context.Context) error
}
