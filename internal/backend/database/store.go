package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// isoTimestamp renders UTC timestamps with millisecond precision and a Z suffix.
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

// BunDatabase implements HistoryService on top of bun for any supported dialect.
type BunDatabase struct {
	db          *bun.DB
	driver      string
	createTable string
	initialized atomic.Bool
	now         func() time.Time
}

func newBunDatabase(driver, dsn string, dialect schema.Dialect, createTable string) (*BunDatabase, error) {
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: driver, Err: err}
	}
	return &BunDatabase{
		db:          bun.NewDB(sqldb, dialect),
		driver:      driver,
		createTable: createTable,
		now:         time.Now,
	}, nil
}

func (s *BunDatabase) CreateDatabase(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &ConnectionError{Driver: s.driver, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, s.createTable); err != nil {
		return &ConnectionError{Driver: s.driver, Err: fmt.Errorf("failed to create history table: %w", err)}
	}
	s.initialized.Store(true)
	slog.Debug("history table ready", "driver", s.driver)
	return nil
}

func (s *BunDatabase) DoesDatabaseExist() bool {
	return s.db.Ping() == nil
}

func (s *BunDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BunDatabase) AddHistory(ctx context.Context, image, result string, accuracy int) (*HistoryRecord, error) {
	if !s.initialized.Load() {
		return nil, ErrUninitialized
	}
	record := &HistoryRecord{
		Image:     image,
		Result:    result,
		Accuracy:  accuracy,
		CreatedAt: s.now().UTC().Format(isoTimestamp),
	}
	res, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		return nil, &WriteError{Op: "insert", Err: MapDBError(err)}
	}
	// dialects without RETURNING leave the primary key to LastInsertId
	if record.ID == 0 {
		if id, idErr := res.LastInsertId(); idErr == nil {
			record.ID = id
		}
	}
	return record, nil
}

func (s *BunDatabase) GetHistory(ctx context.Context) ([]*HistoryRecord, error) {
	if !s.initialized.Load() {
		return nil, ErrUninitialized
	}
	records := make([]*HistoryRecord, 0)
	if err := s.db.NewSelect().Model(&records).OrderExpr("id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	if records == nil {
		records = make([]*HistoryRecord, 0)
	}
	return records, nil
}

func (s *BunDatabase) GetHistoryByID(ctx context.Context, id int64) (*HistoryRecord, error) {
	if !s.initialized.Load() {
		return nil, ErrUninitialized
	}
	record := new(HistoryRecord)
	err := s.db.NewSelect().Model(record).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history record %d: %w", id, err)
	}
	return record, nil
}

func (s *BunDatabase) DeleteHistory(ctx context.Context, id int64) error {
	if !s.initialized.Load() {
		return ErrUninitialized
	}
	if _, err := s.db.NewDelete().Model((*HistoryRecord)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return &WriteError{Op: "delete", Err: MapDBError(err)}
	}
	return nil
}

func (s *BunDatabase) ClearHistory(ctx context.Context) error {
	if !s.initialized.Load() {
		return ErrUninitialized
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return &WriteError{Op: "clear", Err: MapDBError(err)}
	}
	return nil
}
