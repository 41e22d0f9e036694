// Package history records every document the service has accepted and
// whether its extraction finished, in a SQLite table.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/feichai0017/document-extractor/internal/models"
)

var (
	// ErrRecordNotFound is returned for unknown ids.
	ErrRecordNotFound = fmt.Errorf("history record %w", models.ErrNotFound)
	// ErrDuplicateRecord is returned by Put when the id already exists.
	ErrDuplicateRecord = errors.New("history record already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id           TEXT PRIMARY KEY,
	timestamp    INTEGER NOT NULL,
	format       TEXT NOT NULL DEFAULT '',
	processed    INTEGER NOT NULL DEFAULT 0,
	processed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
`

// Record is one row of the history table.
type Record = models.HistoryRecord

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=3000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts an unprocessed record for id.
func (s *Store) Put(ctx context.Context, id string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, timestamp) VALUES (?, ?)`, id, ts.Unix())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, id)
		}
		return fmt.Errorf("failed to insert history record: %w", err)
	}
	return nil
}

// MarkProcessed stores the output format and completion time of id.
func (s *Store) MarkProcessed(ctx context.Context, id, format string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE history SET format = ?, processed = 1, processed_at = ? WHERE id = ?`,
		format, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update history record: %w", err)
	}
	return expectRow(res, id)
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, format, processed, processed_at FROM history WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history record: %w", err)
	}
	return rec, nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}
	return expectRow(res, id)
}

// List returns every record, oldest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, format, processed, processed_at FROM history ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec         Record
		ts          int64
		processed   int
		processedAt sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &ts, &rec.Format, &processed, &processedAt); err != nil {
		return nil, err
	}
	rec.Timestamp = time.Unix(ts, 0)
	rec.Processed = processed != 0
	if processedAt.Valid {
		at := time.Unix(processedAt.Int64, 0)
		rec.ProcessedAt = &at
	}
	return &rec, nil
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}
