package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tradedash/internal/store"
)

const (
	defaultListLimit = 50
	timeLayout       = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RecordFetch(ctx context.Context, event store.FetchEvent) error {
	if event.ID == "" {
		return fmt.Errorf("sqlite: fetch event id is required")
	}
	if event.FetchedAt.IsZero() {
		event.FetchedAt = time.Now()
	}

	var errText any
	if event.Error != "" {
		errText = event.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_events (
			id, provider, reporter, partner, year, classification,
			status, row_count, error, elapsed_ms, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Provider,
		event.Reporter,
		event.Partner,
		event.Year,
		event.Classification,
		event.Status,
		event.Rows,
		errText,
		event.Elapsed.Milliseconds(),
		event.FetchedAt.UTC().Format(timeLayout),
	)
	return err
}

// ListFetches returns the newest events first.
func (s *Store) ListFetches(ctx context.Context, limit int) ([]store.FetchEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, reporter, partner, year, classification,
			status, row_count, error, elapsed_ms, fetched_at
		FROM fetch_events
		ORDER BY fetched_at DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]store.FetchEvent, 0)
	for rows.Next() {
		var event store.FetchEvent
		var errText sql.NullString
		var elapsedMS int64
		var fetchedAt string
		if err := rows.Scan(
			&event.ID, &event.Provider, &event.Reporter, &event.Partner, &event.Year, &event.Classification,
			&event.Status, &event.Rows, &errText, &elapsedMS, &fetchedAt,
		); err != nil {
			return nil, err
		}
		event.Error = errText.String
		event.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if event.FetchedAt, err = time.Parse(timeLayout, fetchedAt); err != nil {
			return nil, fmt.Errorf("sqlite: bad fetched_at %q: %w", fetchedAt, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fetch_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			provider TEXT NOT NULL,
			reporter TEXT NOT NULL,
			partner TEXT NOT NULL,
			year TEXT NOT NULL,
			classification TEXT NOT NULL,
			status INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			error TEXT,
			elapsed_ms INTEGER NOT NULL,
			fetched_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_events_fetched_at ON fetch_events (fetched_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ store.Journal = (*Store)(nil)
