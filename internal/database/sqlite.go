package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lh-go/internal/database/migrations"
	"lh-go/internal/lh"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const memoryPath = ":memory:"

// SQLiteJournal implements lh.Journal on a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens the journal at path, creating and migrating it as
// needed. path can be a file path or ":memory:".
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	st, err := migrations.CurrentStatus(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading journal schema version: %w", err)
	}
	if st.Current > st.Latest {
		db.Close()
		return nil, fmt.Errorf("journal %s was written by a newer lh (schema %d, supported %d)", path, st.Current, st.Latest)
	}
	if !st.UpToDate() {
		if err := migrations.MigrateUp(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating journal: %w", err)
		}
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema out of date: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// File databases use WAL with a busy timeout so a running watcher and a
// one-shot command can share the journal. An in-memory database is pinned
// to a single connection so every statement sees the same data.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != memoryPath {
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Record appends an event.
func (j *SQLiteJournal) Record(ctx context.Context, event lh.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (op_id, action, tracked_path, revision, at) VALUES (?, ?, ?, ?, ?)`,
		event.OperationID, string(event.Action), event.TrackedPath, event.Revision,
		event.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]lh.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, op_id, action, tracked_path, revision, at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return scanEvents(rows)
}

// ForPath returns up to limit events of one tracked file, newest first.
func (j *SQLiteJournal) ForPath(ctx context.Context, trackedPath string, limit int) ([]lh.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, op_id, action, tracked_path, revision, at FROM events
		 WHERE tracked_path = ? ORDER BY id DESC LIMIT ?`, trackedPath, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]lh.Event, error) {
	defer rows.Close()

	var events []lh.Event
	for rows.Next() {
		var (
			e      lh.Event
			action string
			at     string
		)
		if err := rows.Scan(&e.ID, &e.OperationID, &action, &e.TrackedPath, &e.Revision, &at); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Action = lh.Action(action)
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing event time %q: %w", at, err)
		}
		e.At = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

var _ lh.Journal = (*SQLiteJournal)(nil)
