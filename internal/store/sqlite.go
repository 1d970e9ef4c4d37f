package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"advisory-canvas/internal/errors"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteJournal opens (or creates) a journal database at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabaseError, "open %s: %v", dbPath, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS traffic (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		type TEXT NOT NULL,
		chart TEXT,
		sender TEXT NOT NULL,
		size INTEGER NOT NULL,
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_traffic_session_at ON traffic(session, at);
	CREATE INDEX IF NOT EXISTS idx_traffic_at ON traffic(at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database connection. Calling it twice is harmless.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

// Record appends one entry.
func (j *SQLiteJournal) Record(ctx context.Context, entry JournalEntry) error {
	if entry.Session == "" || entry.Type == "" {
		return errors.NewValidationError("entry", entry.Type, "session and type are required")
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO traffic (session, type, chart, sender, size, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Session, entry.Type, entry.Chart, entry.Sender, entry.Size, entry.At.UTC())
	if err != nil {
		return fmt.Errorf("failed to record traffic: %w", err)
	}
	return nil
}

// Recent returns matching entries, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	query := "SELECT id, session, type, chart, sender, size, at FROM traffic WHERE 1=1"
	args := []interface{}{}

	if filter.Session != "" {
		query += " AND session = ?"
		args = append(args, filter.Session)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Sender != "" {
		query += " AND sender = ?"
		args = append(args, filter.Sender)
	}
	if !filter.Since.IsZero() {
		query += " AND at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var chart sql.NullString
		if err := rows.Scan(&e.ID, &e.Session, &e.Type, &chart, &e.Sender, &e.Size, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan traffic: %w", err)
		}
		e.Chart = chart.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Counts returns entry counts per message type for session.
func (j *SQLiteJournal) Counts(ctx context.Context, session string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM traffic WHERE session = ? GROUP BY type
	`, session)
	if err != nil {
		return nil, fmt.Errorf("failed to count traffic: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var msgType string
		var n int
		if err := rows.Scan(&msgType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[msgType] = n
	}
	return counts, rows.Err()
}

// Sessions lists every journaled session in name order.
func (j *SQLiteJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT DISTINCT session FROM traffic ORDER BY session")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Purge deletes entries recorded before the given time.
func (j *SQLiteJournal) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM traffic WHERE at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge traffic: %w", err)
	}
	return res.RowsAffected()
}

var _ Journal = (*SQLiteJournal)(nil)
