// Package historydb keeps a per-workspace SQLite journal of session and
// drop-zone events. The journal is strictly best-effort: a failed write is
// logged and dropped, never surfaced to the operation that caused it.
package historydb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/twistedxcom/agentsync/internal/logging"
	"github.com/twistedxcom/agentsync/internal/tracker"
)

// SchemaVersion tracks the current database schema version.
const SchemaVersion = 1

// DB wraps the workspace history database. Safe for concurrent use within
// one process; WAL mode plus a busy timeout covers concurrent processes.
type DB struct {
	db *sql.DB
}

// Event is one journal row.
type Event struct {
	ID     int64
	At     time.Time
	Kind   string
	Agent  string
	Detail string
	OK     bool
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("historydb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("historydb: open: %w", err)
	}

	// WAL mode: concurrent readers while a writer holds the journal
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("historydb: wal mode: %w", err)
	}
	// Wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("historydb: busy timeout: %w", err)
	}

	h := &DB{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// Close checkpoints WAL and closes the database.
func (h *DB) Close() error {
	_, _ = h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return h.db.Close()
}

func (h *DB) migrate() error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("historydb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("historydb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			at     TEXT NOT NULL,
			kind   TEXT NOT NULL,
			agent  TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			ok     INTEGER NOT NULL DEFAULT 1
		)
	`); err != nil {
		return fmt.Errorf("historydb: create events: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_at ON events(at)
	`); err != nil {
		return fmt.Errorf("historydb: create index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("historydb: set schema version: %w", err)
	}

	return tx.Commit()
}

// Record appends one event. Errors are logged and swallowed.
func (h *DB) Record(kind, agent, detail string, ok bool) {
	log := logging.ForComponent(logging.CompHistory)
	_, err := h.db.Exec(`
		INSERT INTO events (at, kind, agent, detail, ok) VALUES (?, ?, ?, ?, ?)
	`, tracker.FormatISO(time.Now()), kind, agent, detail, boolToInt(ok))
	if err != nil {
		log.Warn("history write failed", "kind", kind, "error", err)
	}
}

// RecordSession implements the session.HistorySink interface.
func (h *DB) RecordSession(kind, agent, detail string) {
	h.Record(kind, agent, detail, true)
}

// Recent returns the newest events, most recent first, capped at limit.
func (h *DB) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(`
		SELECT id, at, kind, agent, detail, ok
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("historydb: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			at string
			ok int
		)
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Agent, &e.Detail, &ok); err != nil {
			return nil, fmt.Errorf("historydb: scan: %w", err)
		}
		if t, perr := tracker.ParseISO(at); perr == nil {
			e.At = t
		}
		e.OK = ok != 0
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than retentionDays. Returns rows removed.
func (h *DB) Prune(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := tracker.FormatISO(time.Now().AddDate(0, 0, -retentionDays))
	res, err := h.db.Exec(`DELETE FROM events WHERE at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("historydb: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
