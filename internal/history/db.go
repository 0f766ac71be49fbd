// Package history keeps a local log of dispense runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
)

// fixed width so that text ordering is chronological
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database and initializes the schema
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// single writer, the controller goroutine
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feed_events (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		units_dispensed INTEGER NOT NULL,
		unit_duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		local_time TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feed_events_finished ON feed_events(finished_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Record stores evt, ignoring a repeated id.
func (db *DB) Record(ctx context.Context, evt messages.FeedEvent) error {
	query := `
	INSERT OR IGNORE INTO feed_events
		(id, device_id, trigger_kind, quantity, units_dispensed, unit_duration_ms, status, reason, local_time, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		evt.ID, evt.DeviceID, evt.Trigger, evt.Quantity, evt.UnitsDispensed, evt.UnitDurationMs,
		evt.Status, evt.Reason, evt.LocalTime,
		evt.StartedAt.UTC().Format(tsLayout), evt.Timestamp.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("inserting feed event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first. limit <= 0 means all.
func (db *DB) List(ctx context.Context, limit int) ([]messages.FeedEvent, error) {
	query := `
	SELECT id, device_id, trigger_kind, quantity, units_dispensed, unit_duration_ms, status, reason, local_time, started_at, finished_at
	FROM feed_events
	ORDER BY finished_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feed events: %w", err)
	}
	defer rows.Close()

	var out []messages.FeedEvent
	for rows.Next() {
		var (
			evt               messages.FeedEvent
			reason, localTime sql.NullString
			started, finished string
		)
		if err := rows.Scan(&evt.ID, &evt.DeviceID, &evt.Trigger, &evt.Quantity, &evt.UnitsDispensed,
			&evt.UnitDurationMs, &evt.Status, &reason, &localTime, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning feed event: %w", err)
		}
		evt.Reason = reason.String
		evt.LocalTime = localTime.String
		if evt.StartedAt, err = time.Parse(tsLayout, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if evt.Timestamp, err = time.Parse(tsLayout, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Count returns the number of stored events.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting feed events: %w", err)
	}
	return n, nil
}
