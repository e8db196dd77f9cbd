package observability

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the event log DDL. It can live in the note database or in a
// separate one; Init applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS delivery_events (
    event_id     TEXT PRIMARY KEY,
    event_type   TEXT NOT NULL,
    record_id    TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    location     TEXT NOT NULL DEFAULT '',
    degraded     TEXT NOT NULL DEFAULT '',
    detail       TEXT NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delivery_events_created ON delivery_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_delivery_events_record ON delivery_events(record_id);
`

// Init creates the event log tables.
func Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("observability: init: %w", err)
	}
	return nil
}
