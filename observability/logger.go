// Package observability keeps a queryable log of NoteShot deliveries in
// SQLite. Writes never fail the caller: an event that cannot be stored is
// reported through slog and dropped.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/noteshot/idgen"
)

// Event types written by the pipeline.
const (
	EventDelivered       = "capture_delivered"
	EventCaptureFailed   = "capture_failed"
	EventPersistFailed   = "persist_failed"
	EventRemoteFailed    = "remote_failed"
	EventRegionCommitted = "region_committed"
)

// Event is one pipeline occurrence.
type Event struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	RecordID  string        `json:"record_id,omitempty"`
	Status    string        `json:"status,omitempty"`
	Location  string        `json:"location,omitempty"`
	Degraded  []string      `json:"degraded,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// EventLogger writes events to the delivery_events table.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	now    func() time.Time
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator overrides the event id strategy.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithLogger sets where write failures are reported.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// NewEventLogger returns a logger over db. Init must have run on db.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records ev. Errors are logged, never returned.
func (l *EventLogger) LogEvent(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO delivery_events (
			event_id, event_type, record_id, status, location, degraded, detail, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.Type, ev.RecordID, ev.Status, ev.Location,
		strings.Join(ev.Degraded, ","), ev.Detail, ev.Duration.Milliseconds(), ev.CreatedAt.UnixMilli())
	if err != nil {
		l.logger.WarnContext(ctx, "observability: event log failed",
			"error", err, "event_type", ev.Type, "record_id", ev.RecordID)
	}
}

// Recent returns up to limit events, newest first. Pass an empty
// eventType for all types.
func (l *EventLogger) Recent(ctx context.Context, eventType string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `SELECT event_id, event_type, record_id, status, location, degraded, detail, duration_ms, created_at
	      FROM delivery_events`
	args := []any{}
	if eventType != "" {
		q += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var degraded string
		var durMs, createdMs int64
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.RecordID, &ev.Status, &ev.Location,
			&degraded, &ev.Detail, &durMs, &createdMs); err != nil {
			return nil, err
		}
		if degraded != "" {
			ev.Degraded = strings.Split(degraded, ",")
		}
		ev.Duration = time.Duration(durMs) * time.Millisecond
		ev.CreatedAt = time.UnixMilli(createdMs)
		events = append(events, ev)
	}
	return events, rows.Err()
}
