package observability

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/noteshot/dbopen"
)

func setupEventDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := Init(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestLogEvent_AndRecent(t *testing.T) {
	db := setupEventDB(t)
	l := NewEventLogger(db)
	ctx := context.Background()

	l.LogEvent(ctx, Event{
		Type:     EventDelivered,
		RecordID: "shot_1",
		Status:   "delivered",
		Location: "http://localhost:3000/?id=shot_1",
		Duration: 1500 * time.Millisecond,
	})
	l.LogEvent(ctx, Event{
		Type:     EventRemoteFailed,
		RecordID: "shot_2",
		Degraded: []string{"transport_failure", "persistence_failure"},
	})

	all, err := l.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("events: got %d", len(all))
	}
	if all[0].RecordID != "shot_2" {
		t.Fatalf("newest first: got %s", all[0].RecordID)
	}
	if len(all[0].Degraded) != 2 || all[0].Degraded[1] != "persistence_failure" {
		t.Fatalf("degraded: %v", all[0].Degraded)
	}
	if !strings.HasPrefix(all[1].ID, "evt_") {
		t.Fatalf("id prefix: %q", all[1].ID)
	}
	if all[1].Duration != 1500*time.Millisecond {
		t.Fatalf("duration: %v", all[1].Duration)
	}

	only, err := l.Recent(ctx, EventDelivered, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 1 || only[0].Type != EventDelivered {
		t.Fatalf("filtered: %+v", only)
	}
}

func TestLogEvent_SwallowsErrors(t *testing.T) {
	db := dbopen.OpenMemory(t) // no schema: every insert fails
	var buf bytes.Buffer
	l := NewEventLogger(db, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	l.LogEvent(context.Background(), Event{Type: EventDelivered, RecordID: "shot_1"})

	if !strings.Contains(buf.String(), "event log failed") {
		t.Fatalf("failure not logged: %q", buf.String())
	}
}
