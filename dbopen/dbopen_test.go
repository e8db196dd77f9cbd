package dbopen_test

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/noteshot/dbopen"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	// :memory: reports "memory" even after the WAL pragma ran.
	if journalMode != "wal" && journalMode != "memory" {
		t.Fatalf("journal_mode = %q, want wal or memory", journalMode)
	}

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatal(err)
	}
	if timeout != 10000 {
		t.Fatalf("busy_timeout = %d, want 10000", timeout)
	}
}

func TestOpen_Schema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE t (id INTEGER PRIMARY KEY)`))
	if _, err := db.Exec(`INSERT INTO t (id) VALUES (1)`); err != nil {
		t.Fatalf("insert after schema: %v", err)
	}
}

func TestOpenTemp_SecondHandleSeesWrites(t *testing.T) {
	a, path := dbopen.OpenTemp(t, dbopen.WithSchema(`CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT)`))
	b, err := dbopen.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := a.Exec(`INSERT INTO kv VALUES ('x', 'y')`); err != nil {
		t.Fatal(err)
	}
	var v string
	if err := b.QueryRow(`SELECT v FROM kv WHERE k = 'x'`).Scan(&v); err != nil {
		t.Fatal(err)
	}
	if v != "y" {
		t.Fatalf("v = %q", v)
	}
}

func TestBackoff(t *testing.T) {
	start := time.Now()
	if err := dbopen.Backoff(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d < 20*time.Millisecond {
		t.Errorf("first backoff took %v", d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := dbopen.Backoff(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIsBusy(t *testing.T) {
	if dbopen.IsBusy(nil) {
		t.Fatal("nil is not busy")
	}
	if !dbopen.IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("locked error not detected")
	}
	if dbopen.IsBusy(errors.New("no such table")) {
		t.Fatal("false positive")
	}
}
