// Package dbopen opens the SQLite databases NoteShot keeps its notes and
// event log in, with the pragmas every handle needs applied by EXEC so the
// same code runs against any database/sql SQLite driver.
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("data/noteshot.db", dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
//
// Several handles may open the same file (the capture side and the viewer
// side each hold one); WAL mode and busy_timeout let them interleave.
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const driverName = "sqlite"

type config struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
	schemas     []string
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues DDL to execute once the pragmas are applied.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// Open opens the database at path. The caller blank-imports the driver.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := config{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}
	memory := path == ":memory:"

	if cfg.mkdirAll && !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	pragmas := cfg.pragmas()
	db, err := sql.Open(driverName, dsn(path, pragmas))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	fail := func(step string, err error) (*sql.DB, error) {
		db.Close()
		return nil, fmt.Errorf("dbopen: %s: %w", step, err)
	}

	// The DSN covers pooled file connections; an in-memory database is a
	// single connection that only gets them by EXEC.
	if memory {
		for _, p := range pragmas {
			if _, err := db.Exec("PRAGMA " + p.name + " = " + p.value); err != nil {
				return fail("pragma "+p.name, err)
			}
		}
	}
	for _, schema := range cfg.schemas {
		if _, err := db.Exec(schema); err != nil {
			return fail("exec schema", err)
		}
	}
	if err := db.Ping(); err != nil {
		return fail("ping", err)
	}
	return db, nil
}

type pragma struct{ name, value string }

func (c config) pragmas() []pragma {
	return []pragma{
		{"journal_mode", "WAL"},
		{"busy_timeout", strconv.Itoa(c.busyTimeout)},
		{"synchronous", c.synchronous},
	}
}

// dsn applies the pragmas to every connection the pool opens.
func dsn(path string, pragmas []pragma) string {
	if path == ":memory:" {
		return path
	}
	q := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		q = append(q, "_pragma="+p.name+"("+p.value+")")
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// OpenMemory opens an in-memory database for tests. MaxOpenConns is 1 so
// every query sees the same database; t.Cleanup closes it.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// OpenTemp opens a file-backed database under t.TempDir and returns its
// path, for tests that need a second handle on the same file.
func OpenTemp(t testing.TB, opts ...Option) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "noteshot.db")
	db, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenTemp: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}
