// Package notestore is the local note store shared by the capture side and
// the viewer side of NoteShot.
//
// Records live in a single JSON document slot. Append, UpdateNotes and
// Reset read the whole collection, change it in memory and write it back.
// Writes carry the version they read; a writer that lost the race gets
// ErrConflict and the mutation is replayed on a fresh read. Stores opened
// WithoutVersionCheck overwrite blindly, so of two concurrent appends one
// can be lost.
package notestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/dbopen"
)

// ErrConflict is returned when a versioned write finds that another
// writer updated the slot since it was read.
var ErrConflict = errors.New("notestore: version conflict")

// Store is a handle on the note collection. Several Stores may share one
// database file.
type Store struct {
	db          *sql.DB
	blind       bool
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithoutVersionCheck disables compare-and-swap on writes.
func WithoutVersionCheck() Option { return func(s *Store) { s.blind = true } }

// WithMaxAttempts bounds how many times a conflicting mutation is
// replayed. Default: 8.
func WithMaxAttempts(n int) Option { return func(s *Store) { s.maxAttempts = n } }

// WithLogger sets the logger used for conflict diagnostics.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// Open opens (or creates) the store database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("notestore: %w", err)
	}
	return newStore(db, opts), nil
}

// New wraps an already open database and applies the schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("notestore: schema: %w", err)
	}
	return newStore(db, opts), nil
}

func newStore(db *sql.DB, opts []Option) *Store {
	s := &Store{
		db:          db,
		maxAttempts: 8,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	return s
}

// DB exposes the underlying handle (event log, admin).
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Append adds rec at the end of the collection.
func (s *Store) Append(ctx context.Context, rec capture.Record) error {
	if err := rec.Validate(); err != nil {
		return capture.Errorf(capture.KindPersistenceFailure, "append", err)
	}
	return s.mutate(ctx, "append", func(recs []capture.Record) ([]capture.Record, bool) {
		return append(recs, rec), true
	})
}

// AppendIfAbsent appends rec unless a record with the same id is stored.
func (s *Store) AppendIfAbsent(ctx context.Context, rec capture.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, capture.Errorf(capture.KindPersistenceFailure, "append", err)
	}
	added := false
	err := s.mutate(ctx, "append", func(recs []capture.Record) ([]capture.Record, bool) {
		added = false
		if indexOf(recs, rec.ID) >= 0 {
			return recs, false
		}
		added = true
		return append(recs, rec), true
	})
	return added, err
}

// ListAll returns every record in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]capture.Record, error) {
	recs, _, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (capture.Record, bool, error) {
	recs, _, err := s.read(ctx)
	if err != nil {
		return capture.Record{}, false, err
	}
	if i := indexOf(recs, id); i >= 0 {
		return recs[i], true, nil
	}
	return capture.Record{}, false, nil
}

// UpdateNotes replaces the notes of record id. An unknown id is a no-op.
func (s *Store) UpdateNotes(ctx context.Context, id, text string) error {
	return s.mutate(ctx, "update_notes", func(recs []capture.Record) ([]capture.Record, bool) {
		i := indexOf(recs, id)
		if i < 0 || recs[i].Notes == text {
			return recs, false
		}
		recs[i].Notes = text
		return recs, true
	})
}

// Reset empties the collection. The last region setting is kept. The
// slot version keeps increasing so a writer that read before the reset
// still conflicts.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE slots SET body = '[]', version = version + 1, updated_at = ? WHERE key = ?`,
		s.now().Unix(), capturesKey)
	if err != nil {
		return capture.Errorf(capture.KindPersistenceFailure, "reset", err)
	}
	return nil
}

// mutate replays fn on a fresh read until the write lands or the attempt
// budget is spent.
func (s *Store) mutate(ctx context.Context, op string, fn func([]capture.Record) ([]capture.Record, bool)) error {
	for attempt := 1; ; attempt++ {
		recs, version, err := s.read(ctx)
		if err != nil {
			return err
		}
		next, changed := fn(recs)
		if !changed {
			return nil
		}
		err = s.write(ctx, capturesKey, next, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) && !dbopen.IsBusy(err) {
			return capture.Errorf(capture.KindPersistenceFailure, op, err)
		}
		if attempt >= s.maxAttempts {
			return capture.Errorf(capture.KindPersistenceFailure, op,
				fmt.Errorf("%w after %d attempts", err, attempt))
		}
		s.logger.DebugContext(ctx, "notestore: write lost, replaying",
			"op", op, "attempt", attempt, "version", version, "error", err)
		if dbopen.IsBusy(err) {
			if werr := dbopen.Backoff(ctx, attempt); werr != nil {
				return capture.Errorf(capture.KindPersistenceFailure, op, werr)
			}
		}
	}
}

// read loads the collection and the version it was read at. A missing
// slot is an empty collection at version 0.
func (s *Store) read(ctx context.Context) ([]capture.Record, int64, error) {
	var body string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version FROM slots WHERE key = ?`, capturesKey).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return []capture.Record{}, 0, nil
	}
	if err != nil {
		return nil, 0, capture.Errorf(capture.KindPersistenceFailure, "read", err)
	}
	var recs []capture.Record
	if err := json.Unmarshal([]byte(body), &recs); err != nil {
		return nil, 0, capture.Errorf(capture.KindPersistenceFailure, "read",
			fmt.Errorf("malformed %s slot: %w", capturesKey, err))
	}
	if recs == nil {
		recs = []capture.Record{}
	}
	return recs, version, nil
}

// write stores v under key. With version checking on, the write only
// lands if the slot is still at version (0 = slot absent).
func (s *Store) write(ctx context.Context, key string, v any, version int64) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	now := s.now().Unix()

	if s.blind {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO slots (key, body, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(key) DO UPDATE SET body = excluded.body, version = slots.version + 1, updated_at = excluded.updated_at`,
			key, string(body), now)
		return err
	}

	var res sql.Result
	if version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO slots (key, body, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(key) DO NOTHING`,
			key, string(body), now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE slots SET body = ?, version = version + 1, updated_at = ?
			 WHERE key = ? AND version = ?`,
			string(body), now, key, version)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func indexOf(recs []capture.Record, id string) int {
	for i := range recs {
		if recs[i].ID == id {
			return i
		}
	}
	return -1
}
