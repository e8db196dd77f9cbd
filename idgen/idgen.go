// Package idgen produces the identifiers used across NoteShot.
//
// Capture records are keyed by their capture instant, so two captures must
// never share a timestamp: [Clock] hands out strictly increasing instants
// and [CaptureID] renders them as sortable keys. Everything else (event
// log rows, pending handoff tokens) uses UUIDv7 through [Generator].
package idgen

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// captureLayout keeps nanosecond precision with a fixed width so that
// lexical order equals chronological order.
const captureLayout = "20060102T150405.000000000Z"

// CapturePrefix starts every capture record id.
const CapturePrefix = "shot_"

// CaptureID renders t as a capture record id.
func CaptureID(t time.Time) string {
	return CapturePrefix + t.UTC().Format(captureLayout)
}

// ParseCaptureID recovers the instant encoded by CaptureID.
func ParseCaptureID(id string) (time.Time, bool) {
	if len(id) <= len(CapturePrefix) || id[:len(CapturePrefix)] != CapturePrefix {
		return time.Time{}, false
	}
	t, err := time.Parse(captureLayout, id[len(CapturePrefix):])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clock hands out strictly increasing instants. When the wall clock has
// not advanced past the previous instant (same tick, or a step backwards)
// it returns previous+1ns instead.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a Clock reading now; nil means time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns an instant strictly after every instant returned before.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
