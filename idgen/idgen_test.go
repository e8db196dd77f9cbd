package idgen

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("evt_", func() string { return "x" })
	if got := gen(); got != "evt_x" {
		t.Fatalf("Prefixed: got %q", got)
	}
}

func TestCaptureID_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 89, time.UTC)
	id := CaptureID(at)
	if id != "shot_20260304T050607.000000089Z" {
		t.Fatalf("CaptureID: got %q", id)
	}
	back, ok := ParseCaptureID(id)
	if !ok {
		t.Fatalf("ParseCaptureID(%q) failed", id)
	}
	if !back.Equal(at) {
		t.Fatalf("round trip: got %v, want %v", back, at)
	}
	if _, ok := ParseCaptureID("note_123"); ok {
		t.Fatal("ParseCaptureID accepted a foreign id")
	}
}

func TestCaptureID_LexicalOrder(t *testing.T) {
	a := CaptureID(time.Date(2026, 1, 1, 0, 0, 0, 999, time.UTC))
	b := CaptureID(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}

func TestClock_StrictlyIncreasingOnFrozenTime(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return frozen })

	first := c.Next()
	second := c.Next()
	if !second.After(first) {
		t.Fatalf("second %v not after first %v", second, first)
	}
	if CaptureID(first) == CaptureID(second) {
		t.Fatal("ids collide on a frozen clock")
	}
}

func TestClock_BackwardsStep(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
	}
	i := 0
	c := NewClock(func() time.Time { v := times[i]; i++; return v })
	a, b := c.Next(), c.Next()
	if !b.After(a) {
		t.Fatalf("clock went backwards: %v then %v", a, b)
	}
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := NewClock(nil)
	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- CaptureID(c.Next())
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
