package viewer

import (
	"sync"

	"github.com/hazyhaar/noteshot/capture"
)

// Board is the visible record list of one viewer surface, deduplicated
// by id.
type Board struct {
	mu      sync.Mutex
	records []capture.Record
	seen    map[string]struct{}
}

// NewBoard returns a board showing recs, dropping repeated ids.
func NewBoard(recs []capture.Record) *Board {
	b := &Board{seen: make(map[string]struct{}, len(recs))}
	for _, r := range recs {
		b.appendLocked(r)
	}
	return b
}

// AppendIfAbsent adds rec unless its id is already shown.
func (b *Board) AppendIfAbsent(rec capture.Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(rec)
}

func (b *Board) appendLocked(rec capture.Record) bool {
	if _, ok := b.seen[rec.ID]; ok {
		return false
	}
	b.seen[rec.ID] = struct{}{}
	b.records = append(b.records, rec)
	return true
}

// Records returns a copy of the visible list in display order.
func (b *Board) Records() []capture.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]capture.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Count returns how many visible entries carry id.
func (b *Board) Count(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.records {
		if r.ID == id {
			n++
		}
	}
	return n
}

// Len returns the number of visible entries.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
