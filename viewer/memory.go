package viewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazyhaar/noteshot/capture"
)

// Loader reads the shared store the way a viewer page does on load.
type Loader func(ctx context.Context) ([]capture.Record, error)

// MemorySurfaces is an in-process Surfaces. Each surface is a Board
// loaded from the shared store on WaitLoad.
type MemorySurfaces struct {
	load Loader

	mu        sync.Mutex
	seq       int
	surfaces  map[SurfaceID]*memorySurface
	observers map[int]func(SurfaceID)
	obsSeq    int
	focused   SurfaceID
	opened    int
}

type memorySurface struct {
	location string
	board    *Board
	away     bool
}

// NewMemorySurfaces returns an empty set of surfaces reading from load.
// A nil load starts every surface empty.
func NewMemorySurfaces(load Loader) *MemorySurfaces {
	if load == nil {
		load = func(context.Context) ([]capture.Record, error) { return nil, nil }
	}
	return &MemorySurfaces{
		load:      load,
		surfaces:  make(map[SurfaceID]*memorySurface),
		observers: make(map[int]func(SurfaceID)),
	}
}

func (m *MemorySurfaces) Open(_ context.Context, location string) (SurfaceID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.opened++
	id := SurfaceID(fmt.Sprintf("mem-%d", m.seq))
	m.surfaces[id] = &memorySurface{location: location}
	m.focused = id
	return id, nil
}

func (m *MemorySurfaces) Exists(_ context.Context, id SurfaceID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.surfaces[id]
	return ok, nil
}

func (m *MemorySurfaces) WaitLoad(ctx context.Context, id SurfaceID) error {
	recs, err := m.load(ctx)
	if err != nil {
		return fmt.Errorf("viewer: load: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	if !ok {
		return fmt.Errorf("viewer: surface %s closed while loading", id)
	}
	s.board = NewBoard(recs)
	return nil
}

func (m *MemorySurfaces) Focus(_ context.Context, id SurfaceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.surfaces[id]; !ok {
		return fmt.Errorf("viewer: surface %s not found", id)
	}
	m.focused = id
	return nil
}

func (m *MemorySurfaces) Inject(_ context.Context, id SurfaceID, rec capture.Record) (bool, error) {
	m.mu.Lock()
	s, ok := m.surfaces[id]
	var (
		board    *Board
		away     bool
		location string
	)
	if ok {
		board, away, location = s.board, s.away, s.location
	}
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("viewer: surface %s not found", id)
	}
	if away {
		return false, fmt.Errorf("viewer: surface %s at %s: %w", id, location, ErrNotViewer)
	}
	if board == nil {
		return false, fmt.Errorf("viewer: surface %s not loaded", id)
	}
	return board.AppendIfAbsent(rec), nil
}

func (m *MemorySurfaces) OnClosed(fn func(SurfaceID)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obsSeq++
	key := m.obsSeq
	m.observers[key] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, key)
	}
}

// Close closes a surface as a user would and notifies observers.
func (m *MemorySurfaces) Close(id SurfaceID) {
	m.mu.Lock()
	if _, ok := m.surfaces[id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.surfaces, id)
	if m.focused == id {
		m.focused = ""
	}
	fns := make([]func(SurfaceID), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

// Drop removes a surface without notifying anyone, leaving any holder
// with a stale handle.
func (m *MemorySurfaces) Drop(id SurfaceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.surfaces, id)
}

// Navigate points a surface at another page, as a user following a link
// would. The surface stays open but stops accepting injections.
func (m *MemorySurfaces) Navigate(id SurfaceID, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.surfaces[id]; ok {
		s.location = location
		s.board = nil
		s.away = true
	}
}

// Board returns the visible list of a surface, nil if absent or not loaded.
func (m *MemorySurfaces) Board(id SurfaceID) *Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.surfaces[id]; ok {
		return s.board
	}
	return nil
}

// Location returns where a surface was opened.
func (m *MemorySurfaces) Location(id SurfaceID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.surfaces[id]; ok {
		return s.location
	}
	return ""
}

// Focused returns the foreground surface.
func (m *MemorySurfaces) Focused() SurfaceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// OpenCount returns how many surfaces were ever opened.
func (m *MemorySurfaces) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Observers returns the number of registered close observers.
func (m *MemorySurfaces) Observers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}
