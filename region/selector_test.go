package region

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hazyhaar/noteshot/capture"
)

type memStore struct {
	mu    sync.Mutex
	last  *capture.Region
	saves int
}

func (m *memStore) SaveRegion(_ context.Context, r capture.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &r
	m.saves++
	return nil
}

func (m *memStore) LastRegion(context.Context) (capture.Region, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return capture.Region{}, false, nil
	}
	return *m.last, true, nil
}

type triggerLog struct {
	mu      sync.Mutex
	regions []capture.Region
}

func (l *triggerLog) fire(_ context.Context, r capture.Region) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regions = append(l.regions, r)
	return nil
}

func (l *triggerLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.regions)
}

func newSelector() (*Selector, *Recorder, *memStore, *triggerLog) {
	rec := &Recorder{}
	store := &memStore{}
	trig := &triggerLog{}
	return NewSelector(rec, store, trig.fire), rec, store, trig
}

func assertNoLeaks(t *testing.T, rec *Recorder) {
	t.Helper()
	if el, ls := rec.Live(); el != 0 || ls != 0 {
		t.Fatalf("overlay leaked: %d elements, %d listeners", el, ls)
	}
}

func TestSelector_DragCommits(t *testing.T) {
	ctx := context.Background()
	s, rec, store, trig := newSelector()

	st, err := s.Start(ctx)
	if err != nil || st != StatusSelecting {
		t.Fatalf("start: %v %v", st, err)
	}
	if s.State() != Armed {
		t.Fatalf("state: %v", s.State())
	}
	if err := s.PointerDown(ctx, 50, 50); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PointerMove(ctx, 30, 20); err != nil {
		t.Fatal(err)
	}
	r, st, err := s.PointerUp(ctx, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := capture.Region{X: 10, Y: 10, Width: 40, Height: 40}
	if r != want {
		t.Fatalf("region: got %+v, want %+v", r, want)
	}
	if st != StatusCapturing {
		t.Fatalf("status: %v", st)
	}
	if s.State() != Idle {
		t.Fatalf("state after commit: %v", s.State())
	}
	if store.saves != 1 || *store.last != want {
		t.Fatalf("last region not saved: %+v", store.last)
	}
	if trig.count() != 1 || trig.regions[0] != want {
		t.Fatalf("trigger: %+v", trig.regions)
	}
	assertNoLeaks(t, rec)
}

func TestSelector_MoveRedrawsNormalized(t *testing.T) {
	ctx := context.Background()
	s, rec, _, _ := newSelector()
	s.Start(ctx)
	s.PointerDown(ctx, 100, 100)
	got, err := s.PointerMove(ctx, 40, 160)
	if err != nil {
		t.Fatal(err)
	}
	want := capture.Region{X: 40, Y: 100, Width: 60, Height: 60}
	if got != want {
		t.Fatalf("move: got %+v, want %+v", got, want)
	}
	drawn := rec.Drawn()
	if drawn[len(drawn)-1] != want {
		t.Fatalf("last drawn: %+v", drawn[len(drawn)-1])
	}
}

func TestSelector_TooSmall(t *testing.T) {
	ctx := context.Background()
	s, rec, store, trig := newSelector()

	s.Start(ctx)
	s.PointerDown(ctx, 10, 10)
	_, st, err := s.PointerUp(ctx, 20, 60) // width exactly 10
	if !errors.Is(err, capture.ErrSelectionTooSmall) {
		t.Fatalf("error: %v", err)
	}
	if st != StatusError {
		t.Fatalf("status: %v", st)
	}
	if s.State() != Idle {
		t.Fatalf("state: %v", s.State())
	}
	if trig.count() != 0 {
		t.Fatal("capture triggered for a too-small selection")
	}
	if store.saves != 0 {
		t.Fatal("too-small region persisted")
	}
	if f := rec.Flashes(); len(f) != 1 || f[0] != TooSmallMessage {
		t.Fatalf("flashes: %v", f)
	}
	assertNoLeaks(t, rec)
}

func TestSelector_AlreadySelecting(t *testing.T) {
	ctx := context.Background()
	s, rec, _, _ := newSelector()

	s.Start(ctx)
	st, _ := s.Start(ctx)
	if st != StatusAlreadySelecting {
		t.Fatalf("armed: %v", st)
	}
	s.PointerDown(ctx, 0, 0)
	st, _ = s.Start(ctx)
	if st != StatusAlreadySelecting {
		t.Fatalf("dragging: %v", st)
	}
	if s.State() != Dragging {
		t.Fatalf("selection restarted: %v", s.State())
	}
	if rec.Mounts() != 1 {
		t.Fatalf("mounts: %d", rec.Mounts())
	}
}

func TestSelector_CancelTearsDown(t *testing.T) {
	ctx := context.Background()
	s, rec, store, trig := newSelector()

	s.Start(ctx)
	s.PointerDown(ctx, 0, 0)
	s.PointerMove(ctx, 200, 200)
	s.Cancel(ctx)

	if s.State() != Idle {
		t.Fatalf("state: %v", s.State())
	}
	if _, _, err := s.PointerUp(ctx, 200, 200); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("pointer up after cancel: %v", err)
	}
	if trig.count() != 0 || store.saves != 0 {
		t.Fatal("cancelled selection captured")
	}
	assertNoLeaks(t, rec)
}

func TestSelector_RepeatedSelectionsDoNotLeak(t *testing.T) {
	ctx := context.Background()
	s, rec, _, trig := newSelector()

	for range 5 {
		s.Start(ctx)
		s.PointerDown(ctx, 0, 0)
		s.PointerUp(ctx, 100, 100)
		assertNoLeaks(t, rec)
	}
	s.Start(ctx)
	s.Cancel(ctx)
	assertNoLeaks(t, rec)

	if trig.count() != 5 {
		t.Fatalf("captures: %d", trig.count())
	}
}

func TestSelector_PointerDownWhenIdle(t *testing.T) {
	s, _, _, _ := newSelector()
	if err := s.PointerDown(context.Background(), 1, 1); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("error: %v", err)
	}
}

func TestSelector_MountFailure(t *testing.T) {
	rec := &Recorder{MountErr: errors.New("page gone")}
	s := NewSelector(rec, &memStore{}, (&triggerLog{}).fire)
	st, err := s.Start(context.Background())
	if st != StatusError || !errors.Is(err, capture.ErrCaptureUnavailable) {
		t.Fatalf("start: %v %v", st, err)
	}
	if s.State() != Idle {
		t.Fatalf("state: %v", s.State())
	}
}

func TestSelector_CaptureLast(t *testing.T) {
	ctx := context.Background()
	s, rec, store, trig := newSelector()

	st, err := s.CaptureLast(ctx)
	if err != nil || st != StatusSelecting {
		t.Fatalf("no saved region: %v %v", st, err)
	}
	s.Cancel(ctx)

	saved := capture.Region{X: 5, Y: 5, Width: 300, Height: 200}
	store.SaveRegion(ctx, saved)
	st, err = s.CaptureLast(ctx)
	if err != nil || st != StatusCapturing {
		t.Fatalf("saved region: %v %v", st, err)
	}
	if trig.count() != 1 || trig.regions[0] != saved {
		t.Fatalf("trigger: %+v", trig.regions)
	}
	if rec.Mounts() != 1 {
		t.Fatalf("overlay mounted for a saved region: %d", rec.Mounts())
	}
}
