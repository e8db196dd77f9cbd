package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/noteshot/capture"
)

func rec(id string) capture.Record {
	return capture.Record{
		ID:         id,
		ImageData:  "data:image/png;base64,AAAA",
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBoard_AppendIfAbsent(t *testing.T) {
	b := NewBoard([]capture.Record{rec("a"), rec("a"), rec("b")})
	if b.Len() != 2 {
		t.Fatalf("initial dedup: got %d", b.Len())
	}
	if b.AppendIfAbsent(rec("b")) {
		t.Fatal("duplicate appended")
	}
	if !b.AppendIfAbsent(rec("c")) {
		t.Fatal("new record rejected")
	}
	got := b.Records()
	if got[0].ID != "a" || got[2].ID != "c" {
		t.Fatalf("order: %v", got)
	}
}

func TestRouter_OpensWhenNoViewer(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")

	if r.State() != NoViewer {
		t.Fatalf("initial state: %v", r.State())
	}
	x := rec("shot_1")
	route, err := r.Deliver(ctx, "http://intake/?id=shot_1", &x)
	if err != nil {
		t.Fatal(err)
	}
	if !route.Opened || !route.Injected {
		t.Fatalf("route: %+v", route)
	}
	if r.State() != ViewerReady {
		t.Fatalf("state: %v", r.State())
	}
	if loc := s.Location(route.Handle.Surface); loc != "http://intake/?id=shot_1" {
		t.Fatalf("location: %q", loc)
	}
}

func TestRouter_DefaultLocation(t *testing.T) {
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")
	route, err := r.Deliver(context.Background(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if route.Handle.Location != "http://localhost:3000/" {
		t.Fatalf("location: %q", route.Handle.Location)
	}
	if route.Injected {
		t.Fatal("nothing to inject")
	}
}

func TestRouter_IdempotentInjection(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")

	x := rec("shot_1")
	first, err := r.Deliver(ctx, "", &x)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Deliver(ctx, "", &x)
	if err != nil {
		t.Fatal(err)
	}
	if second.Opened {
		t.Fatal("second delivery opened a new surface")
	}
	if second.Injected {
		t.Fatal("second injection reported as added")
	}
	if n := s.Board(first.Handle.Surface).Count("shot_1"); n != 1 {
		t.Fatalf("visible entries: got %d, want 1", n)
	}
	if s.OpenCount() != 1 {
		t.Fatalf("surfaces opened: %d", s.OpenCount())
	}
}

func TestRouter_LoadReadsStoreThenDedups(t *testing.T) {
	x := rec("shot_1")
	s := NewMemorySurfaces(func(context.Context) ([]capture.Record, error) {
		return []capture.Record{x}, nil
	})
	r := NewRouter(s, "http://localhost:3000/")

	route, err := r.Deliver(context.Background(), "", &x)
	if err != nil {
		t.Fatal(err)
	}
	if route.Injected {
		t.Fatal("record already loaded from store, injection should be a no-op")
	}
	if n := s.Board(route.Handle.Surface).Count("shot_1"); n != 1 {
		t.Fatalf("visible entries: %d", n)
	}
}

func TestRouter_CloseEventResetsToNoViewer(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")

	route, err := r.Deliver(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Observers() != 1 {
		t.Fatalf("observers after open: %d", s.Observers())
	}

	s.Close(route.Handle.Surface)

	if r.State() != NoViewer {
		t.Fatalf("state after close: %v", r.State())
	}
	if _, ok := r.Handle(); ok {
		t.Fatal("handle survived close")
	}
	if s.Observers() != 0 {
		t.Fatalf("observer not deregistered: %d", s.Observers())
	}

	again, err := r.Deliver(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Opened || again.Handle.Surface == route.Handle.Surface {
		t.Fatalf("expected a new surface: %+v", again)
	}
}

func TestRouter_CloseOfOtherSurfaceIgnored(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")
	route, _ := r.Deliver(ctx, "", nil)

	other, _ := s.Open(ctx, "http://elsewhere/")
	s.Close(other)

	h, ok := r.Handle()
	if !ok || h.Surface != route.Handle.Surface {
		t.Fatalf("handle changed: %+v %v", h, ok)
	}
}

func TestRouter_StaleHandleReprobed(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")

	first, _ := r.Deliver(ctx, "", nil)
	s.Drop(first.Handle.Surface) // close notification lost

	x := rec("shot_2")
	second, err := r.Deliver(ctx, "", &x)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Opened {
		t.Fatal("stale handle reused")
	}
	if s.Observers() != 1 {
		t.Fatalf("observers: got %d, want 1", s.Observers())
	}
	if n := s.Board(second.Handle.Surface).Count("shot_2"); n != 1 {
		t.Fatalf("record not visible: %d", n)
	}
}

func TestRouter_NavigatedAwayReopens(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")
	first, err := r.Deliver(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Navigate(first.Handle.Surface, "https://example.com/")

	x := rec("shot_away")
	second, err := r.Deliver(ctx, "", &x)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Opened || second.Handle.Surface == first.Handle.Surface {
		t.Fatalf("navigated surface reused: %+v", second)
	}
	if s.OpenCount() != 2 {
		t.Fatalf("opened: got %d, want 2", s.OpenCount())
	}
	if n := s.Board(second.Handle.Surface).Count("shot_away"); n != 1 {
		t.Fatalf("record not visible: %d", n)
	}
	if s.Observers() != 1 {
		t.Fatalf("observers: got %d, want 1", s.Observers())
	}

	y := rec("shot_next")
	third, err := r.Deliver(ctx, "", &y)
	if err != nil {
		t.Fatal(err)
	}
	if third.Opened || third.Handle.Surface != second.Handle.Surface {
		t.Fatalf("new viewer not reused: %+v", third)
	}
}

func TestRouter_ReuseFocusesExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")
	first, _ := r.Deliver(ctx, "", nil)

	other, _ := s.Open(ctx, "http://elsewhere/")
	if s.Focused() != other {
		t.Fatal("setup: other surface should be focused")
	}

	x := rec("shot_3")
	if _, err := r.Deliver(ctx, "http://intake/?id=shot_3", &x); err != nil {
		t.Fatal(err)
	}
	if s.Focused() != first.Handle.Surface {
		t.Fatalf("focused: %s, want %s", s.Focused(), first.Handle.Surface)
	}
}

func TestRouter_ConcurrentDeliveriesOpenOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySurfaces(nil)
	r := NewRouter(s, "http://localhost:3000/")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x := rec(string(rune('a' + i)))
			if _, err := r.Deliver(ctx, "", &x); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if s.OpenCount() != 1 {
		t.Fatalf("surfaces opened: %d", s.OpenCount())
	}
	h, _ := r.Handle()
	if n := s.Board(h.Surface).Len(); n != 8 {
		t.Fatalf("visible entries: %d", n)
	}
}

type failingSurfaces struct{ *MemorySurfaces }

func (failingSurfaces) Open(context.Context, string) (SurfaceID, error) {
	return "", errors.New("browser gone")
}

func TestRouter_OpenFailureIsRoutingFailure(t *testing.T) {
	r := NewRouter(failingSurfaces{NewMemorySurfaces(nil)}, "http://localhost:3000/")
	_, err := r.Deliver(context.Background(), "", nil)
	if !errors.Is(err, capture.ErrRoutingFailure) {
		t.Fatalf("error: %v", err)
	}
	if r.State() != NoViewer {
		t.Fatalf("state: %v", r.State())
	}
}
