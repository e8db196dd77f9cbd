// Package region implements drag-to-rectangle selection over a page.
//
// A Selector moves Idle → Armed → Dragging and ends in Cancelled or
// Committed, both of which tear the overlay down and return to Idle.
// A committed rectangle is saved as the last region and handed to the
// capture trigger.
package region

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hazyhaar/noteshot/capture"
)

// State of a Selector.
type State int

const (
	Idle State = iota
	Armed
	Dragging
	Cancelled
	Committed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Dragging:
		return "dragging"
	case Cancelled:
		return "cancelled"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// Status is the coarse answer given to trigger surfaces.
type Status string

const (
	StatusCapturing        Status = "capturing"
	StatusSelecting        Status = "selecting"
	StatusAlreadySelecting Status = "already_selecting"
	StatusError            Status = "error"
)

// TooSmallMessage is flashed when a drag is below the minimum size.
const TooSmallMessage = "Selection too small. Please try again."

var (
	ErrNotArmed    = errors.New("region: no selection armed")
	ErrNotDragging = errors.New("region: no drag in progress")
)

// Overlay is the transient UI drawn over the page during a selection.
// Teardown must remove every element Mount added and detach every
// listener it attached.
type Overlay interface {
	Mount(ctx context.Context) error
	Draw(ctx context.Context, r capture.Region) error
	Flash(ctx context.Context, msg string) error
	Teardown(ctx context.Context) error
}

// Store persists the last region.
type Store interface {
	SaveRegion(ctx context.Context, r capture.Region) error
	LastRegion(ctx context.Context) (capture.Region, bool, error)
}

// Trigger captures the given area.
type Trigger func(ctx context.Context, r capture.Region) error

// Selector is safe for concurrent use.
type Selector struct {
	overlay Overlay
	store   Store
	trigger Trigger
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	x0, y0 float64
	rect   capture.Region
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the selector logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// NewSelector returns an Idle selector.
func NewSelector(overlay Overlay, store Store, trigger Trigger, opts ...Option) *Selector {
	s := &Selector{
		overlay: overlay,
		store:   store,
		trigger: trigger,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start arms a new selection. A selection already in progress is left
// untouched.
func (s *Selector) Start(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Selector) startLocked(ctx context.Context) (Status, error) {
	if s.state == Armed || s.state == Dragging {
		return StatusAlreadySelecting, nil
	}
	if err := s.overlay.Mount(ctx); err != nil {
		s.teardownLocked(ctx)
		return StatusError, capture.Errorf(capture.KindCaptureUnavailable, "region mount", err)
	}
	s.state = Armed
	s.rect = capture.Region{}
	return StatusSelecting, nil
}

// PointerDown starts the drag at (x, y).
func (s *Selector) PointerDown(ctx context.Context, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed {
		return ErrNotArmed
	}
	s.state = Dragging
	s.x0, s.y0 = x, y
	s.rect = capture.Region{X: x, Y: y}
	s.drawLocked(ctx)
	return nil
}

// PointerMove updates the rectangle; drag direction does not matter.
func (s *Selector) PointerMove(ctx context.Context, x, y float64) (capture.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Dragging {
		return capture.Region{}, ErrNotDragging
	}
	s.rect = capture.Normalize(s.x0, s.y0, x, y)
	s.drawLocked(ctx)
	return s.rect, nil
}

func (s *Selector) drawLocked(ctx context.Context) {
	if err := s.overlay.Draw(ctx, s.rect); err != nil {
		s.logger.DebugContext(ctx, "region: draw failed", "error", err)
	}
}

// Cancel discards the selection in progress. It is a no-op when Idle.
func (s *Selector) Cancel(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Armed && s.state != Dragging {
		return
	}
	s.state = Cancelled
	s.teardownLocked(ctx)
}

// PointerUp ends the drag at (x, y). A rectangle meeting the minimum
// size is saved and captured; a smaller one flashes TooSmallMessage and
// returns a SelectionTooSmall error. Either way the selector is Idle
// afterwards.
func (s *Selector) PointerUp(ctx context.Context, x, y float64) (capture.Region, Status, error) {
	s.mu.Lock()
	if s.state != Dragging {
		s.mu.Unlock()
		return capture.Region{}, StatusError, ErrNotDragging
	}
	r := capture.Normalize(s.x0, s.y0, x, y)
	s.rect = r
	if err := r.Check(); err != nil {
		if ferr := s.overlay.Flash(ctx, TooSmallMessage); ferr != nil {
			s.logger.DebugContext(ctx, "region: flash failed", "error", ferr)
		}
		s.state = Cancelled
		s.teardownLocked(ctx)
		s.mu.Unlock()
		return r, StatusError, err
	}
	s.state = Committed
	s.teardownLocked(ctx)
	s.mu.Unlock()

	status, err := s.commit(ctx, r)
	return r, status, err
}

// CaptureLast captures the saved last region, or starts a selection
// when none is saved.
func (s *Selector) CaptureLast(ctx context.Context) (Status, error) {
	s.mu.Lock()
	if s.state == Armed || s.state == Dragging {
		s.mu.Unlock()
		return StatusAlreadySelecting, nil
	}
	r, ok, err := s.store.LastRegion(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "region: last region unreadable", "error", err)
	}
	if !ok || !r.Valid() {
		defer s.mu.Unlock()
		return s.startLocked(ctx)
	}
	s.mu.Unlock()

	if err := s.trigger(ctx, r); err != nil {
		return StatusError, err
	}
	return StatusCapturing, nil
}

func (s *Selector) commit(ctx context.Context, r capture.Region) (Status, error) {
	if err := s.store.SaveRegion(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "region: save last region failed", "error", err)
	}
	if err := s.trigger(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "region: capture failed", "region", r, "error", err)
		return StatusError, err
	}
	return StatusCapturing, nil
}

// teardownLocked removes the overlay and returns to Idle.
func (s *Selector) teardownLocked(ctx context.Context) {
	if err := s.overlay.Teardown(ctx); err != nil {
		s.logger.WarnContext(ctx, "region: teardown failed", "error", err)
	}
	s.state = Idle
}
