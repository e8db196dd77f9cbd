// Package viewer keeps exactly one canonical viewer surface per session
// and pushes captures into it without ever showing a record twice.
package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/noteshot/capture"
)

// SurfaceID identifies a concrete surface: a browser target id, or an
// in-memory id for MemorySurfaces.
type SurfaceID string

// ErrNotViewer is returned by Inject when the surface still exists but
// no longer shows a viewer page.
var ErrNotViewer = errors.New("viewer: surface is not a viewer")

// Surfaces is where viewers live. Implementations must be safe for
// concurrent use. OnClosed callbacks may run on any goroutine, but never
// from inside another Surfaces call or while holding the
// implementation's own locks.
type Surfaces interface {
	// Open creates a surface navigating to location.
	Open(ctx context.Context, location string) (SurfaceID, error)
	// Exists probes whether the surface is still open.
	Exists(ctx context.Context, id SurfaceID) (bool, error)
	// WaitLoad blocks until the surface reports load-complete.
	WaitLoad(ctx context.Context, id SurfaceID) error
	// Focus brings the surface to the foreground.
	Focus(ctx context.Context, id SurfaceID) error
	// Inject appends rec to the surface's visible list unless a record
	// with the same id is already there. added reports which happened.
	Inject(ctx context.Context, id SurfaceID, rec capture.Record) (added bool, err error)
	// OnClosed registers fn for surface-closed events.
	OnClosed(fn func(SurfaceID)) (unsubscribe func())
}

// State of the Router.
type State int

const (
	NoViewer State = iota
	ViewerOpening
	ViewerReady
)

func (s State) String() string {
	switch s {
	case NoViewer:
		return "no_viewer"
	case ViewerOpening:
		return "viewer_opening"
	case ViewerReady:
		return "viewer_ready"
	default:
		return "unknown"
	}
}

// Handle binds the canonical viewer to a concrete surface.
type Handle struct {
	Surface  SurfaceID `json:"surface"`
	Location string    `json:"location"`
	OpenedAt time.Time `json:"openedAt"`
}
