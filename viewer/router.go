package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/noteshot/capture"
)

// Route reports what Deliver did.
type Route struct {
	Handle   Handle `json:"handle"`
	Opened   bool   `json:"opened"`   // a new surface was created
	Injected bool   `json:"injected"` // the record was added to the visible list
}

// Router owns the ViewerHandle. All transitions run under one mutex so
// concurrent deliveries never open two surfaces.
type Router struct {
	surfaces        Surfaces
	defaultLocation string
	logger          *slog.Logger
	now             func() time.Time

	mu          sync.Mutex
	state       State
	handle      *Handle
	unsubscribe func()
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the router logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter returns a router in NoViewer over surfaces. defaultLocation
// is opened when a delivery carries no location of its own.
func NewRouter(surfaces Surfaces, defaultLocation string, opts ...RouterOption) *Router {
	r := &Router{
		surfaces:        surfaces,
		defaultLocation: defaultLocation,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// DefaultLocation is the fallback viewer location.
func (r *Router) DefaultLocation() string { return r.defaultLocation }

// State returns the current state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Handle returns the live handle, if any.
func (r *Router) Handle() (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil {
		return Handle{}, false
	}
	return *r.handle, true
}

// Deliver makes rec visible in the canonical viewer. An existing live
// viewer is focused and receives rec by injection; otherwise a new
// surface is opened at location (the default location when empty). A
// nil rec only presents the viewer.
func (r *Router) Deliver(ctx context.Context, location string, rec *capture.Record) (Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle != nil {
		route, err := r.reuseLocked(ctx, rec)
		if err == nil || !errors.Is(err, errSurfaceGone) {
			return route, err
		}
	}
	if location == "" {
		location = r.defaultLocation
	}
	return r.openLocked(ctx, location, rec)
}

var errSurfaceGone = errors.New("viewer: surface gone")

func (r *Router) reuseLocked(ctx context.Context, rec *capture.Record) (Route, error) {
	h := *r.handle
	alive, err := r.surfaces.Exists(ctx, h.Surface)
	if err != nil || !alive {
		r.logger.InfoContext(ctx, "viewer: stale handle", "surface", h.Surface, "error", err)
		r.invalidateLocked()
		return Route{}, errSurfaceGone
	}
	if err := r.surfaces.Focus(ctx, h.Surface); err != nil {
		r.logger.WarnContext(ctx, "viewer: focus failed", "surface", h.Surface, "error", err)
		r.invalidateLocked()
		return Route{}, errSurfaceGone
	}
	route := Route{Handle: h}
	if rec == nil {
		return route, nil
	}
	added, err := r.surfaces.Inject(ctx, h.Surface, *rec)
	if errors.Is(err, ErrNotViewer) {
		r.logger.InfoContext(ctx, "viewer: surface navigated away", "surface", h.Surface)
		r.invalidateLocked()
		return Route{}, errSurfaceGone
	}
	if err != nil {
		return route, capture.Errorf(capture.KindRoutingFailure, "inject", err)
	}
	route.Injected = added
	return route, nil
}

func (r *Router) openLocked(ctx context.Context, location string, rec *capture.Record) (Route, error) {
	r.state = ViewerOpening
	id, err := r.surfaces.Open(ctx, location)
	if err != nil {
		r.state = NoViewer
		return Route{}, capture.Errorf(capture.KindRoutingFailure, "open", fmt.Errorf("%s: %w", location, err))
	}
	h := Handle{Surface: id, Location: location, OpenedAt: r.now()}
	r.handle = &h
	r.unsubscribe = r.surfaces.OnClosed(r.closed)

	if err := r.surfaces.WaitLoad(ctx, id); err != nil {
		r.invalidateLocked()
		return Route{}, capture.Errorf(capture.KindRoutingFailure, "wait load", err)
	}
	r.state = ViewerReady
	r.logger.InfoContext(ctx, "viewer: opened", "surface", id, "location", location)

	route := Route{Handle: h, Opened: true}
	if rec == nil {
		return route, nil
	}
	// The page read the store on load; injecting again is a no-op when
	// the record was already there.
	added, err := r.surfaces.Inject(ctx, id, *rec)
	if err != nil {
		return route, capture.Errorf(capture.KindRoutingFailure, "inject", err)
	}
	route.Injected = added
	return route, nil
}

// closed handles a surface-closed event.
func (r *Router) closed(id SurfaceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle == nil || r.handle.Surface != id {
		return
	}
	r.logger.Info("viewer: closed", "surface", id)
	r.invalidateLocked()
}

func (r *Router) invalidateLocked() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.handle = nil
	r.state = NoViewer
}
