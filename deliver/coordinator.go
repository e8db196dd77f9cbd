// Package deliver turns one capture into a stored record shown in the
// canonical viewer.
//
// The policy is sequential-with-fallback: the local write starts first
// and runs on its own; the record is then submitted once to the Remote
// Intake. A successful receipt routes the viewer to its viewLocation;
// any failure routes to the default viewer and relies on the local copy.
// Nothing is retried.
package deliver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/idgen"
	"github.com/hazyhaar/noteshot/observability"
	"github.com/hazyhaar/noteshot/viewer"
)

// Status summarizes an Outcome.
type Status string

const (
	// StatusDelivered: the intake accepted the record.
	StatusDelivered Status = "delivered"
	// StatusLocalOnly: the intake was skipped or failed; the record lives
	// in the local store only.
	StatusLocalOnly Status = "local_only"
	// StatusError: nothing was captured.
	StatusError Status = "error"
)

var errNoSource = errors.New("deliver: no capture source configured")

// Store is the local write side.
type Store interface {
	AppendIfAbsent(ctx context.Context, rec capture.Record) (bool, error)
}

// Router presents the canonical viewer.
type Router interface {
	Deliver(ctx context.Context, location string, rec *capture.Record) (viewer.Route, error)
}

// EventSink receives one event per delivery.
type EventSink interface {
	LogEvent(ctx context.Context, ev observability.Event)
}

// Outcome is what a trigger surface learns about a capture.
type Outcome struct {
	Status   Status          `json:"status"`
	Record   *capture.Record `json:"record,omitempty"`
	Location string          `json:"location,omitempty"`
	Route    viewer.Route    `json:"route"`
	Degraded []capture.Kind  `json:"degraded,omitempty"`
}

// Coordinator runs deliveries. It is safe for concurrent use.
type Coordinator struct {
	store        Store
	intake       Intake
	router       Router
	source       capture.Source
	clock        *idgen.Clock
	events       EventSink
	logger       *slog.Logger
	writeTimeout time.Duration

	wg sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSource sets the Capture Source used by Capture.
func WithSource(src capture.Source) Option {
	return func(c *Coordinator) { c.source = src }
}

// WithClock sets the clock assigning capture times.
func WithClock(clk *idgen.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// WithEvents sets where delivery events go.
func WithEvents(sink EventSink) Option {
	return func(c *Coordinator) { c.events = sink }
}

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithLocalWriteTimeout bounds the background local write. Default 30s.
func WithLocalWriteTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.writeTimeout = d }
}

// New returns a Coordinator. A nil intake means local-only delivery.
func New(store Store, intake Intake, router Router, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		intake:       intake,
		router:       router,
		clock:        idgen.NewClock(nil),
		logger:       slog.Default(),
		writeTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Capture asks the source for an image and delivers it. When the source
// fails, the default viewer is still presented and the outcome is
// StatusError.
func (c *Coordinator) Capture(ctx context.Context, req capture.Request) Outcome {
	if c.source == nil {
		return c.captureFailed(ctx, req, capture.Errorf(capture.KindCaptureUnavailable, "capture", errNoSource))
	}
	shot, err := c.source.Capture(ctx, req)
	if err != nil {
		return c.captureFailed(ctx, req, err)
	}
	return c.Deliver(ctx, shot)
}

func (c *Coordinator) captureFailed(ctx context.Context, req capture.Request, err error) Outcome {
	c.logger.WarnContext(ctx, "deliver: capture unavailable", "url", req.URL, "error", err)
	out := Outcome{Status: StatusError, Degraded: []capture.Kind{capture.KindCaptureUnavailable}}

	route, rerr := c.router.Deliver(ctx, "", nil)
	if rerr != nil {
		c.logger.WarnContext(ctx, "deliver: no viewer", "error", rerr)
		out.Degraded = append(out.Degraded, capture.KindRoutingFailure)
	}
	out.Route = route
	out.Location = route.Handle.Location

	c.emit(ctx, observability.Event{
		Type:     observability.EventCaptureFailed,
		Status:   string(out.Status),
		Location: out.Location,
		Degraded: kindNames(out.Degraded),
		Detail:   err.Error(),
	})
	return out
}

// Deliver builds a record from shot and delivers it.
func (c *Coordinator) Deliver(ctx context.Context, shot capture.Shot) Outcome {
	start := time.Now()
	at := c.clock.Next()
	rec := capture.Record{
		ID:          idgen.CaptureID(at),
		ImageData:   shot.ImageData,
		CapturedAt:  at,
		SourceURL:   shot.URL,
		SourceTitle: shot.Title,
	}

	c.persist(ctx, rec)

	out := Outcome{Status: StatusLocalOnly, Record: &rec}
	location := ""
	if c.intake != nil {
		receipt, err := c.intake.Submit(ctx, rec)
		if err != nil {
			c.logger.WarnContext(ctx, "deliver: remote intake failed, falling back to local copy",
				"id", rec.ID, "error", err)
			out.Degraded = append(out.Degraded, capture.KindTransportFailure)
		} else {
			out.Status = StatusDelivered
			location = receipt.ViewLocation
		}
	}

	route, err := c.router.Deliver(ctx, location, &rec)
	if err != nil {
		c.logger.WarnContext(ctx, "deliver: routing failed", "id", rec.ID, "error", err)
		out.Degraded = append(out.Degraded, capture.KindRoutingFailure)
	}
	out.Route = route
	out.Location = route.Handle.Location

	evType := observability.EventDelivered
	if out.Status != StatusDelivered {
		evType = observability.EventRemoteFailed
	}
	c.emit(ctx, observability.Event{
		Type:     evType,
		RecordID: rec.ID,
		Status:   string(out.Status),
		Location: out.Location,
		Degraded: kindNames(out.Degraded),
		Duration: time.Since(start),
	})
	return out
}

// persist starts the local write. It outlives ctx's cancellation and
// never reports back to the delivery; failures are logged.
func (c *Coordinator) persist(ctx context.Context, rec capture.Record) {
	base := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		wctx, cancel := context.WithTimeout(base, c.writeTimeout)
		defer cancel()
		if _, err := c.store.AppendIfAbsent(wctx, rec); err != nil {
			c.logger.WarnContext(wctx, "deliver: local write failed", "id", rec.ID, "error", err)
			c.emit(wctx, observability.Event{
				Type:     observability.EventPersistFailed,
				RecordID: rec.ID,
				Degraded: []string{capture.KindPersistenceFailure.String()},
				Detail:   err.Error(),
			})
		}
	}()
}

// Wait blocks until every local write started so far has finished.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) emit(ctx context.Context, ev observability.Event) {
	if c.events != nil {
		c.events.LogEvent(ctx, ev)
	}
}

func kindNames(kinds []capture.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
