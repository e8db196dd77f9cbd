// Package noteshot wires the capture-and-delivery pipeline into one
// service: a Chrome capture source, the local note store, the delivery
// coordinator, the canonical viewer, the region selector and the HTTP
// and MCP surfaces.
//
//	capture source → deliver → {notestore, remote intake} → viewer
//
// Usage:
//
//	svc, err := noteshot.New(ctx, cfg, logger)
//	defer svc.Close()
//	http.ListenAndServe(cfg.Listen, svc.Handler())
//	svc.RegisterMCP(mcpServer)
package noteshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/noteshot/browser"
	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/connectivity"
	"github.com/hazyhaar/noteshot/deliver"
	"github.com/hazyhaar/noteshot/export"
	"github.com/hazyhaar/noteshot/notestore"
	"github.com/hazyhaar/noteshot/observability"
	"github.com/hazyhaar/noteshot/region"
	"github.com/hazyhaar/noteshot/viewer"
	"github.com/hazyhaar/noteshot/web"
)

// Service is the NoteShot orchestrator.
type Service struct {
	cfg      *Config
	logger   *slog.Logger
	store    *notestore.Store
	events   *observability.EventLogger
	router   *viewer.Router
	coord    *deliver.Coordinator
	intake   *deliver.HTTPIntake
	selector *region.Selector
	exporter *export.Exporter
	web      *web.Server

	mgr      *browser.Manager
	capturer *browser.Capturer
	cancel   context.CancelFunc
}

// New opens the store, starts Chrome unless disabled and wires every
// component. ctx bounds background browser watchers; Close releases
// everything.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	storeOpts := []notestore.Option{
		notestore.WithLogger(logger),
		notestore.WithMaxAttempts(cfg.Store.MaxAttempts),
	}
	if cfg.Store.BlindWrites {
		storeOpts = append(storeOpts, notestore.WithoutVersionCheck())
	}
	st, err := notestore.Open(cfg.DBPath, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("noteshot: store: %w", err)
	}
	if err := observability.Init(ctx, st.DB()); err != nil {
		st.Close()
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		events:   observability.NewEventLogger(st.DB(), observability.WithLogger(logger)),
		exporter: export.New(export.WithLogger(logger)),
	}
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	surfaces, overlay, err := s.startBrowser(bgCtx)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.router = viewer.NewRouter(surfaces, cfg.ViewerURL(), viewer.WithRouterLogger(logger))

	var intake deliver.Intake
	if !cfg.Intake.Disabled {
		s.intake = deliver.NewHTTPIntake(cfg.Intake.URL,
			deliver.WithIntakeTimeout(cfg.Intake.Timeout),
			deliver.WithIntakeLogger(logger),
			deliver.WithBreaker(connectivity.NewCircuitBreaker(
				connectivity.WithBreakerThreshold(cfg.Intake.BreakerThreshold),
				connectivity.WithBreakerCooldown(cfg.Intake.BreakerCooldown),
			)),
		)
		intake = s.intake
	}

	coordOpts := []deliver.Option{deliver.WithEvents(s.events), deliver.WithLogger(logger)}
	if s.capturer != nil {
		coordOpts = append(coordOpts, deliver.WithSource(s.capturer))
	}
	s.coord = deliver.New(st, intake, s.router, coordOpts...)

	s.selector = region.NewSelector(overlay, st, s.captureRegion, region.WithLogger(logger))

	s.web = web.New(st,
		web.WithPublicURL(cfg.PublicURL),
		web.WithCapturer(s.coord),
		web.WithSelector(s.selector),
		web.WithExporter(s.exporter),
		web.WithLogger(logger),
	)
	return s, nil
}

func (s *Service) startBrowser(ctx context.Context) (viewer.Surfaces, region.Overlay, error) {
	if s.cfg.Browser.Disabled {
		s.logger.Info("noteshot: browser disabled, using in-memory viewers")
		return viewer.NewMemorySurfaces(s.store.ListAll), &region.Recorder{}, nil
	}

	s.mgr = browser.NewManager(browser.Config{
		RemoteURL:        s.cfg.Browser.RemoteURL,
		Headless:         s.cfg.Browser.Headless,
		Bin:              s.cfg.Browser.Bin,
		NavigateTimeout:  s.cfg.Browser.NavigateTimeout,
		ResourceBlocking: s.cfg.Browser.ResourceBlocking,
		Logger:           s.logger,
	})
	if _, err := s.mgr.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("noteshot: %w", err)
	}
	tabs, err := browser.NewTabs(ctx, s.mgr)
	if err != nil {
		return nil, nil, fmt.Errorf("noteshot: %w", err)
	}
	s.capturer = browser.NewCapturer(s.mgr)
	s.logger.Info("noteshot: browser ready", "remote", s.mgr.Remote(), "headless", s.cfg.Browser.Headless)
	overlay := browser.NewOverlay(s.capturer.ActivePage, s.cfg.PublicURL+"/api/region")
	return tabs, overlay, nil
}

// captureRegion is the region selector's trigger.
func (s *Service) captureRegion(ctx context.Context, r capture.Region) error {
	s.events.LogEvent(ctx, observability.Event{
		Type:   observability.EventRegionCommitted,
		Detail: fmt.Sprintf("%.0fx%.0f at %.0f,%.0f", r.Width, r.Height, r.X, r.Y),
	})
	out := s.coord.Capture(ctx, capture.Request{Region: &r})
	if out.Status == deliver.StatusError {
		return capture.Errorf(capture.KindCaptureUnavailable, "capture region", errors.New("capture source failed"))
	}
	return nil
}

// Handler returns the HTTP surfaces.
func (s *Service) Handler() http.Handler { return s.web.Handler() }

// Capture captures url (the current page when empty) and delivers it.
func (s *Service) Capture(ctx context.Context, url string) deliver.Outcome {
	return s.coord.Capture(ctx, capture.Request{URL: url})
}

// Deliver delivers an image acquired elsewhere.
func (s *Service) Deliver(ctx context.Context, shot capture.Shot) deliver.Outcome {
	return s.coord.Deliver(ctx, shot)
}

// List returns every stored record in insertion order.
func (s *Service) List(ctx context.Context) ([]capture.Record, error) {
	return s.store.ListAll(ctx)
}

// UpdateNotes replaces the notes of record id.
func (s *Service) UpdateNotes(ctx context.Context, id, notes string) error {
	return s.store.UpdateNotes(ctx, id, notes)
}

// Export renders the store as Markdown.
func (s *Service) Export(ctx context.Context) (export.Document, error) {
	return s.exporter.Export(ctx, s.store, time.Now())
}

// Events returns recent delivery events, newest first.
func (s *Service) Events(ctx context.Context, eventType string, limit int) ([]observability.Event, error) {
	return s.events.Recent(ctx, eventType, limit)
}

// Selector returns the region selector.
func (s *Service) Selector() *region.Selector { return s.selector }

// Router returns the viewer router.
func (s *Service) Router() *viewer.Router { return s.router }

// Wait blocks until pending local writes are done.
func (s *Service) Wait() {
	if s.coord != nil {
		s.coord.Wait()
	}
}

// Close drains pending writes and releases the browser and the store.
func (s *Service) Close() error {
	s.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	if s.capturer != nil {
		s.capturer.Close()
	}
	if s.mgr != nil {
		s.mgr.Close()
	}
	return s.store.Close()
}
