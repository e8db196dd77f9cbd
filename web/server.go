// Package web serves the Remote Intake, the viewer page, the notes API
// and the HTTP capture triggers.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/deliver"
	"github.com/hazyhaar/noteshot/export"
	"github.com/hazyhaar/noteshot/region"
)

// Store is the note store as seen by the web surfaces.
type Store interface {
	ListAll(ctx context.Context) ([]capture.Record, error)
	Get(ctx context.Context, id string) (capture.Record, bool, error)
	AppendIfAbsent(ctx context.Context, rec capture.Record) (bool, error)
	UpdateNotes(ctx context.Context, id, text string) error
	Reset(ctx context.Context) error
}

// Capturer runs the capture pipeline.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) deliver.Outcome
}

// Selector drives an interactive region selection.
type Selector interface {
	Start(ctx context.Context) (region.Status, error)
	PointerDown(ctx context.Context, x, y float64) error
	PointerMove(ctx context.Context, x, y float64) (capture.Region, error)
	PointerUp(ctx context.Context, x, y float64) (capture.Region, region.Status, error)
	Cancel(ctx context.Context)
	CaptureLast(ctx context.Context) (region.Status, error)
}

// Server holds the HTTP surfaces. Build it with New and mount Handler.
type Server struct {
	store     Store
	exporter  *export.Exporter
	capturer  Capturer
	selector  Selector
	publicURL string
	maxBody   int64
	logger    *slog.Logger
	now       func() time.Time

	pending pendingSlot
}

// Option configures a Server.
type Option func(*Server)

// WithPublicURL sets the base of returned view locations.
// Default http://localhost:3000.
func WithPublicURL(u string) Option {
	return func(s *Server) { s.publicURL = strings.TrimRight(u, "/") }
}

// WithCapturer enables POST /api/capture.
func WithCapturer(c Capturer) Option {
	return func(s *Server) { s.capturer = c }
}

// WithSelector enables the /api/region endpoints.
func WithSelector(sel Selector) Option {
	return func(s *Server) { s.selector = sel }
}

// WithExporter replaces the default exporter.
func WithExporter(e *export.Exporter) Option {
	return func(s *Server) { s.exporter = e }
}

// WithMaxBody caps intake request bodies. Default 32 MiB.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server over store.
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:     store,
		publicURL: "http://localhost:3000",
		maxBody:   32 << 20,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.exporter == nil {
		s.exporter = export.New(export.WithLogger(s.logger))
	}
	return s
}

// ViewLocation is where record id is shown.
func (s *Server) ViewLocation(id string) string {
	return s.publicURL + "/?id=" + id
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/note", s.handleIntake)
	r.Get("/note", s.handlePending)

	r.Get("/", s.handleViewer)
	r.Get("/export.md", s.handleExport)

	r.Route("/api", func(r chi.Router) {
		r.Get("/notes", s.handleList)
		r.Delete("/notes", s.handleReset)
		r.Get("/notes/{id}", s.handleGet)
		r.Put("/notes/{id}", s.handleUpdateNotes)

		r.Post("/capture", s.handleCapture)
		r.Route("/region", func(r chi.Router) {
			r.Post("/start", s.handleRegionStart)
			r.Post("/pointer", s.handleRegionPointer)
			r.Post("/cancel", s.handleRegionCancel)
			r.Post("/last", s.handleRegionLast)
		})
	})
	return r
}

// cors answers preflights and opens every route to the capture side,
// which runs on other origins.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,OPTIONS,PATCH,DELETE,POST,PUT")
		h.Set("Access-Control-Allow-Headers",
			"X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "web: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
