// Command noteshot captures web pages as screenshots and delivers them to
// the notes viewer.
//
// Usage:
//
//	noteshot --config noteshot.yaml             # serve intake, viewer and API
//	noteshot --db notes.db --listen :3000       # run with defaults
//	noteshot --capture https://example.com      # capture one page and exit
//	noteshot --export notes.md                  # write the Markdown export and exit
//	noteshot --list                             # print stored records and exit
//	noteshot --mcp                              # serve MCP tools on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/noteshot"
	"github.com/hazyhaar/noteshot/deliver"
)

type options struct {
	configPath string
	dbPath     string
	listen     string
	publicURL  string
	capture    string
	exportPath string
	list       bool
	mcp        bool
	noBrowser  bool
	headless   bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to noteshot.yaml config file")
	flag.StringVar(&o.dbPath, "db", "", "path to SQLite database")
	flag.StringVar(&o.listen, "listen", "", "HTTP listen address (default :3000)")
	flag.StringVar(&o.publicURL, "public-url", "", "public base URL of this server")
	flag.StringVar(&o.capture, "capture", "", "capture this URL, deliver it and exit")
	flag.StringVar(&o.exportPath, "export", "", "write the Markdown export to this path and exit")
	flag.BoolVar(&o.list, "list", false, "print stored records as JSON and exit")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools on stdio")
	flag.BoolVar(&o.noBrowser, "no-browser", false, "run without Chrome")
	flag.BoolVar(&o.headless, "headless", false, "run Chrome headless")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("noteshot: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}
	// Read-only one-shots never need Chrome.
	if o.list || o.exportPath != "" {
		cfg.Browser.Disabled = true
	}

	svc, err := noteshot.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()

	// One-shot: list.
	if o.list {
		recs, err := svc.List(ctx)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	// One-shot: export.
	if o.exportPath != "" {
		doc, err := svc.Export(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := atomic.WriteFile(o.exportPath, strings.NewReader(doc.Body)); err != nil {
			return fmt.Errorf("export: write %s: %w", o.exportPath, err)
		}
		logger.Info("noteshot: exported", "path", o.exportPath, "bytes", len(doc.Body))
		return nil
	}

	// MCP on stdio.
	if o.mcp {
		srv := mcp.NewServer(&mcp.Implementation{Name: "noteshot", Version: "1.0.0"}, nil)
		svc.RegisterMCP(srv)
		stopHTTP, _, err := serveHTTP(cfg.Listen, svc.Handler(), logger)
		if err != nil {
			return err
		}
		defer stopHTTP()
		logger.Info("noteshot: MCP on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	stopHTTP, _, err := serveHTTP(cfg.Listen, svc.Handler(), logger)
	if err != nil {
		return err
	}
	defer stopHTTP()

	// One-shot: capture. The HTTP server stays up so the intake receives
	// the record.
	if o.capture != "" {
		out := svc.Capture(ctx, o.capture)
		svc.Wait()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if out.Status == deliver.StatusError {
			return errors.New("capture failed")
		}
		return nil
	}

	logger.Info("noteshot: running", "listen", cfg.Listen, "db", cfg.DBPath, "viewer", cfg.ViewerURL())
	<-ctx.Done()
	logger.Info("noteshot: shutting down")
	return nil
}

// serveHTTP binds addr, then serves h in the background. The listener
// is bound on return so the intake can take a submission right away.
// It returns the graceful stop and the bound address.
func serveHTTP(addr string, h http.Handler, logger *slog.Logger) (func(), net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("noteshot: server error", "addr", addr, "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("noteshot: shutdown", "error", err)
		}
	}, ln.Addr(), nil
}

func resolveConfig(o options) (*noteshot.Config, error) {
	cfg := &noteshot.Config{}
	if o.configPath != "" {
		loaded, err := noteshot.LoadConfigFile(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		cfg = loaded
	}
	// Flags override the file.
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	if o.publicURL != "" {
		cfg.PublicURL = o.publicURL
	}
	if o.noBrowser {
		cfg.Browser.Disabled = true
	}
	if o.headless {
		cfg.Browser.Headless = true
	}
	return cfg, nil
}
