package main

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// A self-submission made right after serveHTTP returns must reach the
// server without any retry.
func TestServeHTTP_BoundOnReturn(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	stop, addr, err := serveHTTP("127.0.0.1:0", h, quiet)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	resp, err := http.Post("http://"+addr.String()+"/note", "application/json", nil)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestServeHTTP_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, _, err := serveHTTP(ln.Addr().String(), http.NotFoundHandler(), quiet); err == nil {
		t.Fatal("expected an error for a port already in use")
	}
}

func TestResolveConfig_FlagsOverride(t *testing.T) {
	cfg, err := resolveConfig(options{dbPath: "x.db", listen: ":4000", noBrowser: true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "x.db" || cfg.Listen != ":4000" || !cfg.Browser.Disabled {
		t.Fatalf("cfg = %+v", cfg)
	}
}
