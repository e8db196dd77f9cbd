// Package browser runs the Chrome instance NoteShot captures from and
// shows viewers in. It provides the Capture Source, the viewer surfaces
// and the region overlay on top of go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

var errClosed = errors.New("browser: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	RemoteURL string

	// Headless launches Chrome without a window. Viewer tabs are only
	// visible to a user with Headless false or a remote Chrome.
	Headless bool

	// Bin is the Chrome binary. Empty lets the launcher find or fetch one.
	Bin string

	// NavigateTimeout bounds page navigation and load. Default: 30s.
	NavigateTimeout time.Duration

	// ResourceBlocking lists resource types not loaded on capture pages
	// (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the rod connection and, for a local Chrome, the process.
// A remote Chrome belongs to the user: Close drops the connection but
// leaves the browser and its tabs alone.
type Manager struct {
	cfg Config

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher // nil for a remote Chrome
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start connects to Chrome, launching it when no RemoteURL is set.
// Calling Start again returns the same browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return nil, errClosed
	case m.browser != nil:
		return m.browser, nil
	}

	wsURL, lnch, err := m.controlURL(ctx)
	if err != nil {
		return nil, err
	}
	b := rod.New().Context(context.WithoutCancel(ctx)).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Kill()
		}
		return nil, fmt.Errorf("browser: connect %s: %w", wsURL, err)
	}
	m.browser, m.lnch = b, lnch
	return b, nil
}

// controlURL returns the DevTools URL to connect to, and the launcher
// that owns the process when Chrome was started here.
func (m *Manager) controlURL(ctx context.Context) (string, *launcher.Launcher, error) {
	if m.cfg.RemoteURL != "" {
		m.cfg.Logger.Info("browser: using remote chrome", "url", m.cfg.RemoteURL)
		return m.cfg.RemoteURL, nil, nil
	}

	l := launcher.New().
		Context(ctx).
		Headless(m.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return "", nil, fmt.Errorf("browser: launch chrome: %w", err)
	}
	m.cfg.Logger.Info("browser: chrome launched", "headless", m.cfg.Headless, "pid", l.PID())
	return u, l, nil
}

// Browser returns the connected browser, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Remote reports whether the browser is the user's own Chrome.
func (m *Manager) Remote() bool { return m.cfg.RemoteURL != "" }

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Close releases the browser. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.lnch != nil {
		if m.browser != nil {
			err = m.browser.Close()
		}
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.browser = nil
	return err
}
