package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/noteshot/capture"
)

var errNoPage = errors.New("browser: no page to capture")

// Capturer is the Capture Source. It keeps one stealth page open as the
// "viewed page": captures navigate it when a URL is given and shoot it
// as is otherwise, so region selections and repeated captures see the
// same page the user is looking at.
type Capturer struct {
	mgr *Manager

	mu     sync.Mutex
	page   *rod.Page
	hijack *rod.HijackRouter
}

// NewCapturer returns a Capturer on mgr's browser.
func NewCapturer(mgr *Manager) *Capturer {
	return &Capturer{mgr: mgr}
}

// Capture implements capture.Source. Any failure is CaptureUnavailable.
func (c *Capturer) Capture(ctx context.Context, req capture.Request) (capture.Shot, error) {
	shot, err := c.capture(ctx, req)
	if err != nil {
		return capture.Shot{}, capture.Errorf(capture.KindCaptureUnavailable, "capture", err)
	}
	return shot, nil
}

func (c *Capturer) capture(ctx context.Context, req capture.Request) (capture.Shot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.URL != "" {
		if err := c.visitLocked(ctx, req.URL); err != nil {
			return capture.Shot{}, err
		}
	}
	if c.page == nil {
		return capture.Shot{}, errNoPage
	}
	page := c.page.Context(ctx)

	opts := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if req.Region != nil {
		if err := req.Region.Check(); err != nil {
			return capture.Shot{}, err
		}
		clip, err := viewportClip(page, *req.Region)
		if err != nil {
			return capture.Shot{}, err
		}
		opts.Clip = clip
	}

	png, err := page.Screenshot(false, opts)
	if err != nil {
		return capture.Shot{}, fmt.Errorf("browser: screenshot: %w", err)
	}

	shot := capture.Shot{ImageData: DataURL("image/png", png)}
	if info, err := page.Info(); err == nil {
		shot.URL = info.URL
		shot.Title = info.Title
	} else {
		c.mgr.cfg.Logger.Debug("browser: page info unavailable", "error", err)
	}
	return shot, nil
}

// Visit navigates the viewed page to url, opening it first if needed.
func (c *Capturer) Visit(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visitLocked(ctx, url)
}

func (c *Capturer) visitLocked(ctx context.Context, url string) error {
	if c.page == nil {
		b := c.mgr.Browser()
		if b == nil {
			return fmt.Errorf("browser: no active browser")
		}
		page, err := stealth.Page(b)
		if err != nil {
			return fmt.Errorf("browser: create page: %w", err)
		}
		c.hijack = applyResourceBlocking(page, c.mgr.cfg.ResourceBlocking)
		c.page = page
	}

	navCtx, cancel := context.WithTimeout(ctx, c.mgr.cfg.NavigateTimeout)
	defer cancel()
	if err := c.page.Context(navCtx).Navigate(url); err != nil {
		c.closeLocked()
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := c.page.Context(navCtx).WaitLoad(); err != nil {
		c.mgr.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// ActivePage returns the viewed page.
func (c *Capturer) ActivePage(context.Context) (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == nil {
		return nil, errNoPage
	}
	return c.page, nil
}

// Close closes the viewed page.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Capturer) closeLocked() {
	if c.hijack != nil {
		_ = c.hijack.Stop()
		c.hijack = nil
	}
	if c.page != nil {
		c.page.Close()
		c.page = nil
	}
}

// viewportClip turns a viewport rectangle into a document clip.
func viewportClip(page *rod.Page, r capture.Region) (*proto.PageViewport, error) {
	res, err := page.Eval(`() => [window.scrollX, window.scrollY]`)
	if err != nil {
		return nil, fmt.Errorf("browser: scroll offset: %w", err)
	}
	scroll := res.Value.Arr()
	var sx, sy float64
	if len(scroll) == 2 {
		sx, sy = scroll[0].Num(), scroll[1].Num()
	}
	return &proto.PageViewport{
		X:      r.X + sx,
		Y:      r.Y + sy,
		Width:  r.Width,
		Height: r.Height,
		Scale:  1,
	}, nil
}

// DataURL encodes raw bytes as a data URL.
func DataURL(mime string, raw []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}
