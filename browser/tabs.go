package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/viewer"
)

// injectJS calls the viewer page's typed injection entry point. It
// yields null on pages that do not provide one.
const injectJS = `(rec) => typeof window.noteshotInject === 'function' ? window.noteshotInject(rec) : null`

// Tabs implements viewer.Surfaces with browser targets.
type Tabs struct {
	mgr *Manager

	mu        sync.Mutex
	pages     map[viewer.SurfaceID]*rod.Page
	observers map[int]func(viewer.SurfaceID)
	seq       int
}

// NewTabs returns Tabs on mgr's browser and starts watching target
// destruction until ctx ends. mgr must be started.
func NewTabs(ctx context.Context, mgr *Manager) (*Tabs, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return nil, fmt.Errorf("browser: discover targets: %w", err)
	}
	t := &Tabs{
		mgr:       mgr,
		pages:     make(map[viewer.SurfaceID]*rod.Page),
		observers: make(map[int]func(viewer.SurfaceID)),
	}
	wait := b.Context(ctx).EachEvent(func(e *proto.TargetTargetDestroyed) {
		t.destroyed(viewer.SurfaceID(e.TargetID))
	})
	go wait()
	return t, nil
}

func (t *Tabs) Open(ctx context.Context, location string) (viewer.SurfaceID, error) {
	b := t.mgr.Browser()
	if b == nil {
		return "", fmt.Errorf("browser: no active browser")
	}
	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: location})
	if err != nil {
		return "", fmt.Errorf("browser: open %s: %w", location, err)
	}
	id := viewer.SurfaceID(page.TargetID)

	t.mu.Lock()
	t.pages[id] = page
	t.mu.Unlock()
	return id, nil
}

// Exists asks the browser, not the local map, whether the target lives.
func (t *Tabs) Exists(ctx context.Context, id viewer.SurfaceID) (bool, error) {
	b := t.mgr.Browser()
	if b == nil {
		return false, nil
	}
	res, err := proto.TargetGetTargets{}.Call(b.Context(ctx))
	if err != nil {
		return false, fmt.Errorf("browser: list targets: %w", err)
	}
	for _, info := range res.TargetInfos {
		if viewer.SurfaceID(info.TargetID) == id {
			return true, nil
		}
	}
	t.forget(id)
	return false, nil
}

func (t *Tabs) WaitLoad(ctx context.Context, id viewer.SurfaceID) error {
	page, err := t.page(id)
	if err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, t.mgr.cfg.NavigateTimeout)
	defer cancel()
	return page.Context(navCtx).WaitLoad()
}

func (t *Tabs) Focus(ctx context.Context, id viewer.SurfaceID) error {
	page, err := t.page(id)
	if err != nil {
		return err
	}
	_, err = page.Context(ctx).Activate()
	return err
}

func (t *Tabs) Inject(ctx context.Context, id viewer.SurfaceID, rec capture.Record) (bool, error) {
	page, err := t.page(id)
	if err != nil {
		return false, err
	}
	res, err := page.Context(ctx).Eval(injectJS, rec)
	if err != nil {
		return false, fmt.Errorf("browser: inject: %w", err)
	}
	if res.Value.Nil() {
		return false, fmt.Errorf("browser: page has no noteshotInject: %w", viewer.ErrNotViewer)
	}
	return res.Value.Bool(), nil
}

func (t *Tabs) OnClosed(fn func(viewer.SurfaceID)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	key := t.seq
	t.observers[key] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.observers, key)
	}
}

func (t *Tabs) destroyed(id viewer.SurfaceID) {
	t.mu.Lock()
	if _, ok := t.pages[id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pages, id)
	fns := make([]func(viewer.SurfaceID), 0, len(t.observers))
	for _, fn := range t.observers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	t.mgr.cfg.Logger.Debug("browser: viewer tab closed", "target", id)
	for _, fn := range fns {
		fn(id)
	}
}

func (t *Tabs) page(id viewer.SurfaceID) (*rod.Page, error) {
	t.mu.Lock()
	page, ok := t.pages[id]
	t.mu.Unlock()
	if ok {
		return page, nil
	}
	b := t.mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	page, err := b.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, fmt.Errorf("browser: target %s: %w", id, err)
	}
	t.mu.Lock()
	t.pages[id] = page
	t.mu.Unlock()
	return page, nil
}

func (t *Tabs) forget(id viewer.SurfaceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pages, id)
}
