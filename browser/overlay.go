package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/noteshot/capture"
)

// PageFunc yields the page an overlay is drawn on.
type PageFunc func(ctx context.Context) (*rod.Page, error)

// Overlay implements region.Overlay in a live page. Pointer and escape
// events are posted to the region endpoints at Endpoint (the service's
// /api/region base), which drive the selector.
type Overlay struct {
	page     PageFunc
	endpoint string
}

// NewOverlay returns an overlay drawing on the page returned by page.
func NewOverlay(page PageFunc, endpoint string) *Overlay {
	return &Overlay{page: page, endpoint: endpoint}
}

// All overlay state lives under window.__noteshotOverlay so Teardown can
// remove every element and listener Mount created.
const mountJS = `(endpoint) => {
	if (window.__noteshotOverlay) return;
	const post = (path, body) => fetch(endpoint + path, {
		method: 'POST',
		headers: {'Content-Type': 'application/json'},
		body: JSON.stringify(body || {})
	}).catch(() => {});
	const backdrop = document.createElement('div');
	backdrop.dataset.noteshotOverlay = 'backdrop';
	Object.assign(backdrop.style, {position: 'fixed', inset: '0', zIndex: '2147483646',
		cursor: 'crosshair', background: 'rgba(0,0,0,0.2)'});
	const box = document.createElement('div');
	box.dataset.noteshotOverlay = 'box';
	Object.assign(box.style, {position: 'fixed', zIndex: '2147483647', display: 'none',
		border: '2px dashed #2563eb', background: 'rgba(37,99,235,0.1)', pointerEvents: 'none'});
	const hint = document.createElement('div');
	hint.dataset.noteshotOverlay = 'hint';
	hint.textContent = 'Drag to select an area. Press Escape to cancel.';
	Object.assign(hint.style, {position: 'fixed', top: '12px', left: '50%', transform: 'translateX(-50%)',
		zIndex: '2147483647', background: '#111', color: '#fff', padding: '6px 12px', borderRadius: '4px'});
	document.body.append(backdrop, box, hint);

	let dragging = false;
	const listeners = {
		pointerdown: (e) => { dragging = true; post('/pointer', {type: 'down', x: e.clientX, y: e.clientY}); },
		pointermove: (e) => { if (dragging) post('/pointer', {type: 'move', x: e.clientX, y: e.clientY}); },
		pointerup: (e) => { if (!dragging) return; dragging = false; post('/pointer', {type: 'up', x: e.clientX, y: e.clientY}); },
		keydown: (e) => { if (e.key === 'Escape') post('/cancel'); }
	};
	backdrop.addEventListener('pointerdown', listeners.pointerdown);
	backdrop.addEventListener('pointermove', listeners.pointermove);
	backdrop.addEventListener('pointerup', listeners.pointerup);
	document.addEventListener('keydown', listeners.keydown);
	window.__noteshotOverlay = {backdrop, box, hint, listeners};
}`

const drawJS = `(r) => {
	const o = window.__noteshotOverlay;
	if (!o) return;
	Object.assign(o.box.style, {display: 'block', left: r.x + 'px', top: r.y + 'px',
		width: r.width + 'px', height: r.height + 'px'});
}`

const flashJS = `(msg) => {
	const el = document.createElement('div');
	el.dataset.noteshotFlash = '1';
	el.textContent = msg;
	Object.assign(el.style, {position: 'fixed', bottom: '20px', left: '50%', transform: 'translateX(-50%)',
		zIndex: '2147483647', background: '#b91c1c', color: '#fff', padding: '8px 14px', borderRadius: '4px'});
	document.body.appendChild(el);
	setTimeout(() => el.remove(), 2000);
}`

const teardownJS = `() => {
	const o = window.__noteshotOverlay;
	if (!o) return 0;
	o.backdrop.removeEventListener('pointerdown', o.listeners.pointerdown);
	o.backdrop.removeEventListener('pointermove', o.listeners.pointermove);
	o.backdrop.removeEventListener('pointerup', o.listeners.pointerup);
	document.removeEventListener('keydown', o.listeners.keydown);
	o.backdrop.remove();
	o.box.remove();
	o.hint.remove();
	delete window.__noteshotOverlay;
	return document.querySelectorAll('[data-noteshot-overlay]').length;
}`

func (o *Overlay) Mount(ctx context.Context) error {
	return o.eval(ctx, mountJS, o.endpoint)
}

func (o *Overlay) Draw(ctx context.Context, r capture.Region) error {
	return o.eval(ctx, drawJS, r)
}

func (o *Overlay) Flash(ctx context.Context, msg string) error {
	return o.eval(ctx, flashJS, msg)
}

func (o *Overlay) Teardown(ctx context.Context) error {
	page, err := o.page(ctx)
	if err != nil {
		return err
	}
	res, err := page.Context(ctx).Eval(teardownJS)
	if err != nil {
		return fmt.Errorf("browser: overlay teardown: %w", err)
	}
	if left := res.Value.Int(); left != 0 {
		return fmt.Errorf("browser: overlay teardown left %d elements", left)
	}
	return nil
}

func (o *Overlay) eval(ctx context.Context, js string, arg any) error {
	page, err := o.page(ctx)
	if err != nil {
		return err
	}
	if _, err := page.Context(ctx).Eval(js, arg); err != nil {
		return fmt.Errorf("browser: overlay: %w", err)
	}
	return nil
}
