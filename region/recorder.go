package region

import (
	"context"
	"sync"

	"github.com/hazyhaar/noteshot/capture"
)

// Recorder is an in-memory Overlay that tracks mounted elements and
// attached listeners, so leaks show up as non-zero counts.
type Recorder struct {
	mu        sync.Mutex
	elements  int
	listeners int
	mounts    int
	drawn     []capture.Region
	flashes   []string
	MountErr  error
}

// Elements and listeners a single Mount adds: backdrop, selection box,
// hint; pointerdown, pointermove, pointerup, keydown.
const (
	recorderElements  = 3
	recorderListeners = 4
)

func (r *Recorder) Mount(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MountErr != nil {
		return r.MountErr
	}
	r.mounts++
	r.elements += recorderElements
	r.listeners += recorderListeners
	return nil
}

func (r *Recorder) Draw(_ context.Context, rect capture.Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawn = append(r.drawn, rect)
	return nil
}

func (r *Recorder) Flash(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashes = append(r.flashes, msg)
	return nil
}

func (r *Recorder) Teardown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = 0
	r.listeners = 0
	return nil
}

// Live returns the elements and listeners currently attached.
func (r *Recorder) Live() (elements, listeners int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elements, r.listeners
}

// Mounts returns how many times Mount succeeded.
func (r *Recorder) Mounts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounts
}

// Drawn returns every rectangle drawn so far.
func (r *Recorder) Drawn() []capture.Region {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Region(nil), r.drawn...)
}

// Flashes returns every transient message shown.
func (r *Recorder) Flashes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.flashes...)
}
