// Package capture defines the values that travel through the NoteShot
// pipeline: the capture record, the selection region and the error kinds
// every component reports with.
package capture

import (
	"context"
	"fmt"
	"time"
)

// Record is the unit of persistence and transport. ID, ImageData,
// CapturedAt and the source fields are set once by the delivery
// coordinator; only Notes changes afterwards.
type Record struct {
	ID          string    `json:"id"`
	ImageData   string    `json:"imageData"`
	CapturedAt  time.Time `json:"capturedAt"`
	Notes       string    `json:"notes"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	SourceTitle string    `json:"sourceTitle,omitempty"`
}

// Validate reports whether r carries the fields required for intake.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("capture: record id is required")
	case r.ImageData == "":
		return fmt.Errorf("capture: record %s: image data is required", r.ID)
	case r.CapturedAt.IsZero():
		return fmt.Errorf("capture: record %s: capturedAt is required", r.ID)
	}
	return nil
}

// Shot is what a Source returns: the raw image and optional provenance.
type Shot struct {
	ImageData string
	URL       string
	Title     string
}

// Request describes one capture. URL names the page to capture (the
// source may ignore it when it tracks an active page itself). A nil
// Region means the whole viewport.
type Request struct {
	URL    string  `json:"url,omitempty"`
	Region *Region `json:"region,omitempty"`
}

// Source acquires an image. Implementations may fail or time out; the
// coordinator maps any error to KindCaptureUnavailable.
type Source interface {
	Capture(ctx context.Context, req Request) (Shot, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, req Request) (Shot, error)

// Capture calls f.
func (f SourceFunc) Capture(ctx context.Context, req Request) (Shot, error) {
	return f(ctx, req)
}
