// Package export renders the note store as a single Markdown document.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/noteshot/capture"
)

const (
	// ContentType of an exported document.
	ContentType = "text/markdown; charset=utf-8"

	// TimeLayout formats export and capture times.
	TimeLayout = "2006-01-02 15:04:05"

	EmptyNotes = "*No notes added for this screenshot.*"
	EmptyStore = "*No screenshots captured yet.*"
)

var htmlTag = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// Lister is the read side of the note store.
type Lister interface {
	ListAll(ctx context.Context) ([]capture.Record, error)
}

// Document is a rendered export.
type Document struct {
	Name        string
	ContentType string
	Body        string
}

// Exporter renders records. It holds no state besides its converters
// and is safe for concurrent use.
type Exporter struct {
	loc    *time.Location
	md     *converter.Converter
	policy *bluemonday.Policy
	logger *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLocation sets the zone timestamps are printed in. Default: local.
func WithLocation(loc *time.Location) Option {
	return func(e *Exporter) { e.loc = loc }
}

// WithLogger sets the exporter logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// New returns an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		loc: time.Local,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export reads every record from l and renders it at now.
func (e *Exporter) Export(ctx context.Context, l Lister, now time.Time) (Document, error) {
	recs, err := l.ListAll(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export: list: %w", err)
	}
	return Document{
		Name:        Filename(now),
		ContentType: ContentType,
		Body:        e.Markdown(recs, now),
	}, nil
}

// Markdown renders recs oldest first. recs is not modified.
func (e *Exporter) Markdown(recs []capture.Record, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# NoteShot Export\n\nExported on %s\n\n", now.In(e.loc).Format(TimeLayout))

	if len(recs) == 0 {
		b.WriteString(EmptyStore + "\n")
		return b.String()
	}

	sorted := slices.Clone(recs)
	slices.SortStableFunc(sorted, func(a, b capture.Record) int {
		return a.CapturedAt.Compare(b.CapturedAt)
	})

	for _, r := range sorted {
		fmt.Fprintf(&b, "## Screenshot - %s", r.CapturedAt.In(e.loc).Format(TimeLayout))
		if r.SourceTitle != "" {
			fmt.Fprintf(&b, "\nFrom: [%s](%s)\n", r.SourceTitle, r.SourceURL)
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "![Screenshot](%s)\n\n", r.ImageData)

		if notes := e.notes(r); notes != "" {
			b.WriteString(notes + "\n\n")
		} else {
			b.WriteString(EmptyNotes + "\n\n")
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

// notes returns the record notes as Markdown. Rich editor output is
// sanitized and converted; plain text passes through.
func (e *Exporter) notes(r capture.Record) string {
	text := strings.TrimSpace(r.Notes)
	if text == "" || !htmlTag.MatchString(text) {
		return text
	}
	md, err := e.md.ConvertString(e.policy.Sanitize(text))
	if err != nil {
		e.logger.Warn("export: html notes conversion failed", "id", r.ID, "error", err)
		return text
	}
	return strings.TrimSpace(md)
}

// Filename is the download name for an export made at now.
func Filename(now time.Time) string {
	return "noteshot-export-" + now.UTC().Format("2006-01-02") + ".md"
}
