package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/noteshot/capture"
)

var exportedAt = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newExporter() *Exporter { return New(WithLocation(time.UTC)) }

func TestMarkdown_EmptyStore(t *testing.T) {
	got := newExporter().Markdown(nil, exportedAt)
	want := "# NoteShot Export\n\nExported on 2026-03-02 09:30:00\n\n*No screenshots captured yet.*\n"
	if got != want {
		t.Fatalf("empty export:\ngot  %q\nwant %q", got, want)
	}
}

func TestMarkdown_SectionsOldestFirst(t *testing.T) {
	recs := []capture.Record{
		{
			ID:          "shot_b",
			ImageData:   "data:image/png;base64,BBBB",
			CapturedAt:  time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
			Notes:       "second",
			SourceURL:   "https://example.com/b",
			SourceTitle: "Page B",
		},
		{
			ID:         "shot_a",
			ImageData:  "data:image/png;base64,AAAA",
			CapturedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	got := newExporter().Markdown(recs, exportedAt)
	want := "# NoteShot Export\n\nExported on 2026-03-02 09:30:00\n\n" +
		"## Screenshot - 2026-03-01 10:00:00\n\n" +
		"![Screenshot](data:image/png;base64,AAAA)\n\n" +
		"*No notes added for this screenshot.*\n\n" +
		"---\n\n" +
		"## Screenshot - 2026-03-01 11:00:00\nFrom: [Page B](https://example.com/b)\n\n\n" +
		"![Screenshot](data:image/png;base64,BBBB)\n\n" +
		"second\n\n" +
		"---\n\n"
	if got != want {
		t.Fatalf("export:\ngot  %q\nwant %q", got, want)
	}
	if recs[0].ID != "shot_b" {
		t.Fatal("input slice reordered")
	}
}

func TestMarkdown_WhitespaceNotesArePlaceholder(t *testing.T) {
	recs := []capture.Record{{ID: "x", ImageData: "d", CapturedAt: exportedAt, Notes: "  \n "}}
	got := newExporter().Markdown(recs, exportedAt)
	if !strings.Contains(got, EmptyNotes) {
		t.Fatalf("placeholder missing:\n%s", got)
	}
}

func TestMarkdown_HTMLNotesConverted(t *testing.T) {
	recs := []capture.Record{{
		ID:         "x",
		ImageData:  "d",
		CapturedAt: exportedAt,
		Notes:      `<p>Look at <strong>this</strong></p><script>alert(1)</script>`,
	}}
	got := newExporter().Markdown(recs, exportedAt)
	if !strings.Contains(got, "Look at **this**") {
		t.Fatalf("html not converted:\n%s", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "<script") {
		t.Fatalf("script survived:\n%s", got)
	}
}

func TestMarkdown_PlainNotesUntouched(t *testing.T) {
	notes := "a < b and c > d, *kept as is*"
	recs := []capture.Record{{ID: "x", ImageData: "d", CapturedAt: exportedAt, Notes: notes}}
	got := newExporter().Markdown(recs, exportedAt)
	if !strings.Contains(got, notes) {
		t.Fatalf("plain notes changed:\n%s", got)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(exportedAt); got != "noteshot-export-2026-03-02.md" {
		t.Fatalf("filename: %q", got)
	}
}

type listerFunc func(context.Context) ([]capture.Record, error)

func (f listerFunc) ListAll(ctx context.Context) ([]capture.Record, error) { return f(ctx) }

func TestExport_Document(t *testing.T) {
	doc, err := newExporter().Export(context.Background(), listerFunc(func(context.Context) ([]capture.Record, error) {
		return nil, nil
	}), exportedAt)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ContentType != ContentType || doc.Name != "noteshot-export-2026-03-02.md" {
		t.Fatalf("document: %+v", doc)
	}
	if !strings.Contains(doc.Body, EmptyStore) {
		t.Fatalf("body: %q", doc.Body)
	}
}

func TestExport_ListError(t *testing.T) {
	boom := errors.New("disk")
	_, err := newExporter().Export(context.Background(), listerFunc(func(context.Context) ([]capture.Record, error) {
		return nil, boom
	}), exportedAt)
	if !errors.Is(err, boom) {
		t.Fatalf("error: %v", err)
	}
}
