package web

import (
	"embed"
	"html/template"
	"net/http"
	"slices"
	"strings"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/export"
)

//go:embed templates
var templateFS embed.FS

var viewerTmpl = template.Must(template.New("viewer.html").Funcs(template.FuncMap{
	"imgsrc": imageSource,
}).ParseFS(templateFS, "templates/viewer.html"))

// imageSource lets data:image URLs through html/template; anything else
// is blanked.
func imageSource(data string) template.URL {
	if strings.HasPrefix(data, "data:image/") {
		return template.URL(data)
	}
	return ""
}

type pageRecord struct {
	capture.Record
	When      string
	Highlight bool
}

type pageData struct {
	Records   []pageRecord
	Highlight string
}

// handleViewer renders the canonical viewer: GET /?id=<highlight>.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "web: viewer load failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	highlight := r.URL.Query().Get("id")
	data := pageData{Highlight: highlight, Records: presentationOrder(recs, highlight)}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewerTmpl.Execute(w, data); err != nil {
		s.logger.ErrorContext(r.Context(), "web: render viewer", "error", err)
	}
}

// presentationOrder sorts oldest first and drops repeated ids.
func presentationOrder(recs []capture.Record, highlight string) []pageRecord {
	sorted := slices.Clone(recs)
	slices.SortStableFunc(sorted, func(a, b capture.Record) int {
		return a.CapturedAt.Compare(b.CapturedAt)
	})
	out := make([]pageRecord, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, rec := range sorted {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, pageRecord{
			Record:    rec,
			When:      rec.CapturedAt.Local().Format(export.TimeLayout),
			Highlight: rec.ID == highlight,
		})
	}
	return out
}
