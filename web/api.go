package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "web: list failed", "error", err)
		jsonErr(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		jsonErr(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonErr(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonErr(w, "invalid body", http.StatusBadRequest)
		return
	}
	if _, ok, err := s.store.Get(r.Context(), id); err != nil {
		jsonErr(w, "store unavailable", http.StatusInternalServerError)
		return
	} else if !ok {
		jsonErr(w, "not found", http.StatusNotFound)
		return
	}

	// Notes are free text; the viewer template escapes them and the
	// exporter sanitizes the HTML ones.
	notes := req.Notes
	if err := s.store.UpdateNotes(r.Context(), id, notes); err != nil {
		s.logger.ErrorContext(r.Context(), "web: update notes failed", "id", id, "error", err)
		jsonErr(w, "failed to save notes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id, "notes": notes})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "web: reset failed", "error", err)
		jsonErr(w, "failed to reset", http.StatusInternalServerError)
		return
	}
	s.logger.InfoContext(r.Context(), "web: store reset")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.exporter.Export(r.Context(), s.store, s.now())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "web: export failed", "error", err)
		jsonErr(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.Write([]byte(doc.Body))
}
