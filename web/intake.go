package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/hazyhaar/noteshot/capture"
)

// pendingSlot holds the last record received by the intake until a
// viewer picks it up. Take empties it, so each record is handed out at
// most once.
type pendingSlot struct {
	mu  sync.Mutex
	rec *capture.Record
}

func (p *pendingSlot) put(rec capture.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec = &rec
}

func (p *pendingSlot) take() (capture.Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec == nil {
		return capture.Record{}, false
	}
	rec := *p.rec
	p.rec = nil
	return rec, true
}

type intakeResponse struct {
	Success      bool   `json:"success"`
	ViewLocation string `json:"viewLocation"`
	ID           string `json:"id"`
}

// handleIntake accepts one record: POST /note.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var rec capture.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&rec); err != nil {
		jsonErr(w, "invalid record", http.StatusBadRequest)
		return
	}
	if err := rec.Validate(); err != nil {
		jsonErr(w, "invalid record", http.StatusBadRequest)
		return
	}

	added, err := s.store.AppendIfAbsent(r.Context(), rec)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "web: intake store failed", "id", rec.ID, "error", err)
		jsonErr(w, "failed to store record", http.StatusInternalServerError)
		return
	}
	s.pending.put(rec)
	s.logger.InfoContext(r.Context(), "web: intake received", "id", rec.ID, "new", added)

	writeJSON(w, http.StatusOK, intakeResponse{
		Success:      true,
		ViewLocation: s.ViewLocation(rec.ID),
		ID:           rec.ID,
	})
}

// handlePending hands the pending record out once: GET /note.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.pending.take()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "no record available"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "record": rec})
}
