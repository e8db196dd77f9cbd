package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/deliver"
	"github.com/hazyhaar/noteshot/region"
)

const statusCapturing = "capturing"

// triggerResponse carries only coarse statuses: capturing, selecting,
// already_selecting or error.
type triggerResponse struct {
	Status   string          `json:"status"`
	ID       string          `json:"id,omitempty"`
	Location string          `json:"location,omitempty"`
	Region   *capture.Region `json:"region,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// handleCapture captures a page: POST /api/capture {"url": "..."}.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.capturer == nil {
		jsonErr(w, "capture not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		URL    string          `json:"url"`
		Region *capture.Region `json:"region,omitempty"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonErr(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Region != nil {
		if err := req.Region.Check(); err != nil {
			writeJSON(w, http.StatusOK, triggerResponse{Status: string(region.StatusError), Message: region.TooSmallMessage})
			return
		}
	}

	out := s.capturer.Capture(r.Context(), capture.Request{URL: req.URL, Region: req.Region})
	resp := triggerResponse{Status: statusCapturing, Location: out.Location}
	if out.Status == deliver.StatusError {
		resp.Status = string(region.StatusError)
	}
	if out.Record != nil {
		resp.ID = out.Record.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegionStart(w http.ResponseWriter, r *http.Request) {
	if s.selector == nil {
		jsonErr(w, "region selection not available", http.StatusServiceUnavailable)
		return
	}
	st, err := s.selector.Start(r.Context())
	if err != nil {
		s.logger.WarnContext(r.Context(), "web: region start failed", "error", err)
	}
	writeJSON(w, http.StatusOK, triggerResponse{Status: string(st)})
}

type pointerRequest struct {
	Type string  `json:"type"` // down, move, up
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (s *Server) handleRegionPointer(w http.ResponseWriter, r *http.Request) {
	if s.selector == nil {
		jsonErr(w, "region selection not available", http.StatusServiceUnavailable)
		return
	}
	var p pointerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&p); err != nil {
		jsonErr(w, "invalid body", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	switch p.Type {
	case "down":
		if err := s.selector.PointerDown(ctx, p.X, p.Y); err != nil {
			jsonErr(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, triggerResponse{Status: string(region.StatusSelecting)})
	case "move":
		rect, err := s.selector.PointerMove(ctx, p.X, p.Y)
		if err != nil {
			jsonErr(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, triggerResponse{Status: string(region.StatusSelecting), Region: &rect})
	case "up":
		rect, st, err := s.selector.PointerUp(ctx, p.X, p.Y)
		switch {
		case errors.Is(err, region.ErrNotDragging):
			jsonErr(w, err.Error(), http.StatusConflict)
		case errors.Is(err, capture.ErrSelectionTooSmall):
			writeJSON(w, http.StatusOK, triggerResponse{Status: string(st), Region: &rect, Message: region.TooSmallMessage})
		default:
			writeJSON(w, http.StatusOK, triggerResponse{Status: string(st), Region: &rect})
		}
	default:
		jsonErr(w, "type must be down, move or up", http.StatusBadRequest)
	}
}

func (s *Server) handleRegionCancel(w http.ResponseWriter, r *http.Request) {
	if s.selector == nil {
		jsonErr(w, "region selection not available", http.StatusServiceUnavailable)
		return
	}
	s.selector.Cancel(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegionLast(w http.ResponseWriter, r *http.Request) {
	if s.selector == nil {
		jsonErr(w, "region selection not available", http.StatusServiceUnavailable)
		return
	}
	st, err := s.selector.CaptureLast(r.Context())
	if err != nil {
		s.logger.WarnContext(r.Context(), "web: capture last region failed", "error", err)
	}
	writeJSON(w, http.StatusOK, triggerResponse{Status: string(st)})
}
