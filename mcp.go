package noteshot

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/noteshot/capture"
	"github.com/hazyhaar/noteshot/deliver"
	"github.com/hazyhaar/noteshot/idgen"
	"github.com/hazyhaar/noteshot/kit"
	"github.com/hazyhaar/noteshot/region"
)

// RegisterMCP registers the NoteShot tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCaptureTool(srv)
	s.registerListTool(srv)
	s.registerUpdateNotesTool(srv)
	s.registerExportTool(srv)
	s.registerEventsTool(srv)
	s.registerRegionStartTool(srv)
	s.registerCaptureLastRegionTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *Service) wrap(op string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(
		kit.WithRequestIDs(idgen.Prefixed("req_", idgen.Default)),
		kit.Logged(s.logger, op),
	)(e)
}

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- capture ---

type captureRequest struct {
	URL    string          `json:"url,omitempty"`
	Region *capture.Region `json:"region,omitempty"`
}

// captureResponse carries only the coarse trigger statuses: capturing
// or error.
type captureResponse struct {
	Status   region.Status `json:"status"`
	ID       string        `json:"id,omitempty"`
	Location string        `json:"location,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func (s *Service) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_capture",
		Description: "Capture a page (or a region of it) and deliver it to the notes viewer. Status is capturing or error.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page to capture; the current page when omitted"},
			"region": map[string]any{
				"type":        "object",
				"description": "Viewport rectangle in CSS pixels",
				"properties": map[string]any{
					"x":      map[string]any{"type": "number"},
					"y":      map[string]any{"type": "number"},
					"width":  map[string]any{"type": "number"},
					"height": map[string]any{"type": "number"},
				},
			},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*captureRequest)
		if r.Region != nil && !r.Region.Valid() {
			return captureResponse{Status: region.StatusError, Message: region.TooSmallMessage}, nil
		}
		out := s.coord.Capture(ctx, capture.Request{URL: r.URL, Region: r.Region})
		resp := captureResponse{Status: region.StatusCapturing, Location: out.Location}
		if out.Status == deliver.StatusError {
			resp.Status = region.StatusError
		}
		if out.Record != nil {
			resp.ID = out.Record.ID
		}
		return resp, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("capture", endpoint), decodeInto[captureRequest])
}

// --- list ---

type listRequest struct {
	WithImages bool `json:"with_images,omitempty"`
}

type listEntry struct {
	ID          string `json:"id"`
	CapturedAt  string `json:"capturedAt"`
	Notes       string `json:"notes"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	SourceTitle string `json:"sourceTitle,omitempty"`
	ImageData   string `json:"imageData,omitempty"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_list",
		Description: "List stored screenshots in insertion order. Image data is omitted unless with_images is set.",
		InputSchema: inputSchema(map[string]any{
			"with_images": map[string]any{"type": "boolean", "description": "Include the data: URL of each image"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listRequest)
		recs, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]listEntry, 0, len(recs))
		for _, rec := range recs {
			e := listEntry{
				ID:          rec.ID,
				CapturedAt:  rec.CapturedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
				Notes:       rec.Notes,
				SourceURL:   rec.SourceURL,
				SourceTitle: rec.SourceTitle,
			}
			if r.WithImages {
				e.ImageData = rec.ImageData
			}
			out = append(out, e)
		}
		return out, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("list", endpoint), decodeInto[listRequest])
}

// --- update_notes ---

type updateNotesRequest struct {
	ID    string `json:"id"`
	Notes string `json:"notes"`
}

func (s *Service) registerUpdateNotesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_update_notes",
		Description: "Replace the notes attached to a screenshot.",
		InputSchema: inputSchema(map[string]any{
			"id":    map[string]any{"type": "string", "description": "Screenshot ID"},
			"notes": map[string]any{"type": "string", "description": "New notes (plain text or HTML)"},
		}, []string{"id", "notes"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*updateNotesRequest)
		if r.ID == "" {
			return nil, errors.New("id is required")
		}
		_, ok, err := s.store.Get(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("screenshot not found: " + r.ID)
		}
		if err := s.UpdateNotes(ctx, r.ID, r.Notes); err != nil {
			return nil, err
		}
		return map[string]string{"status": "updated", "id": r.ID}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("update_notes", endpoint), decodeInto[updateNotesRequest])
}

// --- export ---

type exportRequest struct{}

type exportResponse struct {
	Name     string `json:"name"`
	Markdown string `json:"markdown"`
}

func (s *Service) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_export",
		Description: "Render every stored screenshot and its notes as one Markdown document.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		doc, err := s.Export(ctx)
		if err != nil {
			return nil, err
		}
		return exportResponse{Name: doc.Name, Markdown: doc.Body}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("export", endpoint), decodeInto[exportRequest])
}

// --- events ---

type eventsRequest struct {
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Service) registerEventsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_events",
		Description: "Recent delivery events, newest first.",
		InputSchema: inputSchema(map[string]any{
			"type":  map[string]any{"type": "string", "enum": []any{"delivered", "capture_failed", "persist_failed", "remote_failed", "region_committed"}, "description": "Filter by event type"},
			"limit": map[string]any{"type": "integer", "description": "Max events (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*eventsRequest)
		if r.Limit <= 0 {
			r.Limit = 20
		}
		return s.Events(ctx, r.Type, r.Limit)
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("events", endpoint), decodeInto[eventsRequest])
}

// --- region ---

type regionRequest struct{}

func (s *Service) registerRegionStartTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_region_start",
		Description: "Start an interactive region selection on the current page.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		st, err := s.selector.Start(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": string(st)}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("region_start", endpoint), decodeInto[regionRequest])
}

func (s *Service) registerCaptureLastRegionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "noteshot_capture_last_region",
		Description: "Capture the last selected region again, or start a selection when none is saved.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		st, err := s.selector.CaptureLast(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": string(st)}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap("capture_last_region", endpoint), decodeInto[regionRequest])
}
