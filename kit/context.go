package kit

import "context"

// Transport names reported by GetTransport.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
	TransportCLI  = "cli"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
)

// WithTransport records which surface a call came from.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey, transport)
}

// GetTransport returns the recorded surface, TransportHTTP when unset.
func GetTransport(ctx context.Context) string {
	if t, ok := ctx.Value(transportKey).(string); ok && t != "" {
		return t
	}
	return TransportHTTP
}

// WithRequestID tags ctx with a request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
