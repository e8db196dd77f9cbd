package connectivity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBody caps how much of a remote response is read (1 MiB);
// intake answers are small JSON documents.
const maxResponseBody int64 = 1 << 20

// HTTPHandler returns a Handler that POSTs the payload as JSON to
// endpoint. Non-2xx answers become *ErrStatus. A nil client means
// http.DefaultClient; per-call deadlines come from the context.
func HTTPHandler(endpoint string, client *http.Client) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("connectivity/http: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("connectivity/http: do request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("connectivity/http: read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &ErrStatus{Endpoint: endpoint, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		}
		return body, nil
	}
}
