package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// HTTPTransport posts requests as JSON.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates an HTTP transport. A non-nil token source adds a
// bearer token to every request.
func NewHTTPTransport(ctx context.Context, endpoint string, tokens oauth2.TokenSource, timeout time.Duration) *HTTPTransport {
	client := &http.Client{Timeout: timeout}
	if tokens != nil {
		client = oauth2.NewClient(ctx, tokens)
		client.Timeout = timeout
	}
	return &HTTPTransport{endpoint: endpoint, client: client}
}

func (t *HTTPTransport) Name() string   { return TransportHTTPS }
func (t *HTTPTransport) Method() string { return http.MethodPost }
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// Do posts req and decodes the response body.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.ID != "" {
		httpReq.Header.Set("X-Request-Id", req.ID)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", req.OperationName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var out Response
		if json.Unmarshal(data, &out) == nil && len(out.Errors) > 0 {
			return &out, nil
		}
		return nil, fmt.Errorf("post %s: unexpected status %d", req.OperationName, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
