package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rshade/lcamatch/internal/logging"
)

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 512

// StatusError is a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// HTTPClient performs JSON GET requests with a per-request timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
	header  http.Header
}

// NewHTTPClient creates a client. A nil client selects a new http.Client.
// header is sent with every request.
func NewHTTPClient(client *http.Client, timeout time.Duration, header http.Header) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	h := http.Header{"Accept": []string{"application/json"}}
	for k, vs := range header {
		h[k] = append([]string(nil), vs...)
	}
	return &HTTPClient{client: client, timeout: timeout, header: h}
}

// BearerHeader returns an Authorization header for token, or nil when the
// token is empty.
func BearerHeader(token string) http.Header {
	if token == "" {
		return nil
	}
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header = c.header.Clone()

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "source").
		Str("operation", "http_get").
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream response")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
