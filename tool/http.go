package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; accountplan-research/1.0)"
	maxBodyBytes     = 4 << 20
)

// HTTPOptions are shared by the HTTP backed adapters.
type HTTPOptions struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
}

func (o *HTTPOptions) defaults(baseURL string) {
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
}

// fetch performs a GET and returns the body. Non 2xx responses become a
// ToolError coded with the status.
func fetch(ctx context.Context, name string, o HTTPOptions, url, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &ToolError{Tool: name, Message: err.Error(), Code: "request", Err: err}
	}
	req.Header.Set("User-Agent", o.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, 0, &ToolError{Tool: name, Message: err.Error(), Code: "transport", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &ToolError{Tool: name, Message: err.Error(), Code: "read", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Code:    fmt.Sprintf("http_%d", resp.StatusCode),
		}
	}
	return body, resp.StatusCode, nil
}
