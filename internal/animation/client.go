package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

var (
	// ErrBadStatus is returned for any non-2xx response.
	ErrBadStatus = errors.New("render service returned a failure status")

	// ErrMalformedResponse is returned when a 2xx body has no usable video_url.
	ErrMalformedResponse = errors.New("malformed render response")
)

// Client posts animation requests to the render service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the render service at baseURL. Rendering a
// long range can take minutes, so timeout should be generous.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}
}

// BaseURL returns the render service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate sends exactly one request and returns the video location.
func (c *Client) Generate(ctx context.Context, r Request) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read render response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure Response
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			return "", fmt.Errorf("%w: HTTP %d: %s", ErrBadStatus, resp.StatusCode, failure.Error)
		}
		return "", fmt.Errorf("%w: HTTP %d", ErrBadStatus, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.VideoURL == "" {
		return "", fmt.Errorf("%w: missing video_url", ErrMalformedResponse)
	}

	return out.VideoURL, nil
}
