package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 5 * time.Second
	defaultHeader  = "x-api-key"

	// maxErrorBody bounds how much of an error response is kept for the log.
	maxErrorBody = 512
)

// ErrRejected wraps 4xx responses from the ingest endpoint.
var ErrRejected = errors.New("shipper: reading rejected")

// Reading is one simulated device message.
type Reading struct {
	DeviceID int64 `json:"device_id"`
	FieldA   int   `json:"field_a"`
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in header on every request. An empty header uses
// "x-api-key".
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		if header == "" {
			header = defaultHeader
		}
		c.header, c.key = header, key
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client posts readings to one endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	header   string
	key      string
}

// New returns a Client posting to endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
		header:   defaultHeader,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the ingest URL readings are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Post sends r and returns nil once the endpoint answers 2xx.
func (c *Client) Post(ctx context.Context, r Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("shipper: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shipper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set(c.header, c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("shipper: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return fmt.Errorf("shipper: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
}

// IsPermanent reports whether err means resending the same reading cannot
// succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRejected)
}
