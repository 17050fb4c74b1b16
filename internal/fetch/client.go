// Package fetch retrieves reference lists from the reference service and
// classifies failures into the messages shown to readers.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/DeafMist/reflink/backend/internal/models"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the number of requests per second sent upstream.
	DefaultRateLimit = 20.0
)

// Client fetches reference lists for documents. It does not retry.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	hostname   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps outbound requests per second. Non-positive values
// disable limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a client for the reference service at hostname
// (host[:port], no scheme).
func NewClient(hostname string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		hostname:   hostname,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hostname is the host the client fetches from.
func (c *Client) Hostname() string {
	return c.hostname
}

// ListURL is the endpoint serving a document's references.
func (c *Client) ListURL(documentID string) string {
	return "http://" + c.hostname + "/references/" + documentID
}

// Fetch loads the reference list for documentID.
func (c *Client) Fetch(ctx context.Context, documentID string) (*models.ReferenceList, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ListURL(documentID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, DocumentID: documentID}
	}

	var list models.ReferenceList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &list, nil
}
