package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kzharvest/harvester/pkg/record"
)

// DefaultURLTemplate addresses a single record on the KZ global API.
const DefaultURLTemplate = "https://kztimerglobal.com/api/v2/records/{id}"

const idPlaceholder = "{id}"

// APIError represents a non-2xx response other than 404.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client fetches records over HTTP. It is safe for concurrent use, so both
// scanners can share one Client and its rate ceiling.
type Client struct {
	urlTemplate string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout. 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps requests per second across every caller of the Client.
// rps <= 0 leaves requests unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a Client. urlTemplate must contain "{id}"; when it does
// not, the ID is appended as a final path segment.
func NewClient(urlTemplate string, opts ...Option) *Client {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	c := &Client{
		urlTemplate: urlTemplate,
		userAgent:   "kz-record-harvester",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the request URL for id.
func (c *Client) URL(id uint64) string {
	s := strconv.FormatUint(id, 10)
	if strings.Contains(c.urlTemplate, idPlaceholder) {
		return strings.ReplaceAll(c.urlTemplate, idPlaceholder, s)
	}
	return strings.TrimRight(c.urlTemplate, "/") + "/" + s
}

// Fetch issues one GET for id and classifies the response.
func (c *Client) Fetch(ctx context.Context, id uint64) Outcome {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return TransportOutcome(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(id), nil)
	if err != nil {
		return TransportOutcome(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TransportOutcome(fmt.Errorf("get record %d: %w", id, err))
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return TransportOutcome(fmt.Errorf("read record %d: %w", id, err))
	}

	if resp.StatusCode == http.StatusNotFound {
		return NotFoundOutcome()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		return TransportOutcome(&APIError{StatusCode: resp.StatusCode, Body: bodyStr})
	}

	rec, err := record.Decode(body)
	if errors.Is(err, record.ErrAbsent) {
		return NotFoundOutcome()
	}
	if err != nil {
		return TransportOutcome(fmt.Errorf("record %d: %w", id, err))
	}
	return FoundOutcome(rec)
}
