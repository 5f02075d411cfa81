// Package figma is the design-file API client: document and node lookups,
// image rendering, team/project/file listings and OAuth.
package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the design API.
	DefaultBaseURL = "https://api.figma.com/v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultNodeBatchSize keeps /nodes payloads under the API size limits.
	DefaultNodeBatchSize = 35

	// DefaultImageBatchSize keeps /images URLs short enough.
	DefaultImageBatchSize = 40

	// DefaultConcurrency is the number of batch requests in flight per call.
	DefaultConcurrency = 4
)

// Client is a design API client. Tokens are passed per call since they
// belong to the caller of each run.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
	retry          *RetryPolicy
	nodeBatchSize  int
	imageBatchSize int
	concurrency    int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the minimum interval between requests. Zero disables limiting.
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithBatchSizes sets the node and image batch sizes.
func WithBatchSizes(nodes, images int) ClientOption {
	return func(c *Client) {
		if nodes > 0 {
			c.nodeBatchSize = nodes
		}
		if images > 0 {
			c.imageBatchSize = images
		}
	}
}

// WithConcurrency sets how many batch requests may run at once.
func WithConcurrency(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a new design API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:         arbor.NewLogger(),
		limiter:        rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		retry:          NewRetryPolicy(),
		nodeBatchSize:  DefaultNodeBatchSize,
		imageBatchSize: DefaultImageBatchSize,
		concurrency:    DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an HTTP error from the design API.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("figma API error %d for %s: %s", e.StatusCode, e.Endpoint, body)
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// getJSON performs an authenticated GET with retries and decodes the body into result.
func (c *Client) getJSON(ctx context.Context, token, path string, params url.Values, result interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	return c.retry.Do(ctx, c.logger, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().
			Str("path", path).
			Int("ids", countIDs(params)).
			Msg("Figma API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Body:       string(body),
				Endpoint:   path,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Str("path", path).
				Msg("Figma API error response")
			return apiErr
		}

		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
			c.logger.Debug().Str("remaining", remaining).Str("path", path).Msg("Figma rate limit")
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
}

func countIDs(params url.Values) int {
	ids := params.Get("ids")
	if ids == "" {
		return 0
	}
	return strings.Count(ids, ",") + 1
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
