// Package graph provides the rate-governed Meta Graph API client: request
// pacing, bounded retry with backoff, error classification, and cursor-based
// pagination.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/stratdash/meta-insights/pkg/logging"
	"github.com/stratdash/meta-insights/pkg/ratelimit"
)

// DefaultBaseURL is the Graph API endpoint including the pinned version.
const DefaultBaseURL = "https://graph.facebook.com/v21.0"

// Prometheus metrics for Graph client operations.
var (
	graphRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_requests_total",
		Help: "Total Graph API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	graphRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_request_duration_seconds",
		Help:    "Graph API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	graphErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_errors_total",
		Help: "Total Graph API errors by class",
	}, []string{"class"})
)

// TokenProvider resolves an opaque bearer credential for a principal.
// Credential acquisition and storage live outside this module.
type TokenProvider interface {
	Resolve(ctx context.Context, principalID string) (string, error)
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context, principalID string) (string, error)

// Resolve implements TokenProvider.
func (f TokenProviderFunc) Resolve(ctx context.Context, principalID string) (string, error) {
	return f(ctx, principalID)
}

// StaticToken returns a TokenProvider that always yields the given token.
func StaticToken(token string) TokenProvider {
	return TokenProviderFunc(func(context.Context, string) (string, error) {
		return token, nil
	})
}

// RawClient performs a single decoded GET against the remote API. It is the
// narrow seam report assembly depends on, so tests can substitute fakes.
type RawClient interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// ResponseCache memoizes GET response bodies within a session so repeated
// lookups do not spend rate budget. Implemented by pkg/cache.
type ResponseCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Set(ctx context.Context, key string, body json.RawMessage)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Graph API, without trailing slash.
	BaseURL string

	// HTTPTimeout bounds a single request round trip.
	HTTPTimeout time.Duration

	// MinInterval is the governor's inter-request spacing.
	MinInterval time.Duration

	// Retry policy for throttling, server, and transport failures.
	Retry RetryConfig

	// PageSize hint sent as the limit parameter on listing calls.
	PageSize int

	// Cache is the optional response cache. Nil disables caching.
	Cache ResponseCache
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		HTTPTimeout: 30 * time.Second,
		MinInterval: ratelimit.DefaultMinInterval,
		Retry:       DefaultRetryConfig(),
		PageSize:    100,
	}
}

// Client is the rate-governed Graph API client. Exactly one Client (and thus
// one governor) exists per credential session; concurrent workers share it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	governor   *ratelimit.Governor
	retry      RetryConfig
	pageSize   int
	cache      ResponseCache
	logger     zerolog.Logger
}

// NewSession resolves a credential for the principal and builds a client
// around it. A failed resolution surfaces ErrUnauthenticated.
func NewSession(ctx context.Context, cfg Config, provider TokenProvider, principalID string) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no token provider", ErrUnauthenticated)
	}
	token, err := provider.Resolve(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve credential for %q: %v", ErrUnauthenticated, principalID, err)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty credential for %q", ErrUnauthenticated, principalID)
	}
	return New(cfg, token)
}

// New creates a client with an already-resolved bearer token.
func New(cfg Config, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrUnauthenticated)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Retry.BaseBackoff <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := logging.NewLogger("graph-client")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    cfg.BaseURL,
		token:      token,
		governor:   ratelimit.NewGovernor(cfg.MinInterval, logger),
		retry:      cfg.Retry,
		pageSize:   cfg.PageSize,
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// Get performs a governed GET against a Graph path (for example
// "act_123/insights") and returns the raw response body. Throttling, server,
// and transport failures are retried per the client's policy; any other
// non-200 fails immediately with an APIError.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	query := url.Values{}
	for key, vals := range params {
		query[key] = vals
	}

	cacheKey := path + "?" + query.Encode()
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, cacheKey); ok {
			c.logger.Debug().Str("endpoint", path).Msg("Response cache hit")
			return body, nil
		}
	}

	query.Set("access_token", c.token)
	rawURL := c.baseURL + "/" + path + "?" + query.Encode()

	body, err := c.do(ctx, rawURL, path)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, body)
	}
	return body, nil
}

// getURL performs a governed GET against an absolute URL, used to follow
// next-page cursors. Cursor URLs already embed the access token and are never
// cached; they are consumed once and discarded.
func (c *Client) getURL(ctx context.Context, rawURL string) (json.RawMessage, error) {
	endpoint := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		endpoint = parsed.Path
	}
	return c.do(ctx, rawURL, endpoint)
}

// do issues one logical request through the governor and retry loop.
func (c *Client) do(ctx context.Context, rawURL, endpoint string) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		graphRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var body json.RawMessage

	err := retryWithBackoff(ctx, c.retry, func() (ErrorClass, error) {
		if err := c.governor.Wait(ctx); err != nil {
			// Cancellation, not a remote failure: class "" exits the loop.
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Transport failure")
			graphErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			graphRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return ErrorClassNetwork, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			graphErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return ErrorClassNetwork, fmt.Errorf("read response body: %w", err)
		}

		graphRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusOK {
			body = data
			return "", nil
		}

		class, message := classifyStatus(resp.StatusCode, data)
		graphErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("message", message).
			Msg("Graph API request error")

		return class, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    message,
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
