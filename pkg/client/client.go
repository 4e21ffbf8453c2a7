// Package client provides the upstream HTTP client that fetches single pages
// of SWAPI-style resource collections, with request pacing, an optional
// shared error budget, and Prometheus instrumentation.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/swapi-aggregator/pkg/logging"
	"github.com/Sternrassler/swapi-aggregator/pkg/swapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxBodySize caps how much of an upstream response body is read.
const maxBodySize = 10 << 20

// Prometheus metrics for upstream client operations.
var (
	swapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_requests_total",
		Help: "Total upstream requests by collection and status",
	}, []string{"collection", "status"})

	swapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_request_duration_seconds",
		Help:    "Upstream request duration in seconds by collection",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"collection"})

	swapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Budget gates upstream requests on a shared failure budget.
// *ratelimit.Tracker implements it.
type Budget interface {
	ShouldAllowRequest(ctx context.Context) (bool, error)
	RecordFailure(ctx context.Context) error
	UpdateFromHeaders(ctx context.Context, headers http.Header) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream API, e.g. "https://swapi.dev/api".
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout for a single HTTP request.
	Timeout time.Duration

	// RateLimit is the outbound request rate in requests per second (0 = unlimited).
	RateLimit float64

	// RateBurst is the token bucket size for RateLimit.
	RateBurst int

	// Budget is an optional shared error budget. Nil disables gating.
	Budget Budget
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		RateLimit: 20,
		RateBurst: 10,
	}
}

// Client fetches pages from the upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	budget     Budget
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
		budget:  cfg.Budget,
		config:  cfg,
		logger:  logging.NewLogger("swapi-client"),
	}, nil
}

// FetchPage fetches one page (1-based) of a collection.
func (c *Client) FetchPage(ctx context.Context, collection string, page int) (*swapi.Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	body, err := c.get(ctx, collection, page, query)
	if err != nil {
		return nil, err
	}

	result, err := swapi.DecodePage(body)
	if err != nil {
		return nil, c.decodeError(collection, page, err)
	}

	c.logger.Debug().
		Str("collection", collection).
		Int("page", page).
		Int("results", len(result.Results)).
		Bool("has_next", result.HasNext).
		Msg("Fetched page")

	return result, nil
}

// Search returns the first page of entities in collection matching term.
func (c *Client) Search(ctx context.Context, collection, term string) ([]swapi.Entity, error) {
	query := url.Values{}
	query.Set("search", term)

	body, err := c.get(ctx, collection, 0, query)
	if err != nil {
		return nil, err
	}

	result, err := swapi.DecodePage(body)
	if err != nil {
		return nil, c.decodeError(collection, 0, err)
	}

	c.logger.Debug().
		Str("collection", collection).
		Str("term", term).
		Int("results", len(result.Results)).
		Msg("Search complete")

	return result.Results, nil
}

// get performs a GET against {base}/{collection}/ and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, collection string, page int, query url.Values) ([]byte, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	startTime := time.Now()
	defer func() {
		swapiRequestDuration.WithLabelValues(collection).Observe(time.Since(startTime).Seconds())
	}()

	if c.budget != nil {
		allowed, err := c.budget.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Error budget check failed")
			return nil, fmt.Errorf("error budget check: %w", err)
		}
		if !allowed {
			swapiRequestsTotal.WithLabelValues(collection, "blocked").Inc()
			swapiErrorsTotal.WithLabelValues(string(ErrorClassBlocked)).Inc()
			c.logger.Warn().Str("collection", collection).Msg("Request blocked by error budget")
			return nil, &UpstreamError{
				Collection: collection,
				Page:       page,
				ErrorClass: ErrorClassBlocked,
				Message:    "error budget exhausted",
				Err:        ErrRequestBlocked,
			}
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(ctx, collection, page, 0, ErrorClassNetwork, "rate limiter wait", err)
	}

	// SWAPI redirects collection URLs without a trailing slash.
	endpoint := c.baseURL.JoinPath(collection)
	endpoint.Path += "/"
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("collection", collection).
		Str("url", endpoint.String()).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		swapiRequestsTotal.WithLabelValues(collection, "network_error").Inc()
		return nil, c.fail(ctx, collection, page, 0, ErrorClassNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if c.budget != nil {
		if err := c.budget.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update error budget from headers")
		}
	}

	swapiRequestsTotal.WithLabelValues(collection, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, c.fail(ctx, collection, page, resp.StatusCode, class, resp.Status, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.fail(ctx, collection, page, resp.StatusCode, ErrorClassNetwork, "read response body", err)
	}

	return body, nil
}

// fail builds an UpstreamError, records it, and charges the error budget.
func (c *Client) fail(ctx context.Context, collection string, page, status int, class ErrorClass, msg string, err error) *UpstreamError {
	swapiErrorsTotal.WithLabelValues(string(class)).Inc()

	c.logger.Warn().
		Err(err).
		Str("collection", collection).
		Int("page", page).
		Int("status", status).
		Str("error_class", string(class)).
		Msg("Upstream request error")

	// Requests cancelled by the caller say nothing about upstream health.
	if c.budget != nil && countsAgainstBudget(class) && !errors.Is(ctx.Err(), context.Canceled) {
		if recErr := c.budget.RecordFailure(context.WithoutCancel(ctx)); recErr != nil {
			c.logger.Warn().Err(recErr).Msg("Failed to record upstream failure")
		}
	}

	return &UpstreamError{
		Collection: collection,
		Page:       page,
		StatusCode: status,
		ErrorClass: class,
		Message:    msg,
		Err:        err,
	}
}

func (c *Client) decodeError(collection string, page int, err error) *UpstreamError {
	swapiErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
	c.logger.Warn().
		Err(err).
		Str("collection", collection).
		Int("page", page).
		Msg("Malformed upstream payload")

	return &UpstreamError{
		Collection: collection,
		Page:       page,
		StatusCode: http.StatusOK,
		ErrorClass: ErrorClassDecode,
		Message:    "malformed payload",
		Err:        err,
	}
}

// classifyStatus returns the error class for a non-success status, or "" for 2xx.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}
