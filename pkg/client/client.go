// Package client provides the GraphQL-over-HTTP client for the shop admin API
// with throttle tracking, retries and a typed error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for shop API operations.
var (
	shopRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_requests_total",
		Help: "Total shop API requests by operation and status",
	}, []string{"operation", "status"})

	shopRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shop_request_duration_seconds",
		Help:    "Shop API request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	shopErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_errors_total",
		Help: "Total shop API errors by class",
	}, []string{"class"})

	shopRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	shopRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// AccessTokenHeader carries the static admin API token.
const AccessTokenHeader = "X-Shopify-Access-Token"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// Request is the JSON body sent to the GraphQL endpoint.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Extensions is the extensions block of a response.
type Extensions struct {
	Cost *ratelimit.Cost `json:"cost,omitempty"`
}

// Response is a decoded GraphQL response.
type Response struct {
	Data       json.RawMessage `json:"data"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions *Extensions     `json:"extensions,omitempty"`
}

// Client talks to the shop GraphQL admin API.
type Client struct {
	httpClient *http.Client
	throttle   *ratelimit.Tracker
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// ShopName is the shop identifier used to build the endpoint host.
	ShopName string

	// APIVersion is the admin API version, e.g. "2024-01".
	APIVersion string

	// AccessToken is sent in the X-Shopify-Access-Token header.
	AccessToken string

	// BaseURL replaces https://{ShopName}.myshopify.com when set (tests, proxies).
	BaseURL string

	// Redis enables shared throttle tracking when set.
	Redis *redis.Client

	// UserAgent header.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry overrides; zero values keep the per-class defaults.
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultConfig returns a default configuration for the given shop.
func DefaultConfig(shopName, apiVersion, accessToken string) Config {
	return Config{
		ShopName:    shopName,
		APIVersion:  apiVersion,
		AccessToken: accessToken,
		UserAgent:   "shop-order-export/1.0",
		Timeout:     30 * time.Second,
	}
}

// New creates a new shop client.
func New(cfg Config) (*Client, error) {
	if cfg.ShopName == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("shop name is required")
	}
	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("api version is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "shop-client").Logger()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   buildEndpoint(cfg),
		config:     cfg,
		logger:     logger,
	}
	if cfg.Redis != nil {
		c.throttle = ratelimit.NewTracker(cfg.Redis, logger)
	}
	return c, nil
}

func buildEndpoint(cfg Config) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		host := cfg.ShopName
		if !strings.Contains(host, ".") {
			host += ".myshopify.com"
		}
		base = "https://" + host
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, cfg.APIVersion)
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Query posts query and decodes the response. operation labels metrics and logs.
//
// Errors are *TransportError, *QueryError or *DecodeError, possibly wrapped by
// ErrRetryExhausted or ErrContextCancelled. On a *QueryError the decoded
// response is returned alongside the error.
func (c *Client) Query(ctx context.Context, operation, query string) (*Response, error) {
	startTime := time.Now()
	defer func() {
		shopRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	body, err := json.Marshal(Request{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp *Response
	var lastErr error

	retryErr := retryWithBackoff(ctx, c.logger, c.retryConfig, func() (ErrorClass, error) {
		var class ErrorClass
		resp, class, lastErr = c.attempt(ctx, operation, body)
		if lastErr != nil {
			shopErrorsTotal.WithLabelValues(string(class)).Inc()
		}
		return class, lastErr
	})
	if retryErr != nil {
		if _, ok := lastErr.(*QueryError); ok && retryErr == lastErr {
			return resp, retryErr
		}
		return nil, retryErr
	}
	return resp, nil
}

// attempt performs a single round trip.
func (c *Client) attempt(ctx context.Context, operation string, body []byte) (*Response, ErrorClass, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ErrorClassNetwork, err
			}
			// Redis trouble must not stop the export.
			c.logger.Warn().Err(err).Msg("Throttle check failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ErrorClassClient, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(AccessTokenHeader, c.config.AccessToken)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("operation", operation).
		Int("bytes", len(body)).
		Msg("Executing shop query")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("HTTP request failed")
		shopRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		return nil, ErrorClassNetwork, &TransportError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer httpResp.Body.Close()

	shopRequestsTotal.WithLabelValues(operation, strconv.Itoa(httpResp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, ErrorClassNetwork, &TransportError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	if httpResp.StatusCode >= 400 {
		class := classifyStatus(httpResp.StatusCode)
		c.logger.Warn().
			Str("operation", operation).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(class)).
			Msg("Shop request error")
		return nil, class, &TransportError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: class,
			Message:    httpResp.Status,
		}
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, ErrorClassDecode, &DecodeError{Snippet: snippet(raw), Err: err}
	}

	if c.throttle != nil && decoded.Extensions != nil && decoded.Extensions.Cost != nil {
		if err := c.throttle.Update(ctx, *decoded.Extensions.Cost); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update throttle state")
		}
	}

	if len(decoded.Errors) > 0 {
		qe := &QueryError{Errors: decoded.Errors}
		if qe.Throttled() {
			return &decoded, ErrorClassRateLimit, qe
		}
		return &decoded, ErrorClassQuery, qe
	}

	return &decoded, "", nil
}

// retryConfig applies client overrides to the per-class retry defaults.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	if c.config.MaxAttempts > 0 {
		rc.MaxAttempts = c.config.MaxAttempts
	}
	if c.config.InitialBackoff > 0 {
		rc.InitialBackoff = c.config.InitialBackoff
		if rc.MaxBackoff < rc.InitialBackoff {
			rc.MaxBackoff = rc.InitialBackoff
		}
	}
	return rc
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func snippet(b []byte) string {
	const limit = 120
	if len(b) > limit {
		return string(b[:limit])
	}
	return string(b)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
