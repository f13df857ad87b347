// Package client provides the PxWeb v2 API client: metadata discovery,
// partitioned table-data fetching under the service's cell limit and rate
// window, and reassembly of the resulting CSV fragments.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/statwerk/pxweb-client/pkg/cache"
	"github.com/statwerk/pxweb-client/pkg/pacing"
)

// Prometheus metrics for PxWeb client operations.
var (
	pxRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "px_requests_total",
		Help: "Total PxWeb requests by endpoint and status",
	}, []string{"endpoint", "status"})

	pxRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "px_request_duration_seconds",
		Help:    "PxWeb request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	pxErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "px_errors_total",
		Help: "Total PxWeb errors by class",
	}, []string{"class"})

	pxFetchRequests = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "px_fetch_requests",
		Help:    "Number of sub-requests needed per table fetch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
	})
)

// Supported response languages (PxWeb v2 currently serves sv and en).
const (
	LangSwedish = "sv"
	LangEnglish = "en"
)

// DefaultOutputFormat is the data response format used for fetches.
// csv2 fragments carry a header row, which the combiner needs.
const DefaultOutputFormat = "csv2"

// Client is the PxWeb API client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger

	gateMu sync.Mutex
	gate   *pacing.Gate
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the PxWeb v2 API, e.g. "https://api.scb.se/ov0104/v2beta/api/v2".
	BaseURL string

	// Redis client for metadata caching. Optional; nil disables caching.
	Redis *redis.Client

	// User-Agent header sent with every request.
	UserAgent string

	// Language for metadata and data responses ("sv" or "en").
	Language string

	// CellLimit overrides the service's maxDataCells. Zero means discover
	// it from GET /config.
	CellLimit int

	// PacingInterval overrides the derived request interval. Zero means
	// derive it from the service's rate window plus PacingMargin.
	PacingInterval time.Duration

	// PacingMargin is added to the derived interval as a safety margin.
	PacingMargin time.Duration

	// MaxConcurrency is the maximum number of in-flight data requests.
	MaxConcurrency int

	// MetadataTTL is the cache lifetime for metadata responses.
	MetadataTTL time.Duration

	// Timeout per HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration for the given API.
// redisClient may be nil to disable metadata caching.
func DefaultConfig(baseURL string, redisClient *redis.Client) Config {
	return Config{
		BaseURL:        baseURL,
		Redis:          redisClient,
		UserAgent:      "pxweb-client/0.1.0",
		Language:       LangSwedish,
		PacingMargin:   100 * time.Millisecond,
		MaxConcurrency: 2,
		MetadataTTL:    15 * time.Minute,
		Timeout:        60 * time.Second,
	}
}

// New creates a new PxWeb client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Language == "" {
		cfg.Language = LangSwedish
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = 15 * time.Minute
	}

	logger := log.With().Str("component", "pxweb-client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cacheManager,
		config: cfg,
		logger: logger,
	}, nil
}

// get performs a cached GET request against an API path and returns the
// response body. Metadata responses are cached under the client's TTL when
// a Redis client is configured.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	cacheKey := cache.Key{Endpoint: endpoint, QueryParams: params}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Msg("Metadata cache hit")
			return entry.Data, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		entry := cache.NewEntry(body, http.StatusOK, c.config.MetadataTTL)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}
	return body, nil
}

// post performs a POST request against an API path with a JSON body and
// returns the response body. Data responses are never cached.
func (c *Client) post(ctx context.Context, endpoint string, params url.Values, payload []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, endpoint, params, payload)
}

// do executes an HTTP request with retry/backoff and error classification.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload []byte) ([]byte, error) {
	reqURL := c.config.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	startTime := time.Now()
	defer func() {
		pxRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "*/*")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			pxErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			pxRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Endpoint:   endpoint,
				Message:    "request failed",
				Err:        reqErr,
			}
		}
		defer resp.Body.Close()

		pxRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errClass := classify(resp.StatusCode, nil)
			pxErrorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("PxWeb request error")

			return &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Endpoint:   endpoint,
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			pxErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Endpoint:   endpoint,
				Message:    "read response body",
				Err:        err,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// baseParams returns the query parameters shared by every request.
func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("lang", c.config.Language)
	return params
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	return nil
}
