// Package client provides the core gBizINFO HTTP client with bounded
// retries, optional response caching, and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hojin-tools/gbiz-collector/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for registry API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gbiz_requests_total",
		Help: "Total registry API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gbiz_request_duration_seconds",
		Help:    "Registry API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gbiz_errors_total",
		Help: "Total registry API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

const (
	// DefaultBaseURL is the production registry API root.
	DefaultBaseURL = "https://info.gbiz.go.jp/hojin"

	// tokenHeader carries the API credential on every request.
	tokenHeader = "X-hojinInfo-api-token"

	searchPath = "/v1/hojin"

	// bodySnippetLimit bounds the response body carried inside an APIError.
	bodySnippetLimit = 300

	defaultTimeout = 60 * time.Second
)

// Client is the gBizINFO API client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Token is the API credential, sent as the X-hojinInfo-api-token header.
	Token string

	// BaseURL overrides the API root (tests point it at a mock server).
	BaseURL string

	// UserAgent identifies this collector to the API.
	UserAgent string

	// Timeout is the per-request deadline.
	Timeout time.Duration

	// Retry bounds the backoff policy for transient failures.
	Retry RetryConfig

	// Cache is an optional detail-response cache. Nil disables caching.
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration for the given token.
func DefaultConfig(token string) Config {
	return Config{
		Token:     token,
		BaseURL:   DefaultBaseURL,
		UserAgent: "gbiz-collector/1.0",
		Timeout:   defaultTimeout,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new registry API client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Retry = cfg.Retry.withDefaults()

	logger := log.With().Str("component", "gbiz-client").Logger()

	// Pooled keep-alive transport; detail lookups hit the same host
	// thousands of times per run.
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: logger,
	}, nil
}

// SearchQuery selects one page of the list endpoint.
type SearchQuery struct {
	Prefecture    string // JIS X 0401 two-digit code
	CorporateType string // e.g. 301 for KK, 305 for LLC
	ExistFlag     string // "true", "false" or "" for no filter
	Limit         int    // page size, 1..5000
	Page          int    // 1-based
}

// Search fetches one page of corporations matching the query.
// A 204 No Content response yields an empty result, not an error.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("corporate_type", q.CorporateType)
	params.Set("prefecture", q.Prefecture)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("page", strconv.Itoa(q.Page))
	if q.ExistFlag == "true" || q.ExistFlag == "false" {
		params.Set("exist_flg", q.ExistFlag)
	}

	body, err := c.fetch(ctx, searchPath, params, false)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return &SearchResponse{}, nil
	}

	var sr SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &sr, nil
}

// Detail fetches the basic attributes for one corporate number.
// Returns (nil, nil) when the registry has no such record (404/204/empty).
func (c *Client) Detail(ctx context.Context, corporateNumber string) (*Corporation, error) {
	number := strings.TrimSpace(corporateNumber)
	if number == "" {
		return nil, nil
	}

	key := cache.Key{CorporateNumber: number}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		if err == nil {
			return decodeDetail(entry.Data)
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("corporate_number", number).Msg("Cache get error")
		}
	}

	body, err := c.fetch(ctx, searchPath+"/"+url.PathEscape(number), nil, true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	corp, err := decodeDetail(body)
	if err != nil {
		return nil, err
	}
	if corp != nil && c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(body)); err != nil {
			c.logger.Warn().Err(err).Str("corporate_number", number).Msg("Cache set error")
		}
	}
	return corp, nil
}

func decodeDetail(body []byte) (*Corporation, error) {
	var sr SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode detail response: %w", err)
	}
	if len(sr.Items) == 0 {
		return nil, nil
	}
	return &sr.Items[0], nil
}

// fetch performs one GET against the API with the bounded retry policy.
// It returns the raw body on 200, nil on 204, and nil on 404 when
// notFoundOK is set; every other status surfaces as an *APIError.
func (c *Client) fetch(ctx context.Context, path string, params url.Values, notFoundOK bool) ([]byte, error) {
	endpoint := path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	reqURL := c.config.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var result []byte

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set(tokenHeader, c.config.Token)
		req.Header.Set("Accept", "application/json")
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "read_error").Inc()
			return fmt.Errorf("read response body: %w", err)
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode == http.StatusOK:
			result = body
			return nil
		case resp.StatusCode == http.StatusNoContent:
			result = nil
			return nil
		case resp.StatusCode == http.StatusNotFound && notFoundOK:
			result = nil
			return nil
		default:
			errClass := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Registry API error")

			return &APIError{
				StatusCode: resp.StatusCode,
				Class:      errClass,
				Body:       truncateBody(body),
			}
		}
	}

	if err := retryWithBackoff(ctx, c.config.Retry, attempt); err != nil {
		return nil, err
	}
	return result, nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodySnippetLimit {
		s = s[:bodySnippetLimit]
	}
	return s
}

// Close releases idle connections held by the transport.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
