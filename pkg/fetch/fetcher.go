// Package fetch provides an HTTP GET worker for batch dispatches with
// retry, backoff and error classification.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the fetcher configuration.
type Config struct {
	// UserAgent is sent with every request (required).
	UserAgent string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	// Retry controls retries of server, rate limit and network failures.
	Retry RetryConfig

	// HTTPClient overrides the default client (Timeout is then ignored).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:    userAgent,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 10 << 20,
		Retry:        DefaultRetryConfig(),
	}
}

// Fetcher performs GET requests. It is safe for concurrent use and is meant
// to be shared read-only between dispatch workers.
type Fetcher struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Fetcher{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "fetch").Logger(),
	}, nil
}

// Get fetches url and returns the response body of a 2xx/3xx response.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	logger := f.logger.With().Str("url", url).Logger()

	var body []byte
	err := retryWithBackoff(ctx, f.config.Retry, logger, func() error {
		var attemptErr error
		body, attemptErr = f.do(ctx, url)
		return attemptErr
	})
	if err != nil {
		logger.Error().Err(err).Msg("Request failed")
		return nil, err
	}
	return body, nil
}

// do performs a single attempt.
func (f *Fetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RequestError{URL: url, Class: ErrorClassClient, Message: "build request", Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &RequestError{URL: url, Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		return nil, &RequestError{URL: url, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		return nil, &RequestError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	f.logger.Debug().
		Str("url", url).
		Int("status_code", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Request complete")

	return body, nil
}

// Worker adapts Get to a dispatch worker function with the Fetcher as the
// shared worker data and a URL as the task.
func Worker(ctx context.Context, f *Fetcher, url string) ([]byte, error) {
	return f.Get(ctx, url)
}
