package fetcher

import (
	"context"
	"log/slog"
	"time"

	"resty.dev/v3"
)

const (
	// Default retry configuration
	defaultRetryCount       = 2
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second

	// DefaultTimeout bounds a single upstream request
	DefaultTimeout = 15 * time.Second

	// DefaultUserAgent is sent when no user agent is configured
	DefaultUserAgent = "WorldMonitor/1.0 (Go; data aggregator)"
)

// ClientOptions tunes the HTTP client shared by a provider
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
	Accept     string
}

// NewHTTPClient creates a new HTTP client with retry logic and exponential backoff
func NewHTTPClient(opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = defaultRetryCount
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Accept == "" {
		opts.Accept = "application/json"
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", opts.Accept).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook)

	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}

	return client
}

// GetBytes performs a GET and returns the body of a successful response.
// Failures come back as a classified FetchError.
func GetBytes(ctx context.Context, client *resty.Client, url string, query map[string]string) ([]byte, error) {
	req := client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, ClassifyError(err)
	}

	if !resp.IsSuccess() {
		return nil, ClassifyHTTPError(resp.StatusCode())
	}

	return resp.Bytes(), nil
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	// Retry on server errors (5xx)
	if r.StatusCode() >= 500 {
		return true
	}

	// Retry on rate limit (429)
	if r.StatusCode() == 429 {
		return true
	}

	// Retry on request timeout (408)
	if r.StatusCode() == 408 {
		return true
	}

	return false
}

// retryHook logs retry attempts for observability
func retryHook(r *resty.Response, err error) {
	if err != nil {
		slog.Debug("retrying request due to error",
			"url", r.Request.URL,
			"attempt", r.Request.Attempt,
			"error", err.Error())
		return
	}

	slog.Debug("retrying request due to status code",
		"url", r.Request.URL,
		"attempt", r.Request.Attempt,
		"status_code", r.StatusCode())
}
