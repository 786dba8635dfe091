// Package yahoo implements quote strategies backed by the public Yahoo Finance
// chart and spark endpoints.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/ratelimit"
)

const (
	// DefaultBaseURL is the query host for all endpoints.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout bounds each per-symbol request.
	DefaultTimeout = 10 * time.Second

	// DefaultWorkers bounds per-symbol fan-out.
	DefaultWorkers = 4
)

// Client holds what every Yahoo strategy shares.
type Client struct {
	baseURL string
	client  *resty.Client
	limiter *ratelimit.Limiter
	workers int
	timeout time.Duration
}

// NewClient creates a client. An empty baseURL means DefaultBaseURL.
func NewClient(baseURL string, client *resty.Client, limiter *ratelimit.Limiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  client,
		limiter: limiter,
		workers: DefaultWorkers,
		timeout: DefaultTimeout,
	}
}

// WithWorkers returns a copy using n concurrent symbol requests.
func (c *Client) WithWorkers(n int) *Client {
	cp := *c
	if n > 0 {
		cp.workers = n
	}
	return &cp
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return gjson.Result{}, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := fetcher.GetBytes(ctx, c.client, c.baseURL+path, query)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fetcher.NewValidationError("yahoo: invalid JSON response")
	}
	return gjson.ParseBytes(body), nil
}

// chart fetches /v8/finance/chart/{symbol} and returns the first result.
func (c *Client) chart(ctx context.Context, symbol string, query map[string]string) (gjson.Result, error) {
	doc, err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query)
	if err != nil {
		return gjson.Result{}, err
	}
	if desc := doc.Get("chart.error.description"); desc.Exists() && desc.String() != "" {
		return gjson.Result{}, fetcher.NewValidationError("yahoo: " + desc.String())
	}
	res := doc.Get("chart.result.0")
	if !res.Exists() {
		return gjson.Result{}, fetcher.NewValidationError("yahoo: no chart result for " + symbol)
	}
	return res, nil
}

// closes returns the numeric entries of arr, skipping nulls.
func closes(arr gjson.Result) []float64 {
	var out []float64
	arr.ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.Number {
			out = append(out, v.Float())
		}
		return true
	})
	return out
}

// lastTwo returns the last close and the one before it (zero when absent).
func lastTwo(cs []float64) (price, prev float64, ok bool) {
	switch n := len(cs); {
	case n == 0:
		return 0, 0, false
	case n == 1:
		return cs[0], 0, true
	default:
		return cs[n-1], cs[n-2], true
	}
}
