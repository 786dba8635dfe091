package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIYahoo represents the Yahoo Finance chart and spark endpoints
	APIYahoo API = "yahoo"
	// APIAlphaVantage represents the AlphaVantage API
	APIAlphaVantage API = "alphavantage"
	// APIFeeds represents RSS/Atom feed hosts
	APIFeeds API = "feeds"
	// APIHazards represents the hazard and event APIs (USGS, EONET, GDACS, GDELT, ACLED, UCDP)
	APIHazards API = "hazards"
)

// DefaultLimits are conservative production rates in requests per second
func DefaultLimits() map[API]float64 {
	return map[API]float64{
		APIYahoo: 5,
		// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
		APIAlphaVantage: 1.0 / 12.0,
		APIFeeds:        10,
		APIHazards:      4,
	}
}

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter with one token bucket per API.
// A rate of zero or less leaves that API unlimited.
func New(limits map[API]float64) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter, len(limits)),
	}
	for api, rps := range limits {
		l.Set(api, rps)
	}
	return l
}

// Unlimited returns a limiter that never blocks
func Unlimited() *Limiter {
	return New(nil)
}

// Set replaces the rate for an API
func (l *Limiter) Set(api API, rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rps <= 0 {
		l.limiters[api] = rate.NewLimiter(rate.Inf, 1)
		return
	}
	l.limiters[api] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}
