package alphavantage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/pipeline"
	"worldmonitor/internal/quote"
	"worldmonitor/internal/ratelimit"
)

const (
	// DefaultBaseURL is the production query endpoint
	DefaultBaseURL = "https://www.alphavantage.co/query"

	// StrategyName is the name used in strategy order configuration
	StrategyName = "alphavantage"

	requestTimeout = 10 * time.Second
)

// GlobalQuoteResponse represents the AlphaVantage API response for stock quotes
type GlobalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`

	// Set instead of a quote when the key is throttled
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// GlobalQuoteStrategy resolves symbols one request at a time through GLOBAL_QUOTE.
// Without an API key every call fails as unconfigured so the pipeline skips it.
type GlobalQuoteStrategy struct {
	apiKey  string
	baseURL string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

var _ pipeline.Strategy[string, quote.Quote] = (*GlobalQuoteStrategy)(nil)

// NewGlobalQuoteStrategy creates the strategy. An empty baseURL means DefaultBaseURL.
func NewGlobalQuoteStrategy(apiKey, baseURL string, client *resty.Client, limiter *ratelimit.Limiter) *GlobalQuoteStrategy {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &GlobalQuoteStrategy{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		limiter: limiter,
	}
}

// Name implements pipeline.Strategy
func (s *GlobalQuoteStrategy) Name() string {
	return StrategyName
}

// Fetch implements pipeline.Strategy. Symbols are requested sequentially to
// stay inside the free-tier rate.
func (s *GlobalQuoteStrategy) Fetch(ctx context.Context, symbols []string) (map[string]quote.Quote, error) {
	if s.apiKey == "" {
		return nil, fetcher.NewUnconfiguredError(StrategyName, "alphavantage.api_key")
	}
	return pipeline.EachKey(ctx, symbols, 1, requestTimeout, s.Quote)
}

// Quote retrieves the latest price and previous close for one symbol
func (s *GlobalQuoteStrategy) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	if err := s.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return quote.Quote{}, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var result GlobalQuoteResponse

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   s.apiKey,
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
		}).
		SetResult(&result).
		Get(s.baseURL)

	if err != nil {
		return quote.Quote{}, fmt.Errorf("failed to fetch quote for %s: %w", symbol, fetcher.ClassifyError(err))
	}

	if !resp.IsSuccess() {
		return quote.Quote{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	if result.Note != "" || result.Information != "" {
		return quote.Quote{}, fetcher.NewRateLimitError(resp.StatusCode())
	}

	if result.GlobalQuote.Price == "" {
		return quote.Quote{}, fetcher.NewValidationError(fmt.Sprintf("price not found in response for %s", symbol))
	}

	price, err := strconv.ParseFloat(result.GlobalQuote.Price, 64)
	if err != nil {
		return quote.Quote{}, fetcher.NewValidationError(fmt.Sprintf("failed to parse price for %s: %v", symbol, err))
	}

	// A missing or malformed previous close only drops the change figure
	prev, _ := strconv.ParseFloat(result.GlobalQuote.PreviousClose, 64)

	return quote.New(symbol, price, prev), nil
}
