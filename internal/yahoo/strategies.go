package yahoo

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/pipeline"
	"worldmonitor/internal/quote"
)

// Strategy names as used in configuration.
const (
	ChartName   = "yahoo_chart"
	HistoryName = "yahoo_history"
	SparkName   = "yahoo_spark"
)

// sparkBatch is the most symbols Yahoo accepts in one spark request.
const sparkBatch = 20

var (
	_ pipeline.Strategy[string, quote.Quote] = (*ChartStrategy)(nil)
	_ pipeline.Strategy[string, quote.Quote] = (*HistoryStrategy)(nil)
	_ pipeline.Strategy[string, quote.Quote] = (*SparkStrategy)(nil)
)

// ChartStrategy reads the live price and previous close from chart metadata.
// One small request per symbol; the cheapest strategy.
type ChartStrategy struct{ c *Client }

// NewChartStrategy creates the strategy.
func NewChartStrategy(c *Client) *ChartStrategy { return &ChartStrategy{c: c} }

// Name implements pipeline.Strategy
func (s *ChartStrategy) Name() string { return ChartName }

// Fetch implements pipeline.Strategy
func (s *ChartStrategy) Fetch(ctx context.Context, symbols []string) (map[string]quote.Quote, error) {
	return pipeline.EachKey(ctx, symbols, s.c.workers, s.c.timeout, func(ctx context.Context, sym string) (quote.Quote, error) {
		res, err := s.c.chart(ctx, sym, map[string]string{"range": "1d", "interval": "1d"})
		if err != nil {
			return quote.Quote{}, err
		}
		meta := res.Get("meta")
		price := meta.Get("regularMarketPrice")
		if !price.Exists() {
			return quote.Quote{}, fetcher.NewValidationError("yahoo: no regularMarketPrice for " + sym)
		}
		prev := meta.Get("chartPreviousClose")
		if !prev.Exists() {
			prev = meta.Get("previousClose")
		}
		return quote.New(sym, price.Float(), prev.Float()), nil
	})
}

// HistoryStrategy derives price and previous close from five days of daily closes.
type HistoryStrategy struct{ c *Client }

// NewHistoryStrategy creates the strategy.
func NewHistoryStrategy(c *Client) *HistoryStrategy { return &HistoryStrategy{c: c} }

// Name implements pipeline.Strategy
func (s *HistoryStrategy) Name() string { return HistoryName }

// Fetch implements pipeline.Strategy
func (s *HistoryStrategy) Fetch(ctx context.Context, symbols []string) (map[string]quote.Quote, error) {
	return pipeline.EachKey(ctx, symbols, s.c.workers, s.c.timeout, func(ctx context.Context, sym string) (quote.Quote, error) {
		res, err := s.c.chart(ctx, sym, map[string]string{"range": "5d", "interval": "1d"})
		if err != nil {
			return quote.Quote{}, err
		}
		price, prev, ok := lastTwo(closes(res.Get("indicators.quote.0.close")))
		if !ok {
			return quote.Quote{}, fetcher.NewValidationError("yahoo: empty history for " + sym)
		}
		return quote.New(sym, price, prev), nil
	})
}

// SparkStrategy fetches five days of closes for many symbols per request.
type SparkStrategy struct{ c *Client }

// NewSparkStrategy creates the strategy.
func NewSparkStrategy(c *Client) *SparkStrategy { return &SparkStrategy{c: c} }

// Name implements pipeline.Strategy
func (s *SparkStrategy) Name() string { return SparkName }

// Fetch implements pipeline.Strategy
func (s *SparkStrategy) Fetch(ctx context.Context, symbols []string) (map[string]quote.Quote, error) {
	var batches [][]string
	for i := 0; i < len(symbols); i += sparkBatch {
		batches = append(batches, symbols[i:min(i+sparkBatch, len(symbols))])
	}

	resolved, err := pipeline.EachKey(ctx, batchKeys(batches), s.c.workers, s.c.timeout, func(ctx context.Context, joined string) (map[string]quote.Quote, error) {
		return s.batch(ctx, strings.Split(joined, ","))
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]quote.Quote, len(symbols))
	for _, part := range resolved {
		for sym, q := range part {
			out[sym] = q
		}
	}
	return out, nil
}

func batchKeys(batches [][]string) []string {
	keys := make([]string, 0, len(batches))
	for _, b := range batches {
		keys = append(keys, strings.Join(b, ","))
	}
	return keys
}

func (s *SparkStrategy) batch(ctx context.Context, symbols []string) (map[string]quote.Quote, error) {
	doc, err := s.c.get(ctx, "/v7/finance/spark", map[string]string{
		"symbols":  strings.Join(symbols, ","),
		"range":    "5d",
		"interval": "1d",
	})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		wanted[sym] = true
	}

	out := make(map[string]quote.Quote, len(symbols))
	add := func(sym string, cs []float64) {
		if !wanted[sym] {
			return
		}
		if price, prev, ok := lastTwo(cs); ok {
			out[sym] = quote.New(sym, price, prev)
		}
	}

	// Older envelope: {"spark": {"result": [{"symbol", "response": [chart result]}]}}
	if results := doc.Get("spark.result"); results.Exists() {
		for _, r := range results.Array() {
			add(r.Get("symbol").String(), closes(r.Get("response.0.indicators.quote.0.close")))
		}
		return out, nil
	}

	// Flat envelope: {"SYM": {"symbol", "close": [...]}}
	doc.ForEach(func(key, v gjson.Result) bool {
		sym := v.Get("symbol").String()
		if sym == "" {
			sym = key.String()
		}
		add(sym, closes(v.Get("close")))
		return true
	})
	return out, nil
}
