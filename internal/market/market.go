// Package market resolves quote batches through a configurable fallback order of strategies.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"worldmonitor/internal/pipeline"
	"worldmonitor/internal/quote"
)

// Strategy is a quote source usable in a fallback order.
type Strategy = pipeline.Strategy[string, quote.Quote]

// Default symbol groups.
var (
	DefaultFX     = []string{"USDJPY=X", "EURJPY=X", "CNYJPY=X", "THBJPY=X", "PL=F"}
	DefaultStocks = []string{"^N225", "^GSPC", "7747.T", "4543.T", "6869.T", "7733.T"}
)

// DefaultOrders returns the built-in strategy order per mode.
func DefaultOrders() map[quote.Mode][]string {
	return map[quote.Mode][]string{
		quote.Fast:     {"yahoo_chart", "yahoo_history"},
		quote.Thorough: {"yahoo_spark", "yahoo_history", "yahoo_chart", "alphavantage"},
	}
}

// Registry maps strategy names to implementations.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a registry holding strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a strategy under its Name.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Names lists registered strategies alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve maps names to strategies in order. Unknown names are an error.
func (r *Registry) Resolve(names []string) ([]Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, ok := r.strategies[n]
		if !ok {
			return nil, fmt.Errorf("unknown quote strategy %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

// Service runs pipeline.FetchBatch with the order configured for each mode.
type Service struct {
	orders  map[quote.Mode][]Strategy
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

// Option is a function that sets a value in a Service.
type Option func(*Service)

// WithStrategyTimeout bounds each strategy call.
func WithStrategyTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock sets the clock used to stamp batches.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService resolves every configured order against the registry up front.
func NewService(reg *Registry, orders map[quote.Mode][]string, opts ...Option) (*Service, error) {
	s := &Service{
		orders: make(map[quote.Mode][]Strategy, len(orders)),
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for mode, names := range orders {
		strategies, err := reg.Resolve(names)
		if err != nil {
			return nil, fmt.Errorf("%s order: %w (registered: %s)", mode, err, strings.Join(reg.Names(), ", "))
		}
		s.orders[mode] = strategies
	}
	return s, nil
}

// Fetch resolves symbols with the order for mode.
func (s *Service) Fetch(ctx context.Context, mode quote.Mode, symbols []string) quote.Batch {
	b, _ := s.FetchWithReport(ctx, mode, symbols)
	return b
}

// FetchWithReport is Fetch that also returns what each strategy did.
// An unknown mode resolves nothing.
func (s *Service) FetchWithReport(ctx context.Context, mode quote.Mode, symbols []string) (quote.Batch, pipeline.Report) {
	strategies, ok := s.orders[mode]
	if !ok {
		s.logger.Warn("no strategy order for mode", "mode", mode)
	}

	quotes, report := pipeline.Run(ctx, symbols, strategies,
		pipeline.WithTimeout(s.timeout),
		pipeline.WithLogger(s.logger),
	)

	b := quote.NewBatch(mode, symbols, quotes, s.clock.Now().UTC())
	for _, sym := range symbols {
		if q, ok := b.Quotes[sym]; ok {
			s.logger.Debug("quote resolved", "symbol", sym, "price", q.Price, "change", q.ChangeText(), "direction", q.Direction())
		}
	}
	if len(b.Missing) > 0 {
		s.logger.Info("quote batch incomplete", "mode", mode, "status", b.Status(), "missing", b.Missing)
	}
	return b, report
}
