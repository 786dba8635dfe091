// Package monitor is the single entry point for every cached data set:
// news, hazards, geopolitical events and market quotes. Each set is a named
// source with a cache key, a TTL and a refresh interval, and can be read
// through the cache, read from the cache only, or refreshed on demand.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"worldmonitor/internal/cache"
	"worldmonitor/internal/feed"
	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/market"
	"worldmonitor/internal/quote"
	"worldmonitor/internal/scheduler"
)

// Source names.
const (
	News             = "news"
	Earthquakes      = "earthquakes"
	NaturalDisasters = "natural_disasters"
	GDELTEvents      = "gdelt_events"
	GDELTGeo         = "gdelt_geo"
	ConflictEvents   = "conflict_events"
	QuotesFX         = "quotes_fx"
	QuotesStocks     = "quotes_stocks"
)

// ErrUnknownSource is returned for a name with no registered source.
var ErrUnknownSource = errors.New("unknown source")

// DefaultSchedules returns the built-in TTL and refresh interval per source.
func DefaultSchedules() map[string]Schedule {
	return map[string]Schedule{
		News:             {TTL: 300 * time.Second, Interval: 180 * time.Second},
		Earthquakes:      {TTL: 300 * time.Second, Interval: 300 * time.Second},
		NaturalDisasters: {TTL: 300 * time.Second, Interval: 300 * time.Second},
		GDELTEvents:      {TTL: 600 * time.Second, Interval: 600 * time.Second},
		GDELTGeo:         {TTL: 600 * time.Second, Interval: 600 * time.Second},
		ConflictEvents:   {TTL: 600 * time.Second, Interval: 600 * time.Second},
		QuotesFX:         {TTL: 10 * time.Second, Interval: 10 * time.Second},
		QuotesStocks:     {TTL: 60 * time.Second, Interval: 60 * time.Second},
	}
}

// Providers are the upstream fetchers behind each source. A nil provider
// leaves its source unregistered.
type Providers struct {
	News        fetcher.Fetcher[[]feed.Item]
	Earthquakes fetcher.Fetcher[[]hazard.Earthquake]
	// Disasters are combined in order; one failing does not drop the others.
	Disasters   []fetcher.Fetcher[[]hazard.Disaster]
	GDELTEvents fetcher.Fetcher[[]hazard.Article]
	GDELTGeo    fetcher.Fetcher[[]hazard.GeoPoint]
	// Conflicts are tried in order; the first non-empty list wins.
	Conflicts []fetcher.Fetcher[[]hazard.Conflict]

	Market       *market.Service
	FXSymbols    []string
	FXMode       quote.Mode
	StockSymbols []string
	StockMode    quote.Mode
}

// Monitor owns the source registry.
type Monitor struct {
	cache   *cache.Cache
	market  *market.Service
	logger  *slog.Logger
	sources map[string]entry
	order   []string

	news        *Source[[]feed.Item]
	earthquakes *Source[[]hazard.Earthquake]
	disasters   *Source[[]hazard.Disaster]
	gdeltEvents *Source[[]hazard.Article]
	gdeltGeo    *Source[[]hazard.GeoPoint]
	conflicts   *Source[[]hazard.Conflict]
	fx          *Source[quote.Batch]
	stocks      *Source[quote.Batch]
}

// New registers a source for every configured provider. schedules override
// DefaultSchedules per name.
func New(c *cache.Cache, p Providers, schedules map[string]Schedule, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	sched := DefaultSchedules()
	for name, s := range schedules {
		d := sched[name]
		if s.TTL > 0 {
			d.TTL = s.TTL
		}
		if s.Interval > 0 {
			d.Interval = s.Interval
		}
		sched[name] = d
	}

	m := &Monitor{
		cache:   c,
		market:  p.Market,
		logger:  logger,
		sources: make(map[string]entry),
	}

	if p.News != nil {
		m.news = register(m, News, sched, fromFetcher(p.News))
	}
	if p.Earthquakes != nil {
		m.earthquakes = register(m, Earthquakes, sched, fromFetcher(p.Earthquakes))
	}
	if len(p.Disasters) > 0 {
		m.disasters = register(m, NaturalDisasters, sched, combine(p.Disasters, logger))
	}
	if p.GDELTEvents != nil {
		m.gdeltEvents = register(m, GDELTEvents, sched, fromFetcher(p.GDELTEvents))
	}
	if p.GDELTGeo != nil {
		m.gdeltGeo = register(m, GDELTGeo, sched, fromFetcher(p.GDELTGeo))
	}
	if len(p.Conflicts) > 0 {
		m.conflicts = register(m, ConflictEvents, sched, firstNonEmpty(p.Conflicts, logger))
	}
	if p.Market != nil && len(p.FXSymbols) > 0 {
		m.fx = register(m, QuotesFX, sched, quotes(p.Market, modeOr(p.FXMode, quote.Fast), p.FXSymbols))
	}
	if p.Market != nil && len(p.StockSymbols) > 0 {
		m.stocks = register(m, QuotesStocks, sched, quotes(p.Market, modeOr(p.StockMode, quote.Thorough), p.StockSymbols))
	}
	return m
}

func register[T any](m *Monitor, name string, sched map[string]Schedule, fetch cache.FetchFunc[T]) *Source[T] {
	s := &Source[T]{
		name:     name,
		key:      name,
		schedule: sched[name],
		cache:    m.cache,
		fetch:    fetch,
	}
	m.sources[name] = s
	m.order = append(m.order, name)
	return s
}

func modeOr(m, def quote.Mode) quote.Mode {
	if m == "" {
		return def
	}
	return m
}

// Sources lists registered source names in registration order.
func (m *Monitor) Sources() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Monitor) lookup(name string) (entry, error) {
	e, ok := m.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return e, nil
}

// Get returns the named source's fresh cached value, fetching on a miss.
func (m *Monitor) Get(ctx context.Context, name string) (any, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.get(ctx)
}

// Cached returns whatever the cache holds for name, however old.
func (m *Monitor) Cached(ctx context.Context, name string) (any, bool) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, false
	}
	return e.cached(ctx)
}

// ForceRefresh bypasses freshness, fetches live and stores the result.
func (m *Monitor) ForceRefresh(ctx context.Context, name string) (any, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.refresh(ctx)
}

// FetchBatch resolves arbitrary symbols through the market fallback order
// without touching the cache.
func (m *Monitor) FetchBatch(ctx context.Context, mode quote.Mode, symbols []string) (quote.Batch, error) {
	if m.market == nil {
		return quote.Batch{}, errors.New("market service not configured")
	}
	return m.market.Fetch(ctx, mode, symbols), nil
}

// Jobs returns one refresh job per registered source.
func (m *Monitor) Jobs() []scheduler.Job {
	jobs := make([]scheduler.Job, 0, len(m.order))
	for _, name := range m.order {
		e := m.sources[name]
		jobs = append(jobs, scheduler.Job{
			Name:     name,
			Interval: e.Schedule().Interval,
			Run: func(ctx context.Context) error {
				_, err := e.refresh(ctx)
				return err
			},
		})
	}
	return jobs
}

// Schedules returns the effective schedule per registered source.
func (m *Monitor) Schedules() map[string]Schedule {
	out := make(map[string]Schedule, len(m.sources))
	for n, e := range m.sources {
		out[n] = e.Schedule()
	}
	return out
}
