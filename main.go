package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resty.dev/v3"

	"worldmonitor/internal/acled"
	"worldmonitor/internal/alert"
	"worldmonitor/internal/alphavantage"
	"worldmonitor/internal/cache"
	"worldmonitor/internal/config"
	"worldmonitor/internal/eonet"
	"worldmonitor/internal/feed"
	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/gdacs"
	"worldmonitor/internal/gdelt"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/logger"
	"worldmonitor/internal/market"
	"worldmonitor/internal/metrics"
	"worldmonitor/internal/monitor"
	"worldmonitor/internal/news"
	"worldmonitor/internal/quote"
	"worldmonitor/internal/ratelimit"
	"worldmonitor/internal/scheduler"
	"worldmonitor/internal/ucdp"
	"worldmonitor/internal/usgs"
	"worldmonitor/internal/yahoo"
)

// browserUserAgent is sent to Yahoo, which rejects obvious bot agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

const (
	// primeTimeout bounds the initial refresh of every source.
	primeTimeout = 60 * time.Second

	// strategyTimeout bounds one strategy call across all of its symbols.
	strategyTimeout = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(lg)

	// Cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("monitor stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		defer srv.Close()
		lg.Info("metrics server listening", "addr", cfg.Metrics.Addr)
	}

	mon, err := newMonitor(cfg, lg)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.WithLogger(lg))
	for _, job := range mon.Jobs() {
		if err := sched.Add(job); err != nil {
			return fmt.Errorf("adding job %s: %w", job.Name, err)
		}
	}

	// Prime every source once so readers start with warm data
	primeCtx, cancel := context.WithTimeout(ctx, primeTimeout)
	if err := sched.RunAll(primeCtx); err != nil {
		lg.Warn("initial refresh incomplete", "error", err)
	}
	cancel()

	for _, s := range sched.Status() {
		lg.Info("source primed", "source", s.Name, "outcome", s.Outcome, "next_interval", s.Interval)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	lg.Info("refresh scheduler running", "jobs", len(mon.Sources()))

	<-ctx.Done()
	lg.Info("received shutdown signal, stopping")
	sched.Stop()
	return nil
}

// newMonitor wires every configured provider into a monitor.
func newMonitor(cfg *config.Config, lg *slog.Logger) (*monitor.Monitor, error) {
	c, err := newCache(cfg, lg)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.Limits())

	feedsClient := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout:    cfg.HTTP.Timeout,
		RetryCount: cfg.HTTP.RetryCount,
		UserAgent:  cfg.HTTP.UserAgent,
		Accept:     "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8",
	})
	hazardsClient := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout:    cfg.HTTP.HazardsTimeout,
		RetryCount: cfg.HTTP.RetryCount,
		UserAgent:  cfg.HTTP.UserAgent,
	})
	marketClient := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout:    cfg.HTTP.MarketTimeout,
		RetryCount: cfg.HTTP.RetryCount,
		UserAgent:  browserUserAgent,
	})

	parser := feed.NewParser(feed.WithClassifier(alert.NewClassifier(cfg.Alerts.Keywords)))
	sources := make([]news.Source, 0, len(cfg.News.Feeds))
	for _, f := range cfg.News.Feeds {
		sources = append(sources, news.Source{Name: f.Name, URL: f.URL})
	}

	p := cfg.Providers
	gdeltClient := gdelt.NewClient(p.GDELTURL, hazardsClient, limiter)

	acledFetcher := acled.NewEventFetcher(p.ACLEDURL, p.ACLEDAPIKey, p.ACLEDEmail, hazardsClient, limiter)
	if !acledFetcher.Configured() {
		lg.Info("ACLED credentials not set, conflict events come from UCDP")
	}

	svc, err := newMarket(cfg, marketClient, limiter, lg)
	if err != nil {
		return nil, err
	}

	providers := monitor.Providers{
		News:        news.NewAggregator(sources, feedsClient, limiter, parser, cfg.News.Workers, lg),
		Earthquakes: usgs.NewEarthquakeFetcher(p.USGSURL, hazardsClient, limiter),
		Disasters: []fetcher.Fetcher[[]hazard.Disaster]{
			eonet.NewEventFetcher(p.EONETURL, hazardsClient, limiter),
			gdacs.NewEventFetcher(p.GDACSURL, hazardsClient, limiter),
		},
		GDELTEvents: gdelt.NewEventsFetcher(gdeltClient, p.GDELTEventsQuery),
		GDELTGeo:    gdelt.NewGeoFetcher(gdeltClient, p.GDELTGeoQuery),
		Conflicts: []fetcher.Fetcher[[]hazard.Conflict]{
			acledFetcher,
			ucdp.NewEventFetcher(p.UCDPURL, hazardsClient, limiter),
		},
		Market:       svc,
		FXSymbols:    cfg.Market.FXSymbols,
		FXMode:       quote.Fast,
		StockSymbols: cfg.Market.StockSymbols,
		StockMode:    quote.Thorough,
	}

	return monitor.New(c, providers, cfg.Schedules(), lg), nil
}

func newCache(cfg *config.Config, lg *slog.Logger) (*cache.Cache, error) {
	var store cache.Store
	switch cfg.Cache.Backend {
	case "memory":
		store = cache.NewMemoryStore()
	case "file":
		store = cache.NewOSFileStore(cfg.Cache.Dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	return cache.New(store, cache.WithLogger(lg), cache.WithFetchTimeout(primeTimeout)), nil
}

func newMarket(cfg *config.Config, client *resty.Client, limiter *ratelimit.Limiter, lg *slog.Logger) (*market.Service, error) {
	yc := yahoo.NewClient(cfg.Providers.YahooBaseURL, client, limiter).WithWorkers(cfg.Market.Workers)
	reg := market.NewRegistry(
		yahoo.NewChartStrategy(yc),
		yahoo.NewHistoryStrategy(yc),
		yahoo.NewSparkStrategy(yc),
		alphavantage.NewGlobalQuoteStrategy(cfg.Providers.AlphavantageAPIKey, cfg.Providers.AlphavantageBaseURL, client, limiter),
	)
	svc, err := market.NewService(reg, cfg.StrategyOrders(),
		market.WithStrategyTimeout(strategyTimeout),
		market.WithLogger(lg),
	)
	if err != nil {
		return nil, fmt.Errorf("building market service: %w", err)
	}
	return svc, nil
}
