// Package news fetches configured feeds and merges them into one newest-first list.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/go-multierror"
	"resty.dev/v3"

	"worldmonitor/internal/coordinator"
	"worldmonitor/internal/feed"
	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/ratelimit"
)

// Source is one named feed URL.
type Source struct {
	Name string
	URL  string
}

// FeedFetcher downloads and normalizes a single feed
type FeedFetcher struct {
	source  Source
	client  *resty.Client
	limiter *ratelimit.Limiter
	parser  *feed.Parser
	logger  *slog.Logger
}

// NewFeedFetcher creates a fetcher for one source
func NewFeedFetcher(source Source, client *resty.Client, limiter *ratelimit.Limiter, parser *feed.Parser, logger *slog.Logger) *FeedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedFetcher{
		source:  source,
		client:  client,
		limiter: limiter,
		parser:  parser,
		logger:  logger,
	}
}

// Fetch retrieves the feed and returns its items. A document that parses to
// nothing is not an error.
func (f *FeedFetcher) Fetch(ctx context.Context) ([]feed.Item, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIFeeds); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	raw, err := fetcher.GetBytes(ctx, f.client, f.source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", f.source.Name, err)
	}

	items := f.parser.Parse(raw, f.source.Name)
	if len(items) == 0 {
		dialect, err := feed.Detect(raw)
		log := f.logger.With("feed", f.source.Name, "dialect", dialect)
		if err != nil {
			log = log.With("error", err)
		}
		log.Debug("feed yielded no items")
	}
	return items, nil
}

// Key returns the hierarchical key for this fetcher
func (f *FeedFetcher) Key() string {
	return "feed:" + f.source.Name
}

var _ fetcher.Fetcher[[]feed.Item] = (*Aggregator)(nil)

// Aggregator fans out over every configured feed.
type Aggregator struct {
	fetchers []fetcher.Fetcher[[]feed.Item]
	workers  int
	logger   *slog.Logger
}

// NewAggregator builds one FeedFetcher per source sharing client, limiter and parser.
func NewAggregator(sources []Source, client *resty.Client, limiter *ratelimit.Limiter, parser *feed.Parser, workers int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	fetchers := make([]fetcher.Fetcher[[]feed.Item], 0, len(sources))
	for _, s := range sources {
		fetchers = append(fetchers, NewFeedFetcher(s, client, limiter, parser, logger))
	}
	return &Aggregator{fetchers: fetchers, workers: workers, logger: logger}
}

// Fetch returns all items from all feeds, newest first. Failed feeds are
// skipped; an error is returned only when no feed produced any item.
func (a *Aggregator) Fetch(ctx context.Context) ([]feed.Item, error) {
	results, err := coordinator.New(a.fetchers, a.workers, a.logger).Run(ctx)
	if err != nil {
		return nil, err
	}

	var (
		items []feed.Item
		errs  *multierror.Error
	)
	for _, r := range results {
		if r.Error != nil {
			errs = multierror.Append(errs, r.Error)
			continue
		}
		items = append(items, r.Value...)
	}

	Sort(items)

	if len(items) == 0 {
		if err := errs.ErrorOrNil(); err != nil {
			return nil, err
		}
	}
	if errs != nil {
		a.logger.Info("news fetched with failures", "items", len(items), "failed_feeds", errs.Len())
	}
	return items, nil
}

// Key returns the key of the merged feed list.
func (a *Aggregator) Key() string {
	return "news:feeds"
}

// Sort orders items newest first. Ties keep source then title order so the
// result does not depend on feed completion order.
func Sort(items []feed.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Published.Equal(b.Published) {
			return a.Published.After(b.Published)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Title < b.Title
	})
}
