package monitor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"worldmonitor/internal/cache"
	"worldmonitor/internal/coordinator"
	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/market"
	"worldmonitor/internal/pipeline"
	"worldmonitor/internal/quote"
)

func fromFetcher[T any](f fetcher.Fetcher[T]) cache.FetchFunc[T] {
	return f.Fetch
}

// combine runs every fetcher concurrently and concatenates their lists in
// fetcher order. It fails only when all of them fail.
func combine[T any](fs []fetcher.Fetcher[[]T], logger *slog.Logger) cache.FetchFunc[[]T] {
	return func(ctx context.Context) ([]T, error) {
		results, err := coordinator.New(fs, len(fs), logger).Run(ctx)
		if err != nil {
			return nil, err
		}

		byKey := make(map[string]fetcher.Result[[]T], len(results))
		for _, r := range results {
			byKey[r.Key] = r
		}

		var (
			out    []T
			errs   *multierror.Error
			failed int
		)
		for _, f := range fs {
			r := byKey[f.Key()]
			if r.Error != nil {
				errs = multierror.Append(errs, r.Error)
				failed++
				continue
			}
			out = append(out, r.Value...)
		}
		if failed == len(fs) {
			return nil, errs.ErrorOrNil()
		}
		return out, nil
	}
}

// firstNonEmpty tries fetchers in order and keeps the first non-empty list.
func firstNonEmpty[T any](fs []fetcher.Fetcher[[]T], logger *slog.Logger) cache.FetchFunc[[]T] {
	sources := make([]pipeline.Source[T], 0, len(fs))
	for _, f := range fs {
		sources = append(sources, pipeline.Source[T]{Name: f.Key(), Fetch: f.Fetch})
	}
	return func(ctx context.Context) ([]T, error) {
		items, report := pipeline.FirstOf(ctx, sources, pipeline.WithLogger(logger))
		if len(items) > 0 {
			return items, nil
		}
		return nil, reportError(report)
	}
}

// reportError folds the failures in report into one error. A chain where
// every source answered but had nothing yields no error and no items.
func reportError(report pipeline.Report) error {
	var errs *multierror.Error
	for _, a := range report.Attempts {
		if a.Err != nil {
			errs = multierror.Append(errs, a.Err)
		}
	}
	return errs.ErrorOrNil()
}

// errNoQuotes keeps an empty batch out of the cache.
var errNoQuotes = errors.New("no quotes resolved")

func quotes(svc *market.Service, mode quote.Mode, symbols []string) cache.FetchFunc[quote.Batch] {
	return func(ctx context.Context) (quote.Batch, error) {
		b := svc.Fetch(ctx, mode, symbols)
		if b.Empty() {
			return b, errNoQuotes
		}
		return b, nil
	}
}
