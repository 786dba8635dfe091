package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"worldmonitor/internal/fetcher"
)

// DefaultWorkers bounds how many fetchers run at once.
const DefaultWorkers = 8

// ErrNoFetchers is returned by Run when there is nothing to do.
var ErrNoFetchers = errors.New("no fetchers configured")

// Coordinator manages concurrent fetchers and aggregates results
type Coordinator[T any] struct {
	fetchers []fetcher.Fetcher[T]
	workers  int
	logger   *slog.Logger
}

// New creates a new Coordinator with the given fetchers.
// workers <= 0 means DefaultWorkers.
func New[T any](fetchers []fetcher.Fetcher[T], workers int, logger *slog.Logger) *Coordinator[T] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator[T]{
		fetchers: fetchers,
		workers:  workers,
		logger:   logger,
	}
}

// Run executes all fetchers on a bounded pool and returns their results
// in completion order. A failing fetcher only affects its own result.
func (c *Coordinator[T]) Run(ctx context.Context) ([]fetcher.Result[T], error) {
	if len(c.fetchers) == 0 {
		return nil, ErrNoFetchers
	}

	// Buffered so workers never block on a slow collector
	resultChan := make(chan fetcher.Result[T], len(c.fetchers))

	p := pool.New().WithMaxGoroutines(c.workers)
	for _, f := range c.fetchers {
		f := f
		p.Go(func() {
			resultChan <- run(ctx, f)
		})
	}

	// Close the result channel when all workers are done
	go func() {
		p.Wait()
		close(resultChan)
	}()

	results := make([]fetcher.Result[T], 0, len(c.fetchers))
	for result := range resultChan {
		if result.Error != nil {
			c.logger.Warn("fetch failed", "key", result.Key, "error", result.Error)
		} else {
			c.logger.Debug("fetch succeeded", "key", result.Key)
		}
		results = append(results, result)
	}

	return results, nil
}

func run[T any](ctx context.Context, f fetcher.Fetcher[T]) (res fetcher.Result[T]) {
	res.Key = f.Key()
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Errorf("%s: panic: %v", res.Key, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}
	res.Value, res.Error = f.Fetch(ctx)
	return res
}
