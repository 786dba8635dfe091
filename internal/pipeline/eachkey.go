package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc/pool"
)

// EachKey runs fn for every key on at most workers goroutines and collects
// the values that succeeded. Each call gets its own timeout when timeout > 0.
// The error is non-nil only when no key was resolved and at least one call failed.
func EachKey[K comparable, V any](ctx context.Context, keys []K, workers int, timeout time.Duration, fn func(ctx context.Context, key K) (V, error)) (map[K]V, error) {
	if workers <= 0 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		result = make(map[K]V, len(keys))
		errs   *multierror.Error
	)

	p := pool.New().WithMaxGoroutines(workers)
	for _, k := range keys {
		k := k
		p.Go(func() {
			v, err := callKey(ctx, k, timeout, fn)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%v: %w", k, err))
				return
			}
			result[k] = v
		})
	}
	p.Wait()

	if len(result) == 0 && errs != nil {
		return nil, errs.ErrorOrNil()
	}
	return result, nil
}

func callKey[K comparable, V any](ctx context.Context, key K, timeout time.Duration, fn func(ctx context.Context, key K) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx, key)
}
