package pipeline

import (
	"context"
	"time"

	"worldmonitor/internal/fetcher"
)

// Strategy is one way of obtaining values for a set of keys.
// Keys it cannot resolve are simply left out of the returned map.
type Strategy[K comparable, V any] interface {
	Name() string
	Fetch(ctx context.Context, keys []K) (map[K]V, error)
}

// Func adapts a function into a Strategy.
func Func[K comparable, V any](name string, fn func(ctx context.Context, keys []K) (map[K]V, error)) Strategy[K, V] {
	return &funcStrategy[K, V]{name: name, fn: fn}
}

type funcStrategy[K comparable, V any] struct {
	name string
	fn   func(ctx context.Context, keys []K) (map[K]V, error)
}

func (s *funcStrategy[K, V]) Name() string { return s.name }

func (s *funcStrategy[K, V]) Fetch(ctx context.Context, keys []K) (map[K]V, error) {
	return s.fn(ctx, keys)
}

// Outcome classifies one strategy call.
type Outcome string

const (
	// Resolved means the call produced at least one new value.
	Resolved Outcome = "resolved"
	// Empty means the call succeeded but produced nothing usable.
	Empty Outcome = "empty"
	// Failed means the call errored, panicked or timed out.
	Failed Outcome = "failed"
	// Skipped means the strategy is not configured.
	Skipped Outcome = "skipped"
)

// Attempt records one strategy call.
type Attempt struct {
	Strategy  string
	Requested int
	Resolved  int
	Outcome   Outcome
	Err       error
	Duration  time.Duration
}

// Report lists the strategy calls made by one pipeline run, in order.
type Report struct {
	Attempts []Attempt
}

// Resolved returns the number of keys each strategy contributed.
func (r Report) Resolved() map[string]int {
	out := make(map[string]int, len(r.Attempts))
	for _, a := range r.Attempts {
		out[a.Strategy] += a.Resolved
	}
	return out
}

// call is the explicit result of invoking one strategy.
type call[K comparable, V any] struct {
	values  map[K]V
	outcome Outcome
	err     error
}

func outcomeFor(err error) Outcome {
	if fetcher.IsUnconfigured(err) {
		return Skipped
	}
	return Failed
}
