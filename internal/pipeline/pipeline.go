package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"worldmonitor/internal/metrics"
)

type config struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option is a function that sets a value in a config.
type Option func(*config)

// WithTimeout bounds each strategy call. Zero means no extra bound.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithLogger sets the logger for strategy misses.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

func getOpts(opts []Option) config {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// FetchBatch resolves keys through strategies in priority order.
func FetchBatch[K comparable, V any](ctx context.Context, keys []K, strategies []Strategy[K, V], opts ...Option) map[K]V {
	result, _ := Run(ctx, keys, strategies, opts...)
	return result
}

// Run is FetchBatch that also reports what each strategy did.
func Run[K comparable, V any](ctx context.Context, keys []K, strategies []Strategy[K, V], opts ...Option) (map[K]V, Report) {
	cfg := getOpts(opts)
	keys = dedupe(keys)
	result := make(map[K]V, len(keys))
	var report Report

	for _, s := range strategies {
		missing := missingKeys(keys, result)
		if len(missing) == 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		c := invoke(ctx, s, missing, cfg.timeout)

		added := 0
		if c.err == nil {
			for _, k := range missing {
				v, ok := c.values[k]
				if !ok || !usable(v) {
					continue
				}
				// missing keys are by construction not in result yet
				result[k] = v
				added++
			}
			c.outcome = Resolved
			if added == 0 {
				c.outcome = Empty
			}
		}

		attempt := Attempt{
			Strategy:  s.Name(),
			Requested: len(missing),
			Resolved:  added,
			Outcome:   c.outcome,
			Err:       c.err,
			Duration:  time.Since(start),
		}
		report.Attempts = append(report.Attempts, attempt)
		metrics.RecordStrategy(attempt.Strategy, string(attempt.Outcome), added)

		switch c.outcome {
		case Failed:
			cfg.logger.Debug("strategy failed", "strategy", s.Name(), "requested", len(missing), "error", c.err)
		case Skipped:
			cfg.logger.Debug("strategy skipped", "strategy", s.Name(), "reason", c.err)
		default:
			cfg.logger.Debug("strategy finished", "strategy", s.Name(), "requested", len(missing), "resolved", added)
		}
	}

	return result, report
}

func invoke[K comparable, V any](ctx context.Context, s Strategy[K, V], keys []K, timeout time.Duration) (c call[K, V]) {
	defer func() {
		if r := recover(); r != nil {
			c = call[K, V]{outcome: Failed, err: fmt.Errorf("strategy %s panicked: %v", s.Name(), r)}
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// strategies receive their own copy of the key list
	arg := make([]K, len(keys))
	copy(arg, keys)

	values, err := s.Fetch(ctx, arg)
	if err != nil {
		return call[K, V]{outcome: outcomeFor(err), err: err}
	}
	return call[K, V]{values: values}
}

func dedupe[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func missingKeys[K comparable, V any](keys []K, result map[K]V) []K {
	var missing []K
	for _, k := range keys {
		if _, ok := result[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

type validator interface {
	Valid() bool
}

// usable rejects nil placeholders and values that report themselves invalid.
func usable(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return false
		}
	}
	if val, ok := v.(validator); ok {
		return val.Valid()
	}
	return true
}
