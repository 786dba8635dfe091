package cache

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

type config struct {
	clock        clock.Clock
	logger       *slog.Logger
	fetchTimeout time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config)

func getOpts(opts []Option) config {
	cfg := config{
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock sets the clock used to stamp writes and evaluate expiry.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithLogger sets the logger for swallowed write failures.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithFetchTimeout bounds a shared fetch started by GetOrFetch. Zero leaves
// it bounded only by the fetcher's own HTTP timeouts.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.fetchTimeout = d
	}
}
