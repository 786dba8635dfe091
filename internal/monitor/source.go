package monitor

import (
	"context"
	"encoding/json"
	"time"

	"worldmonitor/internal/cache"
)

// Schedule is the cache lifetime and refresh cadence of one source.
type Schedule struct {
	TTL      time.Duration
	Interval time.Duration
}

// Source is one named data set backed by a cache key.
type Source[T any] struct {
	name     string
	key      string
	schedule Schedule
	cache    *cache.Cache
	fetch    cache.FetchFunc[T]
}

// Name is the source's public name.
func (s *Source[T]) Name() string { return s.name }

// Key is the cache key the source is stored under.
func (s *Source[T]) Key() string { return s.key }

// Schedule returns the source's TTL and refresh interval.
func (s *Source[T]) Schedule() Schedule { return s.schedule }

// Get returns the fresh cached value or fetches and stores a new one.
func (s *Source[T]) Get(ctx context.Context) (T, error) {
	return cache.GetOrFetch(ctx, s.cache, s.key, s.schedule.TTL, s.fetch)
}

// Cached returns the cached value regardless of age, without fetching.
func (s *Source[T]) Cached(ctx context.Context) (T, bool) {
	var v T
	e, ok := s.cache.Entry(ctx, s.key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return v, false
	}
	return v, true
}

// Refresh fetches, stores and returns a new value, ignoring freshness.
func (s *Source[T]) Refresh(ctx context.Context) (T, error) {
	return cache.Refresh(ctx, s.cache, s.key, s.fetch)
}

// entry erases T so sources of different types share one registry.
type entry interface {
	Name() string
	Key() string
	Schedule() Schedule
	get(ctx context.Context) (any, error)
	cached(ctx context.Context) (any, bool)
	refresh(ctx context.Context) (any, error)
}

func (s *Source[T]) get(ctx context.Context) (any, error)     { return s.Get(ctx) }
func (s *Source[T]) cached(ctx context.Context) (any, bool)   { return s.Cached(ctx) }
func (s *Source[T]) refresh(ctx context.Context) (any, error) { return s.Refresh(ctx) }
