package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"worldmonitor/internal/metrics"
)

// Entry is one persisted record.
type Entry struct {
	Key      string          `json:"key"`
	StoredAt time.Time       `json:"stored_at"`
	Value    json.RawMessage `json:"value"`
}

// FetchFunc produces a fresh value for a cache key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cache is a TTL-keyed record cache. Create one per process and share it.
type Cache struct {
	store        Store
	clock        clock.Clock
	logger       *slog.Logger
	fetchTimeout time.Duration

	// mu serializes writes across the whole key space; reads share it
	mu    sync.RWMutex
	group singleflight.Group
}

// New creates a cache over the given store.
func New(store Store, options ...Option) *Cache {
	opts := getOpts(options)
	return &Cache{
		store:        store,
		clock:        opts.clock,
		logger:       opts.logger,
		fetchTimeout: opts.fetchTimeout,
	}
}

// ID returns the fixed-length storage identifier for a logical key.
func ID(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16])
}

// Entry returns the stored record for key regardless of its age.
func (c *Cache) Entry(ctx context.Context, key string) (Entry, bool) {
	e, status := c.load(ctx, key)
	return e, status == ""
}

// load returns the record for key, or a non-empty miss reason.
func (c *Cache) load(ctx context.Context, key string) (Entry, string) {
	c.mu.RLock()
	data, err := c.store.Load(ctx, ID(key))
	c.mu.RUnlock()

	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("cache read failed", "key", key, "error", err)
		}
		return Entry{}, "miss"
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key || len(e.Value) == 0 {
		return Entry{}, "corrupt"
	}
	return e, ""
}

// GetRaw returns the serialized value for key if it is younger than ttl.
func (c *Cache) GetRaw(ctx context.Context, key string, ttl time.Duration) (json.RawMessage, bool) {
	e, status := c.load(ctx, key)
	if status == "" && !c.fresh(e, ttl) {
		status = "stale"
	}
	if status != "" {
		metrics.RecordCacheLookup(status)
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return e.Value, true
}

// Get decodes the value for key into dst if it is younger than ttl.
// Any read or decode problem is reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, dst any) bool {
	raw, ok := c.GetRaw(ctx, key, ttl)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Debug("cached value does not decode", "key", key, "error", err)
		return false
	}
	return true
}

// Set serializes value and replaces the record for key.
// The error is informational; callers may ignore it.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	err := c.set(ctx, key, value)
	metrics.RecordCacheWrite(err == nil)
	if err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return err
}

func (c *Cache) set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	data, err := json.Marshal(Entry{
		Key:      key,
		StoredAt: c.clock.Now().UTC(),
		Value:    raw,
	})
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Save(ctx, ID(key), data)
}

func (c *Cache) fresh(e Entry, ttl time.Duration) bool {
	return c.clock.Since(e.StoredAt) < ttl
}

// GetOrFetch returns the cached value for key if it is fresh. Otherwise it
// calls fetch, stores a non-empty result and returns it whether or not the
// write succeeded. A failed fetch leaves any previous record in place.
// Concurrent misses for the same key share one fetch. The shared fetch does
// not inherit the caller's cancellation; each caller stops waiting when its
// own ctx is done.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch FetchFunc[T]) (T, error) {
	var zero, cached T
	if c.Get(ctx, key, ttl, &cached) {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := c.fetchContext(ctx)
		defer cancel()
		return fetchAndStore(fctx, c, key, fetch)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		// nil when T is an interface and fetch returned nil
		v, _ := r.Val.(T)
		return v, nil
	}
}

// fetchContext detaches the shared fetch from the caller that started it,
// keeping its values and bounding it by the configured fetch timeout.
func (c *Cache) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.fetchTimeout > 0 {
		return context.WithTimeout(detached, c.fetchTimeout)
	}
	return context.WithCancel(detached)
}

// Refresh always calls fetch, bypassing freshness, and stores a non-empty result.
func Refresh[T any](ctx context.Context, c *Cache, key string, fetch FetchFunc[T]) (T, error) {
	return fetchAndStore(ctx, c, key, fetch)
}

func fetchAndStore[T any](ctx context.Context, c *Cache, key string, fetch FetchFunc[T]) (T, error) {
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if !isEmpty(v) {
		_ = c.Set(ctx, key, v)
	}
	return v, nil
}

// isEmpty reports nil pointers, interfaces, and empty slices and maps.
func isEmpty(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
