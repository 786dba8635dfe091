package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldmonitor/internal/logger"
)

type item struct {
	Title string `json:"title"`
}

func testCache(t *testing.T) (*Cache, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	c := New(NewFileStore(afero.NewMemMapFs(), "/cache"), WithClock(mock), WithLogger(logger.Discard()))
	return c, mock
}

func TestID(t *testing.T) {
	id1 := ID("news")
	id2 := ID("earthquakes")
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1, ID("news"))
	assert.Len(t, id1, 32)

	long := ID(string(make([]byte, 10_000)))
	assert.Len(t, long, 32)
}

func TestSetThenGet(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "news", []item{{"a"}, {"b"}}))

	var got []item
	require.True(t, c.Get(ctx, "news", 300*time.Second, &got))
	assert.Equal(t, []item{{"a"}, {"b"}}, got)
}

func TestExpiry(t *testing.T) {
	c, mock := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "news", []item{{"item1"}, {"item2"}}))

	var got []item
	mock.Add(299 * time.Second)
	assert.True(t, c.Get(ctx, "news", 300*time.Second, &got))

	// now - storedAt >= ttl is expired
	mock.Add(1 * time.Second)
	assert.False(t, c.Get(ctx, "news", 300*time.Second, &got))

	mock.Add(1 * time.Second)
	assert.False(t, c.Get(ctx, "news", 300*time.Second, &got))

	// the record is still there, only stale
	e, ok := c.Entry(ctx, "news")
	require.True(t, ok)
	assert.Equal(t, "news", e.Key)
}

func TestGetMissing(t *testing.T) {
	c, _ := testCache(t)
	var got []item
	assert.False(t, c.Get(context.Background(), "nothing", time.Hour, &got))
}

func TestCorruptRecordIsMiss(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(NewFileStore(fs, "/cache"), WithLogger(logger.Discard()))
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(fs, filepath.Join("/cache", ID("news")+".json"), []byte(`{"key":"news","stored_at":`), 0o644))

	var got []item
	assert.False(t, c.Get(ctx, "news", time.Hour, &got))
	_, ok := c.Entry(ctx, "news")
	assert.False(t, ok)
}

func TestWrongTypeIsMiss(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "news", "just a string"))

	var got []item
	assert.False(t, c.Get(ctx, "news", time.Hour, &got))
}

func TestGetOrFetch(t *testing.T) {
	c, mock := testCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		return []item{{"fresh"}}, nil
	}

	got, err := GetOrFetch(ctx, c, "news", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []item{{"fresh"}}, got)
	assert.Equal(t, int32(1), calls.Load())

	// served from cache
	got, err = GetOrFetch(ctx, c, "news", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []item{{"fresh"}}, got)
	assert.Equal(t, int32(1), calls.Load())

	mock.Add(time.Minute)
	_, err = GetOrFetch(ctx, c, "news", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrFetchFailureKeepsStaleValue(t *testing.T) {
	c, mock := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "quakes", []item{{"v1"}}))
	mock.Add(10 * time.Second)

	// short ttl forces a fetch, which fails
	_, err := GetOrFetch(ctx, c, "quakes", 5*time.Second, func(ctx context.Context) ([]item, error) {
		return nil, errors.New("upstream down")
	})
	require.Error(t, err)

	var got []item
	require.True(t, c.Get(ctx, "quakes", 300*time.Second, &got))
	assert.Equal(t, []item{{"v1"}}, got)
}

func TestGetOrFetchDoesNotStoreEmpty(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "gdelt", []item{{"old"}}))

	got, err := Refresh(ctx, c, "gdelt", func(ctx context.Context) ([]item, error) {
		return []item{}, nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	var cached []item
	require.True(t, c.Get(ctx, "gdelt", time.Hour, &cached))
	assert.Equal(t, []item{{"old"}}, cached)

	got2, err := GetOrFetch(ctx, c, "missing", time.Hour, func(ctx context.Context) (*item, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, got2)
	_, ok := c.Entry(ctx, "missing")
	assert.False(t, ok)
}

func TestRefreshBypassesFreshness(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "news", []item{{"old"}}))

	got, err := Refresh(ctx, c, "news", func(ctx context.Context) ([]item, error) {
		return []item{{"new"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []item{{"new"}}, got)

	var cached []item
	require.True(t, c.Get(ctx, "news", time.Hour, &cached))
	assert.Equal(t, []item{{"new"}}, cached)
}

type failingStore struct{ Store }

func (failingStore) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestWriteFailureIsSwallowedByGetOrFetch(t *testing.T) {
	c := New(failingStore{NewMemoryStore()}, WithLogger(logger.Discard()))

	got, err := GetOrFetch(context.Background(), c, "news", time.Hour, func(ctx context.Context) ([]item, error) {
		return []item{{"x"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []item{{"x"}}, got)

	assert.Error(t, c.Set(context.Background(), "news", []item{{"y"}}))
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	c := New(NewMemoryStore(), WithLogger(logger.Discard()))
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		<-release
		return []item{{"shared"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GetOrFetch(ctx, c, "news", time.Hour, fetch)
			assert.NoError(t, err)
			assert.Equal(t, []item{{"shared"}}, got)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestGetOrFetchNilInterfaceResult(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	got, err := GetOrFetch(ctx, c, "empty", time.Hour, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, ok := c.Entry(ctx, "empty")
	assert.False(t, ok)
}

func TestGetOrFetchCallerCancelDoesNotFailOthers(t *testing.T) {
	c := New(NewMemoryStore(), WithLogger(logger.Discard()))

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return []item{{"shared"}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := GetOrFetch(ctxA, c, "news", time.Hour, fetch)
		errA <- err
	}()
	<-started

	type result struct {
		items []item
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		got, err := GetOrFetch(context.Background(), c, "news", time.Hour, fetch)
		resB <- result{got, err}
	}()
	// give the second caller time to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, []item{{"shared"}}, r.items)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), calls.Load())

	var cached []item
	assert.True(t, c.Get(context.Background(), "news", time.Hour, &cached))
}

func TestGetOrFetchTimeoutBoundsSharedFetch(t *testing.T) {
	c := New(NewMemoryStore(), WithLogger(logger.Discard()), WithFetchTimeout(10*time.Millisecond))

	_, err := GetOrFetch(context.Background(), c, "slow", time.Hour, func(ctx context.Context) ([]item, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentWritersNeverTear(t *testing.T) {
	c := New(NewMemoryStore(), WithLogger(logger.Discard()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(ctx, "quotes", []item{{"writer"}, {"writer"}})
		}(i)
		go func() {
			defer wg.Done()
			var got []item
			if c.Get(ctx, "quotes", time.Hour, &got) {
				assert.Len(t, got, 2)
			}
		}()
	}
	wg.Wait()
}
