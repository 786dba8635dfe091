package pipeline

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/logger"
	"worldmonitor/internal/quote"
)

func fixed(name string, values map[string]quote.Quote, calls *[][]string) Strategy[string, quote.Quote] {
	return Func(name, func(ctx context.Context, keys []string) (map[string]quote.Quote, error) {
		if calls != nil {
			*calls = append(*calls, keys)
		}
		return values, nil
	})
}

func failing(name string, err error) Strategy[string, quote.Quote] {
	return Func(name, func(ctx context.Context, keys []string) (map[string]quote.Quote, error) {
		return nil, err
	})
}

var quiet = WithLogger(logger.Discard())

func TestFetchBatch_FillsGapsInOrder(t *testing.T) {
	httpStrategy := fixed("http", map[string]quote.Quote{"AAA": quote.New("AAA", 100.0, 99.0)}, nil)
	tickerStrategy := fixed("ticker", map[string]quote.Quote{"BBB": quote.New("BBB", 50.0, 0)}, nil)

	got := FetchBatch(context.Background(), []string{"AAA", "BBB"}, []Strategy[string, quote.Quote]{httpStrategy, tickerStrategy}, quiet)

	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got["AAA"].Price)
	require.NotNil(t, got["AAA"].PreviousClose)
	assert.Equal(t, 99.0, *got["AAA"].PreviousClose)
	assert.Equal(t, 50.0, got["BBB"].Price)
	assert.Nil(t, got["BBB"].PreviousClose)
}

func TestFetchBatch_EarlierStrategyWins(t *testing.T) {
	first := fixed("first", map[string]quote.Quote{"AAA": quote.New("AAA", 1, 0)}, nil)
	// second strategy misbehaves and returns a key it was not asked for
	second := fixed("second", map[string]quote.Quote{
		"AAA": quote.New("AAA", 2, 0),
		"BBB": quote.New("BBB", 2, 0),
	}, nil)

	got := FetchBatch(context.Background(), []string{"AAA", "BBB"}, []Strategy[string, quote.Quote]{first, second}, quiet)
	assert.Equal(t, 1.0, got["AAA"].Price)
	assert.Equal(t, 2.0, got["BBB"].Price)
}

func TestFetchBatch_OnlyMissingKeysRequested(t *testing.T) {
	var firstCalls, secondCalls, thirdCalls [][]string
	first := fixed("first", map[string]quote.Quote{"A": quote.New("A", 1, 0)}, &firstCalls)
	second := fixed("second", map[string]quote.Quote{"B": quote.New("B", 1, 0)}, &secondCalls)
	third := fixed("third", map[string]quote.Quote{"C": quote.New("C", 1, 0)}, &thirdCalls)

	got := FetchBatch(context.Background(), []string{"A", "B", "A"}, []Strategy[string, quote.Quote]{first, second, third}, quiet)

	assert.Len(t, got, 2)
	assert.Equal(t, [][]string{{"A", "B"}}, firstCalls)
	assert.Equal(t, [][]string{{"B"}}, secondCalls)
	// nothing left to resolve, third never runs
	assert.Empty(t, thirdCalls)
}

func TestFetchBatch_FailuresDoNotAbort(t *testing.T) {
	strategies := []Strategy[string, quote.Quote]{
		failing("down", errors.New("connection refused")),
		Func("panics", func(ctx context.Context, keys []string) (map[string]quote.Quote, error) {
			panic("unexpected payload")
		}),
		failing("premium", fetcher.NewUnconfiguredError("premium", "API_KEY")),
		fixed("last", map[string]quote.Quote{"A": quote.New("A", 3, 0)}, nil),
	}

	got, report := Run(context.Background(), []string{"A"}, strategies, quiet)
	assert.Equal(t, 3.0, got["A"].Price)

	require.Len(t, report.Attempts, 4)
	assert.Equal(t, Failed, report.Attempts[0].Outcome)
	assert.Equal(t, Failed, report.Attempts[1].Outcome)
	assert.Contains(t, report.Attempts[1].Err.Error(), "panicked")
	assert.Equal(t, Skipped, report.Attempts[2].Outcome)
	assert.Equal(t, Resolved, report.Attempts[3].Outcome)
	assert.Equal(t, map[string]int{"down": 0, "panics": 0, "premium": 0, "last": 1}, report.Resolved())
}

func TestFetchBatch_NoPlaceholders(t *testing.T) {
	invalid := Func("invalid", func(ctx context.Context, keys []string) (map[string]quote.Quote, error) {
		return map[string]quote.Quote{
			"A": {Symbol: "A", Price: math.NaN()},
			"B": quote.New("B", 10, 0),
		}, nil
	})

	got := FetchBatch(context.Background(), []string{"A", "B", "C"}, []Strategy[string, quote.Quote]{invalid}, quiet)
	_, hasA := got["A"]
	_, hasC := got["C"]
	assert.False(t, hasA)
	assert.False(t, hasC)
	assert.Equal(t, 10.0, got["B"].Price)

	ptrs := FetchBatch(context.Background(), []string{"x", "y"}, []Strategy[string, *int]{
		Func("nil pointers", func(ctx context.Context, keys []string) (map[string]*int, error) {
			one := 1
			return map[string]*int{"x": nil, "y": &one}, nil
		}),
	}, quiet)
	assert.Len(t, ptrs, 1)
	assert.Equal(t, 1, *ptrs["y"])
}

func TestFetchBatch_TimeoutIsStrategyFailure(t *testing.T) {
	slow := Func("slow", func(ctx context.Context, keys []string) (map[string]quote.Quote, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	fast := fixed("fast", map[string]quote.Quote{"A": quote.New("A", 5, 0)}, nil)

	got, report := Run(context.Background(), []string{"A"}, []Strategy[string, quote.Quote]{slow, fast}, WithTimeout(20*time.Millisecond), quiet)
	assert.Equal(t, 5.0, got["A"].Price)
	assert.Equal(t, Failed, report.Attempts[0].Outcome)
	assert.ErrorIs(t, report.Attempts[0].Err, context.DeadlineExceeded)
}

func TestFetchBatch_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls [][]string
	got := FetchBatch(ctx, []string{"A"}, []Strategy[string, quote.Quote]{fixed("never", nil, &calls)}, quiet)
	assert.Empty(t, got)
	assert.Empty(t, calls)
}

func TestFetchBatch_EmptyInput(t *testing.T) {
	var calls [][]string
	got := FetchBatch(context.Background(), nil, []Strategy[string, quote.Quote]{fixed("s", nil, &calls)}, quiet)
	assert.Empty(t, got)
	assert.Empty(t, calls)
}

func TestEachKey(t *testing.T) {
	got, err := EachKey(context.Background(), []string{"A", "B", "C"}, 2, 0, func(ctx context.Context, key string) (int, error) {
		if key == "B" {
			return 0, errors.New("no data")
		}
		if key == "C" {
			panic("bad")
		}
		return len(key), nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1}, got)

	_, err = EachKey(context.Background(), []string{"A", "B"}, 4, 0, func(ctx context.Context, key string) (int, error) {
		return 0, errors.New("down")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A: down")
}

func TestEachKey_Bounded(t *testing.T) {
	var running, peak atomic.Int32

	keys := []int{1, 2, 3, 4, 5, 6}
	got, err := EachKey(context.Background(), keys, 2, time.Second, func(ctx context.Context, key int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return key, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFirstOf(t *testing.T) {
	var secondCalled bool
	got, report := FirstOf(context.Background(), []Source[string]{
		{Name: "acled", Fetch: func(ctx context.Context) ([]string, error) {
			return nil, fetcher.NewUnconfiguredError("acled")
		}},
		{Name: "empty", Fetch: func(ctx context.Context) ([]string, error) {
			return []string{}, nil
		}},
		{Name: "ucdp", Fetch: func(ctx context.Context) ([]string, error) {
			return []string{"event"}, nil
		}},
		{Name: "unused", Fetch: func(ctx context.Context) ([]string, error) {
			secondCalled = true
			return []string{"other"}, nil
		}},
	}, quiet)

	assert.Equal(t, []string{"event"}, got)
	assert.False(t, secondCalled)
	require.Len(t, report.Attempts, 3)
	assert.Equal(t, Skipped, report.Attempts[0].Outcome)
	assert.Equal(t, Empty, report.Attempts[1].Outcome)
}
