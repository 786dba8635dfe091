package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortCtx fails any Wait that would have to sleep for a token.
func shortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestUnlimited(t *testing.T) {
	l := Unlimited()
	ctx := shortCtx(t)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, APIYahoo))
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(shortCtx(t), APIFeeds))
}

func TestLimitedAPI(t *testing.T) {
	l := New(map[API]float64{APIAlphaVantage: 1.0 / 60.0})

	// burst of one is available immediately
	assert.NoError(t, l.Wait(shortCtx(t), APIAlphaVantage))
	assert.Error(t, l.Wait(shortCtx(t), APIAlphaVantage))

	// other APIs are unaffected
	assert.NoError(t, l.Wait(shortCtx(t), APIYahoo))
}

func TestZeroRateIsUnlimited(t *testing.T) {
	l := New(map[API]float64{APIHazards: 0})
	ctx := shortCtx(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(ctx, APIHazards))
	}
}
