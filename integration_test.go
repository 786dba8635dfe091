package main

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldmonitor/internal/config"
	"worldmonitor/internal/logger"
	"worldmonitor/internal/market"
	"worldmonitor/internal/monitor"
	"worldmonitor/internal/quote"
	"worldmonitor/internal/scheduler"
	"worldmonitor/internal/testutil"
)

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
  <item><title>Missile test reported</title><description>&lt;p&gt;Officials confirm&lt;/p&gt;</description>
    <link>https://wire.example/1</link><pubDate>Mon, 06 Jan 2025 08:00:00 GMT</pubDate></item>
  <item><title>Markets open flat</title><description>Quiet session</description>
    <link>https://wire.example/2</link><pubDate>Mon, 06 Jan 2025 07:00:00 GMT</pubDate></item>
</channel></rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Analysis</title>
  <entry><title>Shipping lanes reopen</title><summary>Traffic resumes</summary>
    <link rel="alternate" href="https://analysis.example/a"/><updated>2025-01-06T09:30:00Z</updated></entry>
</feed>`

const quakes = `{"type": "FeatureCollection", "features": [
  {"id": "us1", "properties": {"mag": 4.6, "place": "off the coast", "time": 1736157600000, "url": "https://e/us1", "tsunami": 0},
   "geometry": {"coordinates": [178.1, -20.5, 10]}},
  {"id": "us2", "properties": {"mag": 6.1, "place": "Honshu", "time": 1736161200000, "url": "https://e/us2", "tsunami": 1},
   "geometry": {"coordinates": [142.3, 38.1, 30]}}
]}`

const eonetEvents = `{"events": [
  {"id": "EONET_9", "title": "Wildfire Z", "categories": [{"id": "wildfires", "title": "Wildfires"}],
   "geometry": [{"date": "2025-01-06T00:00:00Z", "coordinates": [-118.5, 34.1]}]}
]}`

const gdeltArticles = `{"articles": [
  {"url": "https://news.example/x", "title": "Border clashes", "seendate": "20250106T081500Z", "domain": "news.example", "language": "English"}
]}`

const gdeltPoints = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"name": "Kyiv, Ukraine", "count": 42}, "geometry": {"type": "Point", "coordinates": [30.5, 50.4]}}
]}`

const ucdpEvents = `{"TotalCount": 1, "Result": [
  {"id": 77, "type_of_violence": 1, "side_a": "Government of X", "side_b": "Rebels", "country": "X", "region": "Africa",
   "latitude": 4.85, "longitude": 31.6, "best": 3, "date_start": "2024-12-30T00:00:00"}
]}`

// upstream serves every provider endpoint from one test server.
func upstream(t *testing.T) (*testutil.Server, map[string]*atomic.Int32) {
	t.Helper()
	hits := map[string]*atomic.Int32{}
	count := func(name string, h http.HandlerFunc) http.HandlerFunc {
		n := new(atomic.Int32)
		hits[name] = n
		return func(w http.ResponseWriter, r *http.Request) {
			n.Add(1)
			h(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/feeds/wire", count("wire", testutil.Respond(http.StatusOK, "application/rss+xml", rssFeed)))
	mux.HandleFunc("/feeds/analysis", count("analysis", testutil.Respond(http.StatusOK, "application/atom+xml", atomFeed)))
	mux.HandleFunc("/feeds/down", count("down", testutil.Respond(http.StatusInternalServerError, "", "")))
	mux.HandleFunc("/usgs", count("usgs", testutil.Respond(http.StatusOK, "application/json", quakes)))
	mux.HandleFunc("/eonet", count("eonet", testutil.Respond(http.StatusOK, "application/json", eonetEvents)))
	mux.HandleFunc("/gdacs", count("gdacs", testutil.Respond(http.StatusBadGateway, "", "")))
	mux.HandleFunc("/gdelt", count("gdelt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("mode") == "pointdata" {
			_, _ = w.Write([]byte(gdeltPoints))
			return
		}
		_, _ = w.Write([]byte(gdeltArticles))
	}))
	mux.HandleFunc("/acled", count("acled", testutil.Respond(http.StatusOK, "application/json", `{"data": []}`)))
	mux.HandleFunc("/ucdp", count("ucdp", testutil.Respond(http.StatusOK, "application/json", ucdpEvents)))
	mux.HandleFunc("/yahoo/v8/finance/chart/", count("chart", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(r.URL.Path, "/yahoo/v8/finance/chart/") {
		case "USDJPY=X":
			_, _ = w.Write([]byte(`{"chart": {"result": [{"meta": {"regularMarketPrice": 157.2, "chartPreviousClose": 156.8}, "indicators": {"quote": [{"close": [156.8, 157.2]}]}}], "error": null}}`))
		case "^N225":
			_, _ = w.Write([]byte(`{"chart": {"result": [{"meta": {"regularMarketPrice": 39500.5, "chartPreviousClose": 39000}, "indicators": {"quote": [{"close": [39000, 39500.5]}]}}], "error": null}}`))
		default:
			_, _ = w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
		}
	}))
	// Spark is not served, so the thorough order falls through to history.
	mux.HandleFunc("/yahoo/v7/finance/spark", count("spark", testutil.Respond(http.StatusNotFound, "", "")))

	return testutil.NewServer(t, mux.ServeHTTP), hits
}

func testConfig(base string) *config.Config {
	orders := market.DefaultOrders()
	return &config.Config{
		Log:   config.LogConfig{Level: "error", Format: "text"},
		Cache: config.CacheConfig{Backend: "memory", DefaultTTL: 300 * time.Second},
		HTTP: config.HTTPConfig{
			Timeout:        5 * time.Second,
			HazardsTimeout: 5 * time.Second,
			MarketTimeout:  5 * time.Second,
			RetryCount:     0,
		},
		News: config.NewsConfig{
			Workers: 2,
			Feeds: []config.Feed{
				{Name: "Wire", URL: base + "/feeds/wire"},
				{Name: "Analysis", URL: base + "/feeds/analysis"},
				{Name: "Down", URL: base + "/feeds/down"},
			},
		},
		Alerts: config.AlertsConfig{Keywords: []string{"missile"}},
		Market: config.MarketConfig{
			FXSymbols:    []string{"USDJPY=X", "XXX=X"},
			StockSymbols: []string{"^N225"},
			Workers:      2,
			Strategies:   config.StrategyOrders{Fast: orders[quote.Fast], Thorough: orders[quote.Thorough]},
		},
		Providers: config.ProvidersConfig{
			YahooBaseURL:        base + "/yahoo",
			AlphavantageBaseURL: base + "/alphavantage",
			USGSURL:             base + "/usgs",
			EONETURL:            base + "/eonet",
			GDACSURL:            base + "/gdacs",
			GDELTURL:            base + "/gdelt",
			ACLEDURL:            base + "/acled",
			UCDPURL:             base + "/ucdp",
		},
	}
}

// TestIntegration_AllSources primes every source through the scheduler and
// reads the results back through the monitor.
func TestIntegration_AllSources(t *testing.T) {
	srv, hits := upstream(t)
	cfg := testConfig(srv.URL)

	mon, err := newMonitor(cfg, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, mon.Sources(), 8)

	sched := scheduler.New(scheduler.WithLogger(logger.Discard()))
	for _, job := range mon.Jobs() {
		require.NoError(t, sched.Add(job))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, sched.RunAll(ctx))

	for _, s := range sched.Status() {
		assert.Equal(t, scheduler.Succeeded, s.Outcome, s.Name)
	}

	items, err := mon.News(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Shipping lanes reopen", items[0].Title)
	assert.Equal(t, "Missile test reported", items[1].Title)
	assert.True(t, items[1].IsAlert)
	assert.Equal(t, "Officials confirm", items[1].Summary)
	assert.False(t, items[2].IsAlert)

	eq, err := mon.Earthquakes(ctx)
	require.NoError(t, err)
	require.Len(t, eq, 2)
	assert.Equal(t, "us2", eq[0].ID)

	disasters, err := mon.NaturalDisasters(ctx)
	require.NoError(t, err)
	require.Len(t, disasters, 1)
	assert.Equal(t, "EONET_9", disasters[0].ID)

	articles, err := mon.GDELTEvents(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Border clashes", articles[0].Title)

	points, err := mon.GDELTGeo(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 42, points[0].Count)

	conflicts, err := mon.ConflictEvents(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "77", conflicts[0].ID)
	assert.Zero(t, hits["acled"].Load(), "ACLED has no credentials and must not be called")

	fx, err := mon.FX(ctx)
	require.NoError(t, err)
	assert.Equal(t, 157.2, fx.Quotes["USDJPY=X"].Price)
	assert.Equal(t, []string{"XXX=X"}, fx.Missing)
	assert.Equal(t, "1 of 2 quotes unavailable", fx.Status())

	stocks, err := mon.Stocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 39500.5, stocks.Quotes["^N225"].Price)
	assert.Equal(t, int32(1), hits["spark"].Load())

	// Every read above was served from the primed cache.
	assert.Equal(t, int32(1), hits["usgs"].Load())
	assert.Equal(t, int32(1), hits["wire"].Load())
	assert.Equal(t, int32(2), hits["gdelt"].Load())

	// A forced refresh always goes upstream.
	_, err = mon.ForceRefresh(ctx, monitor.Earthquakes)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits["usgs"].Load())
}

func TestIntegration_FetchBatch(t *testing.T) {
	srv, _ := upstream(t)

	mon, err := newMonitor(testConfig(srv.URL), logger.Discard())
	require.NoError(t, err)

	b, err := mon.FetchBatch(context.Background(), quote.Fast, []string{"^N225", "USDJPY=X"})
	require.NoError(t, err)
	assert.Equal(t, "all 2 quotes available", b.Status())

	change, ok := b.Quotes["^N225"].Change()
	require.True(t, ok)
	assert.InDelta(t, 1.2833, change, 0.001)
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv, _ := upstream(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(srv.URL), logger.Discard()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
