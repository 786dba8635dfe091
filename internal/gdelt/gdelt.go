// Package gdelt queries the GDELT DOC 2.0 API for recent geopolitical coverage.
package gdelt

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/ratelimit"
)

const (
	// DefaultURL is the DOC API endpoint.
	DefaultURL = "https://api.gdeltproject.org/api/v2/doc/doc"

	// DefaultEventsQuery selects article coverage.
	DefaultEventsQuery = "conflict OR crisis OR military"
	// DefaultGeoQuery selects map coverage.
	DefaultGeoQuery = "conflict OR crisis"

	eventsMaxRecords = 50
	geoMaxRecords    = 200
	timespan         = "24h"
)

// Client wraps the DOC API endpoint
type Client struct {
	url     string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewClient creates a client. An empty url means DefaultURL.
func NewClient(url string, client *resty.Client, limiter *ratelimit.Limiter) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{url: url, client: client, limiter: limiter}
}

func (c *Client) get(ctx context.Context, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIHazards); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}
	body, err := fetcher.GetBytes(ctx, c.client, c.url, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query gdelt (%s): %w", params["mode"], err)
	}
	return body, nil
}

// Articles returns the newest articles matching query over the past day.
func (c *Client) Articles(ctx context.Context, query string) ([]hazard.Article, error) {
	if query == "" {
		query = DefaultEventsQuery
	}
	body, err := c.get(ctx, map[string]string{
		"query":      query,
		"mode":       "artlist",
		"maxrecords": strconv.Itoa(eventsMaxRecords),
		"format":     "json",
		"sort":       "datedesc",
		"timespan":   timespan,
	})
	if err != nil {
		return nil, err
	}
	return ParseArticles(body)
}

// Points returns geolocated mention counts matching query over the past day.
func (c *Client) Points(ctx context.Context, query string) ([]hazard.GeoPoint, error) {
	if query == "" {
		query = DefaultGeoQuery
	}
	body, err := c.get(ctx, map[string]string{
		"query":      query,
		"mode":       "pointdata",
		"maxrecords": strconv.Itoa(geoMaxRecords),
		"format":     "geojson",
		"timespan":   timespan,
	})
	if err != nil {
		return nil, err
	}
	return ParsePoints(body)
}

// ParseArticles converts an artlist response.
func ParseArticles(body []byte) ([]hazard.Article, error) {
	if !gjson.ValidBytes(body) {
		// GDELT answers malformed queries with a plain-text message and status 200.
		return nil, fetcher.NewValidationError("gdelt: non-JSON artlist response")
	}

	arts := gjson.GetBytes(body, "articles").Array()
	out := make([]hazard.Article, 0, len(arts))
	for _, a := range arts {
		out = append(out, hazard.Article{
			Title:    a.Get("title").String(),
			URL:      a.Get("url").String(),
			Domain:   a.Get("domain").String(),
			Language: a.Get("language").String(),
			SeenAt:   hazard.ParseTime(a.Get("seendate").String()),
			Image:    a.Get("socialimage").String(),
			Tone:     a.Get("tone").Float(),
		})
	}
	return out, nil
}

// ParsePoints accepts either a GeoJSON FeatureCollection or a bare array of points.
func ParsePoints(body []byte) ([]hazard.GeoPoint, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("gdelt: non-JSON pointdata response")
	}

	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		rows := doc.Array()
		out := make([]hazard.GeoPoint, 0, len(rows))
		for _, r := range rows {
			p := hazard.GeoPoint{
				Name:  r.Get("name").String(),
				Lat:   firstOf(r, "lat", "latitude").Float(),
				Lng:   firstOf(r, "lng", "lon", "longitude").Float(),
				Count: int(r.Get("count").Int()),
				URL:   r.Get("url").String(),
			}
			out = append(out, p)
		}
		return out, nil
	}

	features := doc.Get("features").Array()
	out := make([]hazard.GeoPoint, 0, len(features))
	for _, f := range features {
		props := f.Get("properties")
		p := hazard.GeoPoint{
			Name:  props.Get("name").String(),
			Count: int(props.Get("count").Int()),
			URL:   props.Get("shareimage").String(),
		}
		p.Lng, p.Lat = hazard.LngLat(f.Get("geometry.coordinates"))
		out = append(out, p)
	}
	return out, nil
}

func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// EventsFetcher adapts Articles to the coordinator
type EventsFetcher struct {
	client *Client
	query  string
}

// NewEventsFetcher wraps client for the article list.
func NewEventsFetcher(client *Client, query string) *EventsFetcher {
	return &EventsFetcher{client: client, query: query}
}

// Fetch returns the article list.
func (f *EventsFetcher) Fetch(ctx context.Context) ([]hazard.Article, error) {
	return f.client.Articles(ctx, f.query)
}

// Key returns the hierarchical key for this fetcher
func (f *EventsFetcher) Key() string { return "events:gdelt" }

// GeoFetcher adapts Points to the coordinator
type GeoFetcher struct {
	client *Client
	query  string
}

// NewGeoFetcher wraps client for point data.
func NewGeoFetcher(client *Client, query string) *GeoFetcher {
	return &GeoFetcher{client: client, query: query}
}

// Fetch returns the point data.
func (f *GeoFetcher) Fetch(ctx context.Context) ([]hazard.GeoPoint, error) {
	return f.client.Points(ctx, f.query)
}

// Key returns the hierarchical key for this fetcher
func (f *GeoFetcher) Key() string { return "geo:gdelt" }
