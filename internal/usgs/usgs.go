// Package usgs reads the USGS significant earthquake GeoJSON summary.
package usgs

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/ratelimit"
)

// DefaultURL is the M4.5+ past-day summary feed.
const DefaultURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_day.geojson"

// EarthquakeFetcher fetches recent significant earthquakes
type EarthquakeFetcher struct {
	url     string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewEarthquakeFetcher creates a fetcher. An empty url means DefaultURL.
func NewEarthquakeFetcher(url string, client *resty.Client, limiter *ratelimit.Limiter) *EarthquakeFetcher {
	if url == "" {
		url = DefaultURL
	}
	return &EarthquakeFetcher{url: url, client: client, limiter: limiter}
}

// Fetch returns the feed's earthquakes, strongest first.
func (f *EarthquakeFetcher) Fetch(ctx context.Context) ([]hazard.Earthquake, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIHazards); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := fetcher.GetBytes(ctx, f.client, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earthquakes: %w", err)
	}

	quakes, err := Parse(body)
	if err != nil {
		return nil, err
	}
	hazard.SortByMagnitude(quakes)
	return quakes, nil
}

// Key returns the hierarchical key for this fetcher
func (f *EarthquakeFetcher) Key() string {
	return "hazards:usgs"
}

// Parse converts a GeoJSON FeatureCollection into earthquakes in document order.
func Parse(body []byte) ([]hazard.Earthquake, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("usgs: invalid JSON response")
	}

	features := gjson.GetBytes(body, "features").Array()
	quakes := make([]hazard.Earthquake, 0, len(features))
	for _, feat := range features {
		props := feat.Get("properties")
		coords := feat.Get("geometry.coordinates").Array()
		q := hazard.Earthquake{
			ID:        feat.Get("id").String(),
			Magnitude: props.Get("mag").Float(),
			Place:     props.Get("place").String(),
			URL:       props.Get("url").String(),
			Tsunami:   props.Get("tsunami").Int() != 0,
			Alert:     props.Get("alert").String(),
			Felt:      int(props.Get("felt").Int()),
		}
		if q.Place == "" {
			q.Place = "Unknown"
		}
		if ms := props.Get("time"); ms.Exists() {
			q.Time = time.UnixMilli(ms.Int()).UTC()
		}
		if len(coords) >= 2 {
			q.Lng, q.Lat = coords[0].Float(), coords[1].Float()
		}
		if len(coords) >= 3 {
			q.Depth = coords[2].Float()
		}
		quakes = append(quakes, q)
	}
	return quakes, nil
}
