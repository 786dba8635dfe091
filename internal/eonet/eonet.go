// Package eonet reads open events from NASA's Earth Observatory Natural Event Tracker.
package eonet

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
	// DefaultURL is the v3 events endpoint.
	DefaultURL = "https://eonet.gsfc.nasa.gov/api/v3/events"

	// SourceName labels records from this provider.
	SourceName = "NASA EONET"

	defaultLimit = 50
)

// EventFetcher fetches open natural events
type EventFetcher struct {
	url     string
	limit   int
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewEventFetcher creates a fetcher. An empty url means DefaultURL.
func NewEventFetcher(url string, client *resty.Client, limiter *ratelimit.Limiter) *EventFetcher {
	if url == "" {
		url = DefaultURL
	}
	return &EventFetcher{url: url, limit: defaultLimit, client: client, limiter: limiter}
}

// Fetch returns open events in the order EONET lists them.
func (f *EventFetcher) Fetch(ctx context.Context) ([]hazard.Disaster, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIHazards); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := fetcher.GetBytes(ctx, f.client, f.url, map[string]string{
		"status": "open",
		"limit":  strconv.Itoa(f.limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eonet events: %w", err)
	}

	return Parse(body)
}

// Key returns the hierarchical key for this fetcher
func (f *EventFetcher) Key() string {
	return "disasters:eonet"
}

// Parse converts an EONET events document. Position and date come from the
// most recent geometry entry.
func Parse(body []byte) ([]hazard.Disaster, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("eonet: invalid JSON response")
	}

	events := gjson.GetBytes(body, "events").Array()
	out := make([]hazard.Disaster, 0, len(events))
	for _, ev := range events {
		d := hazard.Disaster{
			ID:       ev.Get("id").String(),
			Title:    ev.Get("title").String(),
			Category: ev.Get("categories.0.title").String(),
			Source:   SourceName,
		}
		if d.Category == "" {
			d.Category = "Unknown"
		}
		if geom := ev.Get("geometry").Array(); len(geom) > 0 {
			last := geom[len(geom)-1]
			d.Lng, d.Lat = hazard.LngLat(last.Get("coordinates"))
			d.Date = hazard.ParseTime(last.Get("date").String())
		}
		out = append(out, d)
	}
	return out, nil
}
