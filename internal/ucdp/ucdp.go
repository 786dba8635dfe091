// Package ucdp reads georeferenced events from the Uppsala Conflict Data Program API.
// The API is public and needs no credentials.
package ucdp

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
	// DefaultURL is the GED events endpoint.
	DefaultURL = "https://ucdpapi.pcr.uu.se/api/gedevents/24.1"

	// SourceName labels records from this provider.
	SourceName = "UCDP"

	pageSize = 100
)

// violence maps type_of_violence codes to labels.
var violence = map[int64]string{
	1: "Battle",
	2: "Non-state conflict",
	3: "One-sided violence",
}

// EventFetcher fetches the first page of GED events
type EventFetcher struct {
	url     string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewEventFetcher creates a fetcher. An empty url means DefaultURL.
func NewEventFetcher(url string, client *resty.Client, limiter *ratelimit.Limiter) *EventFetcher {
	if url == "" {
		url = DefaultURL
	}
	return &EventFetcher{url: url, client: client, limiter: limiter}
}

// Fetch returns one page of events.
func (f *EventFetcher) Fetch(ctx context.Context) ([]hazard.Conflict, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIHazards); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := fetcher.GetBytes(ctx, f.client, f.url, map[string]string{
		"pagesize": strconv.Itoa(pageSize),
		"page":     "0",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ucdp events: %w", err)
	}

	return Parse(body)
}

// Key returns the hierarchical key for this fetcher
func (f *EventFetcher) Key() string {
	return "conflicts:ucdp"
}

// Parse converts a GED events page.
func Parse(body []byte) ([]hazard.Conflict, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("ucdp: invalid JSON response")
	}

	rows := gjson.GetBytes(body, "Result").Array()
	out := make([]hazard.Conflict, 0, len(rows))
	for _, ev := range rows {
		sideA, sideB := ev.Get("side_a").String(), ev.Get("side_b").String()
		kind, ok := violence[ev.Get("type_of_violence").Int()]
		if !ok {
			kind = violence[1]
		}
		out = append(out, hazard.Conflict{
			ID:         ev.Get("id").String(),
			Date:       hazard.ParseTime(ev.Get("date_start").String()),
			Type:       kind,
			SubType:    sideA,
			Country:    ev.Get("country").String(),
			Region:     ev.Get("region").String(),
			Lat:        ev.Get("latitude").Float(),
			Lng:        ev.Get("longitude").Float(),
			Fatalities: int(ev.Get("best").Int()),
			Notes:      sideA + " vs " + sideB,
			Source:     SourceName,
		})
	}
	return out, nil
}
