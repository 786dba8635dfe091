// Package acled reads recent events from the Armed Conflict Location & Event Data API.
package acled

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/ratelimit"
)

const (
	// DefaultURL is the read endpoint.
	DefaultURL = "https://api.acleddata.com/acled/read"

	// SourceName labels records from this provider.
	SourceName = "ACLED"

	lookback = 30 * 24 * time.Hour
	limit    = 500
	fields   = "event_id_cnty|event_date|event_type|sub_event_type|country|admin1|latitude|longitude|fatalities|notes"
)

// EventFetcher fetches the last 30 days of events. It needs an API key and
// the registered email; without them Fetch reports an unconfigured error.
type EventFetcher struct {
	url     string
	apiKey  string
	email   string
	client  *resty.Client
	limiter *ratelimit.Limiter
	clock   clock.Clock
}

// NewEventFetcher creates a fetcher. An empty url means DefaultURL.
func NewEventFetcher(url, apiKey, email string, client *resty.Client, limiter *ratelimit.Limiter) *EventFetcher {
	if url == "" {
		url = DefaultURL
	}
	return &EventFetcher{
		url:     url,
		apiKey:  apiKey,
		email:   email,
		client:  client,
		limiter: limiter,
		clock:   clock.New(),
	}
}

// Configured reports whether credentials are present.
func (f *EventFetcher) Configured() bool {
	return f.apiKey != "" && f.email != ""
}

// Fetch returns recent events.
func (f *EventFetcher) Fetch(ctx context.Context) ([]hazard.Conflict, error) {
	if !f.Configured() {
		return nil, fetcher.NewUnconfiguredError("acled", "acled.api_key", "acled.email")
	}
	if err := f.limiter.Wait(ctx, ratelimit.APIHazards); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	from := f.clock.Now().UTC().Add(-lookback).Format("2006-01-02")
	body, err := fetcher.GetBytes(ctx, f.client, f.url, map[string]string{
		"key":              f.apiKey,
		"email":            f.email,
		"event_date":       from + "|",
		"event_date_where": ">=",
		"limit":            strconv.Itoa(limit),
		"fields":           fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch acled events: %w", err)
	}

	return Parse(body)
}

// Key returns the hierarchical key for this fetcher
func (f *EventFetcher) Key() string {
	return "conflicts:acled"
}

// Parse converts an ACLED read response. ACLED encodes numbers as strings.
func Parse(body []byte) ([]hazard.Conflict, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("acled: invalid JSON response")
	}
	doc := gjson.ParseBytes(body)
	if msg := doc.Get("error.message"); msg.Exists() {
		return nil, fetcher.NewClientError(int(doc.Get("error.status").Int()), msg.String())
	}

	rows := doc.Get("data").Array()
	out := make([]hazard.Conflict, 0, len(rows))
	for _, ev := range rows {
		out = append(out, hazard.Conflict{
			ID:         ev.Get("event_id_cnty").String(),
			Date:       hazard.ParseTime(ev.Get("event_date").String()),
			Type:       ev.Get("event_type").String(),
			SubType:    ev.Get("sub_event_type").String(),
			Country:    ev.Get("country").String(),
			Region:     ev.Get("admin1").String(),
			Lat:        ev.Get("latitude").Float(),
			Lng:        ev.Get("longitude").Float(),
			Fatalities: int(ev.Get("fatalities").Int()),
			Notes:      hazard.Truncate(ev.Get("notes").String(), hazard.NotesLimit),
			Source:     SourceName,
		})
	}
	return out, nil
}
