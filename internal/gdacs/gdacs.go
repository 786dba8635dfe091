// Package gdacs reads the Global Disaster Alert and Coordination System event list.
package gdacs

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"worldmonitor/internal/fetcher"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/ratelimit"
)

const (
	// DefaultURL is the event search endpoint.
	DefaultURL = "https://www.gdacs.org/gdacsapi/api/events/geteventlist/SEARCH"

	// SourceName labels records from this provider.
	SourceName = "GDACS"

	// MaxEvents caps how many features are kept from one response.
	MaxEvents = 50
)

// EventFetcher fetches current disaster alerts of every level
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

// Fetch returns up to MaxEvents alerts.
func (f *EventFetcher) Fetch(ctx context.Context) ([]hazard.Disaster, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIHazards); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := fetcher.GetBytes(ctx, f.client, f.url, map[string]string{
		"alertlevel": "Green;Orange;Red",
		"eventlist":  "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gdacs events: %w", err)
	}

	return Parse(body)
}

// Key returns the hierarchical key for this fetcher
func (f *EventFetcher) Key() string {
	return "disasters:gdacs"
}

// Parse converts a GDACS FeatureCollection, keeping the first MaxEvents features.
func Parse(body []byte) ([]hazard.Disaster, error) {
	if !gjson.ValidBytes(body) {
		return nil, fetcher.NewValidationError("gdacs: invalid JSON response")
	}

	features := gjson.GetBytes(body, "features").Array()
	if len(features) > MaxEvents {
		features = features[:MaxEvents]
	}

	out := make([]hazard.Disaster, 0, len(features))
	for _, feat := range features {
		props := feat.Get("properties")
		d := hazard.Disaster{
			ID:         props.Get("eventid").String(),
			Title:      props.Get("name").String(),
			Category:   props.Get("eventtype").String(),
			AlertLevel: props.Get("alertlevel").String(),
			Severity:   props.Get("severitydata.severitytext").String(),
			Date:       hazard.ParseTime(props.Get("fromdate").String()),
			Source:     SourceName,
		}
		if d.Title == "" {
			d.Title = props.Get("eventname").String()
		}
		if d.Severity == "" {
			d.Severity = props.Get("severity.severity_value").String()
		}
		d.Lng, d.Lat = hazard.LngLat(feat.Get("geometry.coordinates"))
		out = append(out, d)
	}
	return out, nil
}
