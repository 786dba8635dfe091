package monitor

import (
	"context"
	"fmt"

	"worldmonitor/internal/feed"
	"worldmonitor/internal/hazard"
	"worldmonitor/internal/quote"
)

func get[T any](ctx context.Context, s *Source[T], name string) (T, error) {
	if s == nil {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return s.Get(ctx)
}

// News returns aggregated feed items, newest first.
func (m *Monitor) News(ctx context.Context) ([]feed.Item, error) {
	return get(ctx, m.news, News)
}

// Earthquakes returns significant earthquakes, strongest first.
func (m *Monitor) Earthquakes(ctx context.Context) ([]hazard.Earthquake, error) {
	return get(ctx, m.earthquakes, Earthquakes)
}

// NaturalDisasters returns open natural events from every disaster provider.
func (m *Monitor) NaturalDisasters(ctx context.Context) ([]hazard.Disaster, error) {
	return get(ctx, m.disasters, NaturalDisasters)
}

// GDELTEvents returns recent geopolitical articles.
func (m *Monitor) GDELTEvents(ctx context.Context) ([]hazard.Article, error) {
	return get(ctx, m.gdeltEvents, GDELTEvents)
}

// GDELTGeo returns geolocated mention counts.
func (m *Monitor) GDELTGeo(ctx context.Context) ([]hazard.GeoPoint, error) {
	return get(ctx, m.gdeltGeo, GDELTGeo)
}

// ConflictEvents returns conflict events from the first provider that has any.
func (m *Monitor) ConflictEvents(ctx context.Context) ([]hazard.Conflict, error) {
	return get(ctx, m.conflicts, ConflictEvents)
}

// FX returns the currency and commodity quote batch.
func (m *Monitor) FX(ctx context.Context) (quote.Batch, error) {
	return get(ctx, m.fx, QuotesFX)
}

// Stocks returns the equity and index quote batch.
func (m *Monitor) Stocks(ctx context.Context) (quote.Batch, error) {
	return get(ctx, m.stocks, QuotesStocks)
}
