// Package quote defines the market quote record shared by all price strategies.
package quote

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Quote is the latest price for a symbol.
// PreviousClose is nil when fewer than two observations were available.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	PreviousClose *float64 `json:"previous_close,omitempty"`
}

// New builds a quote. A non-positive or non-finite previous close is dropped.
func New(symbol string, price float64, previousClose float64) Quote {
	q := Quote{Symbol: symbol, Price: price}
	if previousClose > 0 && !math.IsNaN(previousClose) && !math.IsInf(previousClose, 0) {
		pc := previousClose
		q.PreviousClose = &pc
	}
	return q
}

// Valid reports whether the quote carries a usable price.
func (q Quote) Valid() bool {
	if q.Symbol == "" || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price < 0 {
		return false
	}
	if q.PreviousClose != nil {
		pc := *q.PreviousClose
		if math.IsNaN(pc) || math.IsInf(pc, 0) {
			return false
		}
	}
	return true
}

// Change returns the percentage change against the previous close.
func (q Quote) Change() (float64, bool) {
	if q.PreviousClose == nil || *q.PreviousClose == 0 {
		return 0, false
	}
	return (q.Price - *q.PreviousClose) / *q.PreviousClose * 100, true
}

// ChangeText formats Change as "+1.23%", or "" when unknown.
func (q Quote) ChangeText() string {
	pct, ok := q.Change()
	if !ok {
		return ""
	}
	sign := ""
	if pct >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, pct)
}

// Direction of a move against the previous close.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// Direction is Flat when the previous close is unknown.
func (q Quote) Direction() Direction {
	switch {
	case q.PreviousClose == nil:
		return Flat
	case q.Price > *q.PreviousClose:
		return Up
	case q.Price < *q.PreviousClose:
		return Down
	}
	return Flat
}

// Mode selects the strategy priority order.
type Mode string

const (
	// Fast puts the cheapest strategies first, for sub-minute polling.
	Fast Mode = "fast"
	// Thorough puts the most complete strategies first, for periodic full refresh.
	Thorough Mode = "thorough"
)

// Batch is the result of fetching quotes for a symbol set.
type Batch struct {
	Mode      Mode             `json:"mode"`
	Quotes    map[string]Quote `json:"quotes"`
	Requested []string         `json:"requested"`
	Missing   []string         `json:"missing,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewBatch records which of the requested symbols were resolved.
func NewBatch(mode Mode, requested []string, quotes map[string]Quote, at time.Time) Batch {
	b := Batch{
		Mode:      mode,
		Quotes:    quotes,
		Requested: requested,
		UpdatedAt: at,
	}
	if b.Quotes == nil {
		b.Quotes = map[string]Quote{}
	}
	for _, sym := range requested {
		if _, ok := b.Quotes[sym]; !ok {
			b.Missing = append(b.Missing, sym)
		}
	}
	sort.Strings(b.Missing)
	return b
}

// Status summarizes coverage for display.
func (b Batch) Status() string {
	if len(b.Missing) == 0 {
		return fmt.Sprintf("all %d quotes available", len(b.Requested))
	}
	return fmt.Sprintf("%d of %d quotes unavailable", len(b.Missing), len(b.Requested))
}

// Empty reports whether no symbol was resolved.
func (b Batch) Empty() bool {
	return len(b.Quotes) == 0
}
