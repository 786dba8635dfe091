// Package hazard defines the records produced by the earthquake, disaster,
// news-event and conflict providers.
package hazard

import (
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Earthquake is one USGS event.
type Earthquake struct {
	ID        string    `json:"id"`
	Magnitude float64   `json:"magnitude"`
	Place     string    `json:"place"`
	Time      time.Time `json:"time"`
	URL       string    `json:"url"`
	Tsunami   bool      `json:"tsunami"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Depth     float64   `json:"depth"`
	Alert     string    `json:"alert,omitempty"`
	Felt      int       `json:"felt"`
}

// Disaster is an open natural event from EONET or GDACS.
type Disaster struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	AlertLevel string    `json:"alert_level,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Date       time.Time `json:"date,omitzero"`
	Source     string    `json:"source"`
}

// Article is a GDELT document hit.
type Article struct {
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Domain   string    `json:"source"`
	Language string    `json:"language"`
	SeenAt   time.Time `json:"seendate,omitzero"`
	Image    string    `json:"socialimage,omitempty"`
	Tone     float64   `json:"tone"`
}

// GeoPoint is an aggregated GDELT location.
type GeoPoint struct {
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Count int     `json:"count"`
	URL   string  `json:"url,omitempty"`
}

// Conflict is an armed-conflict or protest event from ACLED or UCDP.
type Conflict struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date,omitzero"`
	Type       string    `json:"type"`
	SubType    string    `json:"sub_type"`
	Country    string    `json:"country"`
	Region     string    `json:"region"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Fatalities int       `json:"fatalities"`
	Notes      string    `json:"notes"`
	Source     string    `json:"source"`
}

// NotesLimit caps Conflict.Notes in characters.
const NotesLimit = 500

// SortByMagnitude orders earthquakes strongest first.
func SortByMagnitude(qs []Earthquake) {
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].Magnitude > qs[j].Magnitude
	})
}

// LngLat reads a GeoJSON position. Missing axes are zero.
func LngLat(coords gjson.Result) (lng, lat float64) {
	pos := coords.Array()
	if len(pos) < 2 {
		return 0, 0
	}
	return pos[0].Float(), pos[1].Float()
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102T150405Z",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes the providers emit and returns UTC.
// The zero time means the value was absent or unrecognized.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Truncate cuts s to n characters.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
