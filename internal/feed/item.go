// Package feed turns raw RSS 2.0, Atom and RDF documents into canonical items.
package feed

import "time"

// Item is one normalized article.
type Item struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
	IsAlert   bool      `json:"is_alert"`
}

// Dialect is the wire format a document was recognized as.
type Dialect int

const (
	Unknown Dialect = iota
	RSS2
	Atom
	RDF
)

func (d Dialect) String() string {
	switch d {
	case RSS2:
		return "rss2"
	case Atom:
		return "atom"
	case RDF:
		return "rdf"
	default:
		return "unknown"
	}
}
