package feed

import (
	"time"

	"github.com/benbjohnson/clock"

	"worldmonitor/internal/alert"
)

// DefaultMaxItems caps the items taken from one document.
const DefaultMaxItems = 20

type config struct {
	clock      clock.Clock
	classifier *alert.Classifier
	maxItems   int
}

// Option is a function that sets a value in a config.
type Option func(*config)

// WithClock sets the clock used for items whose date cannot be parsed.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithClassifier sets the alert classifier applied to each item.
func WithClassifier(c *alert.Classifier) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.classifier = c
		}
	}
}

// WithMaxItems overrides DefaultMaxItems. Values below one are ignored.
func WithMaxItems(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.maxItems = n
		}
	}
}

// Parser normalizes feed documents. It is safe for concurrent use.
type Parser struct {
	clock      clock.Clock
	classifier *alert.Classifier
	maxItems   int
}

// NewParser creates a Parser. Without WithClassifier it tags using alert.DefaultKeywords.
func NewParser(opts ...Option) *Parser {
	cfg := config{
		clock:    clock.New(),
		maxItems: DefaultMaxItems,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.classifier == nil {
		cfg.classifier = alert.NewClassifier(alert.DefaultKeywords)
	}
	return &Parser{
		clock:      cfg.clock,
		classifier: cfg.classifier,
		maxItems:   cfg.maxItems,
	}
}

// Detect reports the dialect of raw. Malformed documents are Unknown with the parse error.
func Detect(raw []byte) (Dialect, error) {
	root, err := parseTree(raw)
	if err != nil {
		return Unknown, err
	}
	return detect(root), nil
}

// Parse returns the items in raw in document order, at most the configured cap.
// Malformed or unrecognized documents yield no items.
func (p *Parser) Parse(raw []byte, source string) []Item {
	root, err := parseTree(raw)
	if err != nil {
		return nil
	}

	var entries []*node
	var extract func(*node) Item
	switch detect(root) {
	case RSS2:
		for _, ch := range root.all("channel", "") {
			entries = append(entries, ch.all("item", "")...)
		}
		extract = p.rss2Item
	case Atom:
		if root.is(nsAtom, "entry") {
			entries = []*node{root}
		} else {
			entries = root.all("entry", nsAtom, "")
		}
		extract = p.atomItem
	case RDF:
		entries = root.all("item", nsRSS1)
		extract = p.rdfItem
	default:
		return nil
	}

	if len(entries) > p.maxItems {
		entries = entries[:p.maxItems]
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		it := extract(e)
		it.Source = source
		it.IsAlert = p.classifier.IsAlert(it.Title, it.Summary)
		items = append(items, it)
	}
	return items
}

func (p *Parser) rss2Item(e *node) Item {
	summary := e.first("description", "")
	if summary == "" {
		summary = e.first("encoded", nsRSSContent)
	}
	date := e.first("pubDate", "")
	if date == "" {
		date = e.first("date", nsDC, "dc")
	}
	link := e.first("link", "")
	if link == "" {
		link = e.first("guid", "")
	}
	return Item{
		Title:     stripHTML(e.first("title", "")),
		Summary:   truncate(stripHTML(summary), SummaryLimit),
		Link:      link,
		Published: p.published(date),
	}
}

func (p *Parser) atomItem(e *node) Item {
	summary := e.first("summary", nsAtom, "")
	if summary == "" {
		summary = e.first("content", nsAtom, "")
	}
	date := e.first("published", nsAtom, "")
	if date == "" {
		date = e.first("updated", nsAtom, "")
	}
	return Item{
		Title:     stripHTML(e.first("title", nsAtom, "")),
		Summary:   truncate(stripHTML(summary), SummaryLimit),
		Link:      atomLink(e),
		Published: p.published(date),
	}
}

// atomLink prefers rel="alternate" (or no rel) and falls back to any href or link text.
func atomLink(e *node) string {
	links := e.all("link", nsAtom, "")
	for _, l := range links {
		if rel := l.attr("rel"); rel != "" && rel != "alternate" {
			continue
		}
		if href := l.attr("href"); href != "" {
			return href
		}
	}
	for _, l := range links {
		if href := l.attr("href"); href != "" {
			return href
		}
		if s := l.value(); s != "" {
			return s
		}
	}
	return ""
}

func (p *Parser) rdfItem(e *node) Item {
	link := e.first("link", nsRSS1)
	if link == "" {
		link = attrNS(e, nsRDF, "about")
	}
	return Item{
		Title:     stripHTML(e.first("title", nsRSS1)),
		Summary:   truncate(stripHTML(e.first("description", nsRSS1)), SummaryLimit),
		Link:      link,
		Published: p.published(e.first("date", nsDC, "dc")),
	}
}

func attrNS(n *node, space, local string) string {
	for _, a := range n.attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (p *Parser) published(s string) time.Time {
	if t, ok := parseDate(s); ok {
		return t
	}
	return p.clock.Now().UTC()
}
