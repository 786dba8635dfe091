// Package alert tags text records that mention configured alert keywords.
package alert

import "strings"

// DefaultKeywords is the built-in alert list.
var DefaultKeywords = []string{
	"war", "invasion", "nuclear", "sanctions", "missile",
	"coup", "terror attack", "martial law", "ceasefire",
	"escalation", "troops", "airstrike", "drone strike",
	"explosion", "emergency", "evacuation", "chemical",
	"biological", "cyber attack", "blackout",
}

// Classifier matches keywords as case-insensitive substrings.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	keywords []string
}

// NewClassifier lowercases, trims and de-duplicates keywords, keeping their order.
func NewClassifier(keywords []string) *Classifier {
	seen := make(map[string]struct{}, len(keywords))
	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		kws = append(kws, kw)
	}
	return &Classifier{keywords: kws}
}

// Keywords returns a copy of the configured keywords.
func (c *Classifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

// IsAlert reports whether title or summary mention any keyword.
func (c *Classifier) IsAlert(title, summary string) bool {
	if c == nil {
		return false
	}
	return c.Match(title, summary) != ""
}

// Match returns the first keyword found, or "".
func (c *Classifier) Match(title, summary string) string {
	text := strings.ToLower(title + " " + summary)
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}

// IsAlert is the stateless form of Classifier.IsAlert.
func IsAlert(title, summary string, keywords []string) bool {
	text := strings.ToLower(title + " " + summary)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
