package feed

import (
	"strings"

	xhtml "golang.org/x/net/html"
)

// SummaryLimit is the maximum summary length in characters.
const SummaryLimit = 500

// stripHTML drops markup, decodes entities and collapses whitespace.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case xhtml.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			if isRawText(name) {
				skip++
			}
			breakAt(&b, name)
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			if isRawText(name) && skip > 0 {
				skip--
			}
			breakAt(&b, name)
		case xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			breakAt(&b, name)
		}
	}
}

func isRawText(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// breakAt separates words across block-level tags so "<p>a</p><p>b</p>" reads "a b".
func breakAt(b *strings.Builder, name []byte) {
	switch string(name) {
	case "p", "br", "div", "li", "ul", "ol", "tr", "td", "th", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "hr", "img":
		b.WriteByte(' ')
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
