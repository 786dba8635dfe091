package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	nsAtom       = "http://www.w3.org/2005/Atom"
	nsRDF        = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsRSS1       = "http://purl.org/rss/1.0/"
	nsDC         = "http://purl.org/dc/elements/1.1/"
	nsRSSContent = "http://purl.org/rss/1.0/modules/content/"
)

var errNoRoot = errors.New("feed: document has no root element")

// node is a minimal element tree. Names carry resolved namespace URLs.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     strings.Builder
	children []*node
}

func parseTree(raw []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("feed: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errNoRoot
	}
	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

func (n *node) is(space, local string) bool {
	return n.name.Local == local && n.name.Space == space
}

// all returns direct children named local in any of the given namespaces.
func (n *node) all(local string, spaces ...string) []*node {
	var out []*node
	for _, c := range n.children {
		for _, space := range spaces {
			if c.is(space, local) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// first returns the trimmed text of the first matching child with non-empty text.
func (n *node) first(local string, spaces ...string) string {
	for _, c := range n.all(local, spaces...) {
		if s := c.value(); s != "" {
			return s
		}
	}
	return ""
}

func (n *node) value() string {
	return strings.TrimSpace(n.text.String())
}

func (n *node) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local == local && a.Name.Space == "" {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// detect classifies a parsed document. RSS 2.0 wins over Atom, Atom over RDF.
func detect(root *node) Dialect {
	if root == nil {
		return Unknown
	}
	for _, ch := range root.all("channel", "") {
		if len(ch.all("item", "")) > 0 {
			return RSS2
		}
	}
	if root.is(nsAtom, "entry") || len(root.all("entry", nsAtom, "")) > 0 {
		return Atom
	}
	if len(root.all("item", nsRSS1)) > 0 {
		return RDF
	}
	return Unknown
}
