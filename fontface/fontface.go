// Package fontface renders user-defined custom fonts into a document
// style block, and stamps the processed marker. At most one style block
// exists at a time; every injection replaces it wholesale.
package fontface

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/wudooh/mirror"
)

// StyleID is the id of the managed <style> element in the document head.
const StyleID = "wudoohCustomFontsStyle"

// markerName is the name of the processed <meta> marker.
const markerName = "wudooh"

// Descriptor names a font and its optional remote location. An empty
// URL means the font is locally installed on the reader's machine.
type Descriptor struct {
	Name string `json:"fontName"`
	URL  string `json:"url,omitempty"`
}

// CSS renders one @font-face rule per descriptor, in insertion order.
// Names are unique: the first descriptor for a name wins.
func CSS(fonts []Descriptor) string {
	var b strings.Builder
	seen := make(map[string]bool, len(fonts))
	for _, f := range fonts {
		if f.Name == "" || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		b.WriteString("@font-face { font-family: '")
		b.WriteString(f.Name)
		b.WriteString("'; src: ")
		if f.URL != "" {
			b.WriteString("url('")
			b.WriteString(f.URL)
			b.WriteString("')")
		} else {
			b.WriteString("local('")
			b.WriteString(f.Name)
			b.WriteString("')")
		}
		b.WriteString("; }\n")
	}
	return b.String()
}

// Inject replaces the managed style block in the document head with one
// derived from fonts. An empty slice just removes any prior block.
func Inject(doc *mirror.Document, fonts []Descriptor) {
	head := doc.Head()
	if head == nil {
		return
	}
	removeByID(head, StyleID)
	if len(fonts) == 0 {
		return
	}
	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
		Attr:     []html.Attribute{{Key: "id", Val: StyleID}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: CSS(fonts)})
	head.AppendChild(style)
}

// MarkProcessed appends the processed <meta> marker to the head.
// Idempotent: a second call leaves a single marker.
func MarkProcessed(doc *mirror.Document) {
	head := doc.Head()
	if head == nil || Processed(doc) {
		return
	}
	head.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Meta,
		Data:     "meta",
		Attr:     []html.Attribute{{Key: "name", Val: markerName}},
	})
}

// Processed reports whether the document carries the processed marker.
func Processed(doc *mirror.Document) bool {
	head := doc.Head()
	if head == nil {
		return false
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Meta && attrVal(c, "name") == markerName {
			return true
		}
	}
	return false
}

func removeByID(parent *html.Node, id string) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && attrVal(c, "id") == id {
			parent.RemoveChild(c)
		}
		c = next
	}
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
