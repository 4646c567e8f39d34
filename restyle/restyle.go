// Package restyle applies readability styling to Arabic text nodes in a
// parsed HTML tree. Matched runs are wrapped in marker spans on first
// visit; later visits update the existing span's inline style in place,
// so re-applying is always safe.
package restyle

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/wudooh/arabic"
)

// MarkerAttr flags a wrapper span as produced by this system. A text
// node whose parent carries the marker is considered wrapped.
const MarkerAttr = "wudooh"

// KeepFont is the sentinel font name meaning "keep the page's font":
// no font-family override is emitted for it.
const KeepFont = "Original"

// Params are the styling parameters for one pass. Sizes are percentages
// of the surrounding text (150 → 1.5em).
type Params struct {
	TextSize   int
	LineHeight int
	Font       string
}

// Style renders the inline style attribute value for p.
func (p Params) Style() string {
	var b strings.Builder
	b.WriteString("font-size:")
	b.WriteString(em(p.TextSize))
	b.WriteString(";line-height:")
	b.WriteString(em(p.LineHeight))
	b.WriteString(";")
	if p.Font != "" && p.Font != KeepFont {
		b.WriteString("font-family:")
		b.WriteString(p.Font)
		b.WriteString(";")
	}
	return b.String()
}

func em(percent int) string {
	return strconv.FormatFloat(float64(percent)/100, 'f', -1, 64) + "em"
}

// Apply restyles one text node. Wrapped nodes get their wrapper's style
// rewritten in place; unwrapped nodes get their Arabic runs spliced into
// marker spans, preserving sibling order. Editable surfaces and detached
// nodes are left untouched.
func Apply(unit *html.Node, p Params) {
	if unit == nil || unit.Type != html.TextNode {
		return
	}
	parent := unit.Parent
	if parent == nil {
		return
	}
	if editable(parent) {
		return
	}
	if attr(parent, MarkerAttr) != "" {
		setAttr(parent, "style", p.Style())
		return
	}

	runs := arabic.Runs(unit.Data)
	if len(runs) == 0 {
		return
	}

	text := unit.Data
	next := unit.NextSibling
	pos := 0
	for _, r := range runs {
		if r[0] > pos {
			parent.InsertBefore(textNode(text[pos:r[0]]), next)
		}
		span := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Span,
			Data:     "span",
			Attr: []html.Attribute{
				{Key: MarkerAttr, Val: "true"},
				{Key: "style", Val: p.Style()},
			},
		}
		span.AppendChild(textNode(text[r[0]:r[1]]))
		parent.InsertBefore(span, next)
		pos = r[1]
	}
	if pos < len(text) {
		parent.InsertBefore(textNode(text[pos:]), next)
	}
	parent.RemoveChild(unit)
}

// Scan returns, in document order, every descendant text node of root
// (root included) that contains Arabic text. The slice is materialised
// eagerly: callers may mutate the tree freely after Scan returns without
// skipping or duplicating nodes. Script, style, noscript and textarea
// subtrees are never entered.
func Scan(root *html.Node) []*html.Node {
	if root == nil {
		return nil
	}
	var units []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if arabic.Matches(n.Data) {
				units = append(units, n)
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Textarea:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return units
}

// editable reports whether n or any ancestor is a user-editable surface.
func editable(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Input, atom.Textarea:
			return true
		}
		for _, a := range n.Attr {
			if a.Key == "contenteditable" && a.Val != "false" {
				return true
			}
		}
	}
	return false
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
