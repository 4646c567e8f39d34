// Package mirror maintains a parsed HTML tree addressable by simple
// XPath expressions, and replays mutation records against it. It is the
// in-process stand-in for the live page DOM: the restyling engine
// operates on the mirror, and browser-mode sinks write the results back.
//
// The XPath grammar is the subset the page observer emits:
// /html/body/div[2]/p/text()[1] — tag segments with optional 1-based
// same-tag indices, and text()/comment() leaves.
package mirror

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/wudooh/mutation"
)

// Document wraps a parsed HTML tree. It is not safe for concurrent
// mutation; the watcher loop is its single logical owner and callers on
// other goroutines must coordinate through the same lock.
type Document struct {
	root *html.Node
}

// Parse reads and parses a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("mirror: parse: %w", err)
	}
	return &Document{root: root}, nil
}

// FromNode wraps an already-parsed document node.
func FromNode(root *html.Node) *Document {
	return &Document{root: root}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element, or nil.
func (d *Document) Body() *html.Node { return findAtom(d.root, atom.Body) }

// Head returns the head element, or nil.
func (d *Document) Head() *html.Node { return findAtom(d.root, atom.Head) }

// Reset replaces the whole tree from serialised HTML (doc_reset).
func (d *Document) Reset(data []byte) error {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("mirror: reset: %w", err)
	}
	d.root = root
	return nil
}

// Render serialises the whole document.
func (d *Document) Render() ([]byte, error) {
	var b bytes.Buffer
	if err := html.Render(&b, d.root); err != nil {
		return nil, fmt.Errorf("mirror: render: %w", err)
	}
	return b.Bytes(), nil
}

// RenderSubtree serialises a single subtree.
func RenderSubtree(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", fmt.Errorf("mirror: render subtree: %w", err)
	}
	return b.String(), nil
}

// Resolve walks an XPath to its node. Unresolvable paths return nil:
// a node that has vanished between observation and replay is a normal
// race, not an error.
func (d *Document) Resolve(path string) *html.Node {
	if d == nil || d.root == nil || !strings.HasPrefix(path, "/") {
		return nil
	}
	n := d.root
	for _, seg := range strings.Split(path[1:], "/") {
		if seg == "" {
			return nil
		}
		name, idx := splitSegment(seg)
		n = childAt(n, name, idx)
		if n == nil {
			return nil
		}
	}
	return n
}

// Insert replays an insert record: the new subtree is spliced in at the
// position its XPath names. Returns the inserted node, or nil when the
// parent cannot be resolved.
func (d *Document) Insert(rec mutation.Record) *html.Node {
	parentPath, leaf := splitLast(rec.XPath)
	parent := d.Resolve(parentPath)
	if parent == nil {
		return nil
	}

	var node *html.Node
	if rec.NodeType == 3 {
		data := rec.Value
		if data == "" {
			data = rec.HTML
		}
		node = &html.Node{Type: html.TextNode, Data: data}
	} else {
		nodes, err := html.ParseFragment(strings.NewReader(rec.HTML), fragmentContext(parent))
		if err != nil || len(nodes) == 0 {
			return nil
		}
		node = nodes[0]
	}

	name, idx := splitSegment(leaf)
	ref := childAt(parent, name, idx)
	parent.InsertBefore(node, ref) // ref nil appends
	return node
}

// SetText replays a character-data record. Returns the text node and
// whether the value actually changed from the record's previous value.
func (d *Document) SetText(rec mutation.Record) (*html.Node, bool) {
	n := d.Resolve(rec.XPath)
	if n == nil || n.Type != html.TextNode {
		return nil, false
	}
	n.Data = rec.Value
	return n, rec.Value != rec.OldValue
}

// Remove replays a remove record. Missing nodes are ignored.
func (d *Document) Remove(rec mutation.Record) {
	n := d.Resolve(rec.XPath)
	if n == nil || n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// XPathOf computes the XPath of a node within this document, using the
// same grammar Resolve accepts. Detached nodes yield "".
func XPathOf(n *html.Node) string {
	var parts []string
	for ; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		seg := segmentFor(n)
		if seg == "" {
			return ""
		}
		parts = append([]string{seg}, parts...)
	}
	if n == nil {
		return "" // never reached a document root: detached
	}
	return "/" + strings.Join(parts, "/")
}

func segmentFor(n *html.Node) string {
	var name string
	switch n.Type {
	case html.ElementNode:
		name = n.Data
	case html.TextNode:
		name = "text()"
	case html.CommentNode:
		name = "comment()"
	default:
		return ""
	}

	if n.Parent == nil {
		return name
	}
	idx, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if !sameKind(c, n) {
			continue
		}
		total++
		if c == n {
			idx = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", name, idx)
	}
	return name
}

func sameKind(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return a.Data == b.Data
	}
	return true
}

// splitSegment parses "div[2]" into ("div", 2). Missing index means 1.
func splitSegment(seg string) (string, int) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, 1
	}
	idx, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil || idx < 1 {
		return seg[:open], 1
	}
	return seg[:open], idx
}

// splitLast separates a path into its parent path and final segment.
func splitLast(path string) (string, string) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/", strings.TrimPrefix(path, "/")
	}
	return path[:i], path[i+1:]
}

func childAt(parent *html.Node, name string, idx int) *html.Node {
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		switch name {
		case "text()":
			if c.Type != html.TextNode {
				continue
			}
		case "comment()":
			if c.Type != html.CommentNode {
				continue
			}
		default:
			if c.Type != html.ElementNode || c.Data != name {
				continue
			}
		}
		count++
		if count == idx {
			return c
		}
	}
	return nil
}

func fragmentContext(parent *html.Node) *html.Node {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	if parent.Type == html.ElementNode {
		ctx.Data = parent.Data
		ctx.DataAtom = parent.DataAtom
	}
	return ctx
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}
