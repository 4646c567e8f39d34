package mirror

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/wudooh/mutation"
)

const page = `<html><head><title>t</title></head><body>` +
	`<div id="a"><p>first</p><p>second</p></div>` +
	`<div id="b">tail</div>` +
	`</body></html>`

func parse(t *testing.T) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestResolve(t *testing.T) {
	d := parse(t)
	tests := []struct {
		path string
		want string // element Data or text content; "" = expect nil
	}{
		{"/html", "html"},
		{"/html/body", "body"},
		{"/html/body/div", "div"},
		{"/html/body/div[2]", "div"},
		{"/html/body/div[1]/p[2]", "p"},
		{"/html/body/div[1]/p[2]/text()", "second"},
		{"/html/body/div[2]/text()", "tail"},
		{"/html/body/div[3]", ""},
		{"/html/body/span", ""},
		{"relative/path", ""},
	}
	for _, tt := range tests {
		n := d.Resolve(tt.path)
		if tt.want == "" {
			if n != nil {
				t.Errorf("Resolve(%q) = %v, want nil", tt.path, n.Data)
			}
			continue
		}
		if n == nil || n.Data != tt.want {
			t.Errorf("Resolve(%q) = %v, want %q", tt.path, n, tt.want)
		}
	}
}

func TestResolveDistinguishesIndices(t *testing.T) {
	d := parse(t)
	a := d.Resolve("/html/body/div[1]")
	b := d.Resolve("/html/body/div[2]")
	if a == nil || b == nil || a == b {
		t.Fatal("indexed siblings not distinguished")
	}
}

func TestResolveIndexedTextLeaves(t *testing.T) {
	d, err := Parse(strings.NewReader("<html><body><p>foo<b>x</b>bar</p></body></html>"))
	if err != nil {
		t.Fatal(err)
	}

	first := d.Resolve("/html/body/p/text()[1]")
	second := d.Resolve("/html/body/p/text()[2]")
	if first == nil || first.Data != "foo" {
		t.Fatalf("text()[1] = %+v, want foo", first)
	}
	if second == nil || second.Data != "bar" {
		t.Fatalf("text()[2] = %+v, want bar", second)
	}

	// Indexed character-data edits must land on the named sibling.
	n, changed := d.SetText(mutation.Record{
		Op:       mutation.OpText,
		XPath:    "/html/body/p/text()[2]",
		Value:    "مرحبا",
		OldValue: "bar",
	})
	if n != second || !changed {
		t.Fatalf("SetText = (%v, %v)", n, changed)
	}
	if first.Data != "foo" {
		t.Errorf("text()[1] clobbered: %q", first.Data)
	}
	if got := XPathOf(second); got != "/html/body/p/text()[2]" {
		t.Errorf("XPathOf = %q", got)
	}
}

func TestInsertElement(t *testing.T) {
	d := parse(t)
	n := d.Insert(mutation.Record{
		Op:       mutation.OpInsert,
		XPath:    "/html/body/div[3]",
		NodeType: 1,
		Tag:      "div",
		HTML:     `<div id="c">نص جديد</div>`,
	})
	if n == nil {
		t.Fatal("insert returned nil")
	}
	if got := d.Resolve("/html/body/div[3]"); got != n {
		t.Error("inserted node not resolvable at its path")
	}
	if n.FirstChild == nil || n.FirstChild.Data != "نص جديد" {
		t.Errorf("inserted subtree content wrong: %+v", n.FirstChild)
	}
}

func TestInsertBeforeExistingSlot(t *testing.T) {
	d := parse(t)
	n := d.Insert(mutation.Record{
		Op:       mutation.OpInsert,
		XPath:    "/html/body/div[1]/p[1]",
		NodeType: 1,
		HTML:     "<p>zeroth</p>",
	})
	if n == nil {
		t.Fatal("insert returned nil")
	}
	first := d.Resolve("/html/body/div[1]/p[1]")
	if first != n {
		t.Error("new node did not take the named slot")
	}
	if second := d.Resolve("/html/body/div[1]/p[2]"); second == nil || second.FirstChild.Data != "first" {
		t.Error("shifted sibling lost")
	}
}

func TestInsertTextNode(t *testing.T) {
	d := parse(t)
	n := d.Insert(mutation.Record{
		Op:       mutation.OpInsert,
		XPath:    "/html/body/div[2]/text()[2]",
		NodeType: 3,
		Value:    " مرحبا",
	})
	if n == nil || n.Type != html.TextNode || n.Data != " مرحبا" {
		t.Fatalf("text insert = %+v", n)
	}
}

func TestInsertUnresolvableParent(t *testing.T) {
	d := parse(t)
	if n := d.Insert(mutation.Record{XPath: "/html/body/section/div", HTML: "<div></div>"}); n != nil {
		t.Errorf("expected nil for unresolvable parent, got %v", n)
	}
}

func TestSetText(t *testing.T) {
	d := parse(t)
	n, changed := d.SetText(mutation.Record{
		Op:       mutation.OpText,
		XPath:    "/html/body/div[2]/text()",
		Value:    "مرحبا",
		OldValue: "tail",
	})
	if n == nil || !changed {
		t.Fatalf("SetText = (%v, %v)", n, changed)
	}
	if n.Data != "مرحبا" {
		t.Errorf("data = %q", n.Data)
	}

	// Same value as old → not changed.
	_, changed = d.SetText(mutation.Record{
		XPath: "/html/body/div[2]/text()", Value: "مرحبا", OldValue: "مرحبا",
	})
	if changed {
		t.Error("unchanged value reported as changed")
	}
}

func TestRemove(t *testing.T) {
	d := parse(t)
	d.Remove(mutation.Record{Op: mutation.OpRemove, XPath: "/html/body/div[1]"})
	if n := d.Resolve("/html/body/div[2]"); n != nil {
		t.Error("expected one div left")
	}
	if n := d.Resolve("/html/body/div[1]"); n == nil {
		t.Error("remaining div lost")
	}
	// Removing a missing node is a silent no-op.
	d.Remove(mutation.Record{XPath: "/html/body/div[9]"})
}

func TestXPathOfRoundtrip(t *testing.T) {
	d := parse(t)
	for _, path := range []string{
		"/html/body/div[1]/p[2]",
		"/html/body/div[2]",
		"/html/body/div[1]/p[2]/text()",
	} {
		n := d.Resolve(path)
		if n == nil {
			t.Fatalf("Resolve(%q) = nil", path)
		}
		if back := d.Resolve(XPathOf(n)); back != n {
			t.Errorf("roundtrip of %q via %q landed elsewhere", path, XPathOf(n))
		}
	}
}

func TestXPathOfDetached(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	if got := XPathOf(n); got != "" {
		t.Errorf("XPathOf(detached) = %q, want empty", got)
	}
}

func TestReset(t *testing.T) {
	d := parse(t)
	if err := d.Reset([]byte("<html><body><p>نص</p></body></html>")); err != nil {
		t.Fatal(err)
	}
	if n := d.Resolve("/html/body/p/text()"); n == nil || n.Data != "نص" {
		t.Errorf("reset tree wrong: %+v", n)
	}
}
