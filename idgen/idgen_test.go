package idgen

import (
	"strings"
	"testing"
)

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if len(id) != 36 {
			t.Fatalf("id %q has length %d, want 36", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("page_", New)
	id := gen()
	if !strings.HasPrefix(id, "page_") {
		t.Errorf("id %q missing prefix", id)
	}
}
