// Package idgen generates the identifiers used for batches and pages.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// New returns a time-sortable UUIDv7 string.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID,
// for type-scoped identifiers (e.g. "page_", "batch_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}
