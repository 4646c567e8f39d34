// Package sink defines output backends for restyled subtrees. In browser
// mode a page sink writes patches back into the live tab; the stdout and
// callback sinks serve pipelines and tests.
package sink

import "context"

// Patch is one restyled subtree, addressed by the XPath of its root.
type Patch struct {
	PageID    string `json:"page_id"`
	Seq       uint64 `json:"seq"`
	XPath     string `json:"xpath"`
	HTML      string `json:"html"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Sink delivers patches to a backend.
type Sink interface {
	Send(ctx context.Context, p Patch) error
	Close() error
}
