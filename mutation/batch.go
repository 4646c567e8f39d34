// Package mutation defines the structured change records consumed by the
// restyling watcher. Producers (the injected page observer, tests, custom
// feeds) emit Batches; the watcher replays them against the mirror tree.
package mutation

// Op is the type of DOM change observed.
type Op string

const (
	OpInsert   Op = "insert"    // node added (includes serialised subtree HTML)
	OpText     Op = "text"      // character data changed (with previous value)
	OpRemove   Op = "remove"    // node removed
	OpDocReset Op = "doc_reset" // entire document replaced
)

// Record is a single DOM change.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath"`
	NodeType int    `json:"node_type,omitempty"` // 1=element, 3=text
	Tag      string `json:"tag,omitempty"`
	Value    string `json:"value,omitempty"`     // new character data
	OldValue string `json:"old_value,omitempty"` // previous character data
	HTML     string `json:"html,omitempty"`      // serialised subtree for insert/doc_reset
}

// Batch is the atomic unit delivered to the watcher: all changes
// collected during one debounce window, in delivery order.
type Batch struct {
	ID        string   `json:"id"` // UUIDv7
	PageURL   string   `json:"page_url"`
	PageID    string   `json:"page_id"`
	Seq       uint64   `json:"seq"` // monotonically increasing per page
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds at flush
}
