// Package observer implements the mutation watcher: it replays change
// batches from a feed against the mirror tree and restyles exactly the
// subtrees the changes touched, leaving the rest of the document alone.
package observer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/wudooh/mirror"
	"github.com/hazyhaar/wudooh/mutation"
	"github.com/hazyhaar/wudooh/restyle"
	"github.com/hazyhaar/wudooh/sink"
)

// Config for creating a Watcher.
type Config struct {
	// Feed delivers change batches in host order. Closing it stops the
	// watcher loop.
	Feed <-chan mutation.Batch

	// Doc is the mirror tree the batches describe.
	Doc *mirror.Document

	// Params are fixed for the watcher's lifetime. A parameter change
	// means stop-and-replace, never in-place reconfiguration.
	Params restyle.Params

	// Sink receives restyled subtrees as patches. Optional.
	Sink sink.Sink

	// Lock, when set, is held while the tree is read or mutated. The
	// controller shares it so full passes and batch replay never
	// interleave.
	Lock sync.Locker

	// OnReset is called (without Lock held) after a doc_reset record
	// replaced the whole tree, so the owner can re-run its full pass.
	OnReset func()

	PageID string
	Logger *slog.Logger
}

// Watcher replays mutation batches. States: inactive → Start → active →
// Stop → inactive. Start while active is a no-op, so duplicate
// subscriptions cannot exist.
type Watcher struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	active bool

	seq       atomic.Uint64
	resetHash string
}

// New creates a Watcher. Call Start to begin consuming the feed.
func New(cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{cfg: cfg}
}

// Start begins consuming the feed. Calling Start on an active watcher
// does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.active = true
	go w.loop(ctx, w.done)
}

// Stop unsubscribes and waits for the consumer loop to exit, so a
// replacement watcher on the same feed can never race the old one for a
// batch. Batches already queued but not yet read are never processed.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.active = false
	done := w.done
	w.mu.Unlock()
	<-done
}

// Active reports whether the watcher is consuming its feed.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-w.cfg.Feed:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return // stopped between delivery and processing
			}
			w.process(ctx, b)
		}
	}
}

// process replays one batch. Records are handled in delivery order and
// touched nodes are never deduplicated: Apply is idempotent, so a node
// visited by several records is simply restyled again.
func (w *Watcher) process(ctx context.Context, b mutation.Batch) {
	if w.cfg.Lock != nil {
		w.cfg.Lock.Lock()
	}

	var (
		dirty   []*html.Node
		seen    = make(map[*html.Node]struct{})
		doReset bool
	)
	markDirty := func(n *html.Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		dirty = append(dirty, n)
	}

	for _, rec := range b.Records {
		switch rec.Op {
		case mutation.OpInsert:
			n := w.cfg.Doc.Insert(rec)
			if n == nil {
				continue
			}
			parent := n.Parent
			for _, unit := range restyle.Scan(n) {
				restyle.Apply(unit, w.cfg.Params)
			}
			if n.Type == html.TextNode {
				// Wrapping replaces a bare text node with span splices,
				// detaching n; the parent is the stable patch target.
				if parent != nil {
					markDirty(parent)
				}
			} else {
				markDirty(n)
			}

		case mutation.OpText:
			n, changed := w.cfg.Doc.SetText(rec)
			if n == nil || !changed || n.Parent == nil {
				continue
			}
			// Re-scan the parent, not just the node: some hosts swap a
			// whole text node rather than editing it, and text that
			// just became Arabic may sit beside the changed node.
			for _, unit := range restyle.Scan(n.Parent) {
				restyle.Apply(unit, w.cfg.Params)
			}
			markDirty(n.Parent)

		case mutation.OpRemove:
			w.cfg.Doc.Remove(rec)

		case mutation.OpDocReset:
			h := mutation.HashHTML([]byte(rec.HTML))
			if h == w.resetHash {
				continue
			}
			w.resetHash = h
			if err := w.cfg.Doc.Reset([]byte(rec.HTML)); err != nil {
				w.cfg.Logger.Warn("observer: doc reset failed", "error", err)
				continue
			}
			dirty, seen, doReset = nil, make(map[*html.Node]struct{}), true

		default:
			w.cfg.Logger.Warn("observer: unknown op", "op", rec.Op)
		}
	}

	patches := w.renderPatches(dirty)

	if w.cfg.Lock != nil {
		w.cfg.Lock.Unlock()
	}

	if doReset && w.cfg.OnReset != nil {
		w.cfg.OnReset()
	}
	for _, p := range patches {
		if err := w.cfg.Sink.Send(ctx, p); err != nil {
			w.cfg.Logger.Warn("observer: send patch failed", "xpath", p.XPath, "error", err)
		}
	}
}

// renderPatches serialises the dirty subtrees that are still attached.
// Must be called with the tree lock held.
func (w *Watcher) renderPatches(dirty []*html.Node) []sink.Patch {
	if w.cfg.Sink == nil || len(dirty) == 0 {
		return nil
	}
	patches := make([]sink.Patch, 0, len(dirty))
	for _, n := range dirty {
		xpath := mirror.XPathOf(n)
		if xpath == "" {
			continue // detached since replay
		}
		rendered, err := mirror.RenderSubtree(n)
		if err != nil {
			w.cfg.Logger.Warn("observer: render subtree failed", "error", err)
			continue
		}
		patches = append(patches, sink.Patch{
			PageID:    w.cfg.PageID,
			Seq:       w.seq.Add(1),
			XPath:     xpath,
			HTML:      rendered,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return patches
}
