package wudooh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/wudooh/fontface"
	"github.com/hazyhaar/wudooh/mirror"
	"github.com/hazyhaar/wudooh/mutation"
	"github.com/hazyhaar/wudooh/observer"
	"github.com/hazyhaar/wudooh/restyle"
	"github.com/hazyhaar/wudooh/settings"
	"github.com/hazyhaar/wudooh/sink"
)

// Config for creating a Controller.
type Config struct {
	// Store holds the persisted settings. Nil means built-in defaults,
	// which is mostly useful for one-shot file processing.
	Store *settings.Store

	// Doc is the mirror tree of the page being restyled.
	Doc *mirror.Document

	// Feed delivers mutation batches for the page. Nil means no watcher
	// is started and only the initial full pass runs.
	Feed <-chan mutation.Batch

	// Sink receives restyled subtrees. Optional.
	Sink sink.Sink

	// Host is the page's hostname, matched against the whitelist and the
	// per-site overrides.
	Host string

	PageID string
	Logger *slog.Logger
}

// Controller owns the restyling lifecycle of one page. It is the
// receiving end of the relay protocol: HandleMessage satisfies
// relay.Handler.
type Controller struct {
	cfg Config

	// docMu serialises every read or write of the mirror tree between
	// the full pass and the watcher's batch replay.
	docMu sync.Mutex

	mu      sync.Mutex
	watcher *observer.Watcher
	params  restyle.Params
	fonts   []fontface.Descriptor
	runCtx  context.Context
	enabled bool

	seq atomic.Uint64
}

// New creates a Controller. Call Run to perform the initial pass and
// start watching.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{cfg: cfg}
}

// Run loads the settings, restyles the whole document once and starts
// the mutation watcher. It returns once the watcher is running; ctx
// bounds the watcher's lifetime. A disabled or whitelisted page is left
// untouched and Run returns nil.
func (c *Controller) Run(ctx context.Context) error {
	st := settings.Defaults()
	if c.cfg.Store != nil {
		var err error
		st, err = c.cfg.Store.Load(ctx)
		if err != nil {
			return fmt.Errorf("wudooh: load settings: %w", err)
		}
	}

	if !st.OnOff {
		c.cfg.Logger.Info("restyling disabled", "page_id", c.cfg.PageID)
		return nil
	}
	if st.Whitelisted(c.cfg.Host) {
		c.cfg.Logger.Info("host whitelisted", "host", c.cfg.Host, "page_id", c.cfg.PageID)
		return nil
	}

	p := st.ParamsFor(c.cfg.Host)

	c.mu.Lock()
	c.params = p
	c.fonts = st.CustomFonts
	c.runCtx = ctx
	c.enabled = true
	c.mu.Unlock()

	if len(st.CustomFonts) > 0 {
		c.injectFonts(ctx, st.CustomFonts)
	}
	c.fullPass(ctx, p)

	if c.cfg.Feed != nil {
		c.mu.Lock()
		c.startWatcherLocked(ctx, p)
		c.mu.Unlock()
	}

	c.docMu.Lock()
	fontface.MarkProcessed(c.cfg.Doc)
	c.docMu.Unlock()
	return nil
}

// Stop halts the mutation watcher. The tree keeps whatever styling it
// already has.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		c.watcher.Stop()
		c.watcher = nil
	}
}

// Watching reports whether a mutation watcher is currently subscribed.
func (c *Controller) Watching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watcher != nil && c.watcher.Active()
}

// HandleMessage applies one relay message. Messages on a disabled or
// whitelisted page are dropped.
func (c *Controller) HandleMessage(ctx context.Context, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("wudooh: decode message: %w", err)
	}

	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		c.cfg.Logger.Debug("message on inactive page dropped", "reason", msg.Reason, "page_id", c.cfg.PageID)
		return nil
	}

	switch msg.Reason {
	case ReasonUpdateAllText:
		p := restyle.Params{TextSize: msg.NewSize, LineHeight: msg.NewHeight, Font: msg.Font}
		// Parameters are fixed per watcher, so the old one is stopped
		// before the full pass and a fresh one subscribed after.
		c.mu.Lock()
		if c.watcher != nil {
			c.watcher.Stop()
			c.watcher = nil
		}
		c.params = p
		runCtx := c.runCtx
		c.mu.Unlock()

		c.fullPass(ctx, p)

		if c.cfg.Feed != nil && runCtx != nil && runCtx.Err() == nil {
			c.mu.Lock()
			c.startWatcherLocked(runCtx, p)
			c.mu.Unlock()
		}
		return nil

	case ReasonInjectCustomFonts:
		c.mu.Lock()
		c.fonts = msg.CustomFonts
		c.mu.Unlock()
		c.injectFonts(ctx, msg.CustomFonts)
		return nil

	default:
		c.cfg.Logger.Warn("unknown message reason", "reason", msg.Reason)
		return nil
	}
}

// startWatcherLocked subscribes a new watcher. Caller holds c.mu.
func (c *Controller) startWatcherLocked(ctx context.Context, p restyle.Params) {
	w := observer.New(observer.Config{
		Feed:    c.cfg.Feed,
		Doc:     c.cfg.Doc,
		Params:  p,
		Sink:    c.cfg.Sink,
		Lock:    &c.docMu,
		OnReset: c.onReset,
		PageID:  c.cfg.PageID,
		Logger:  c.cfg.Logger,
	})
	w.Start(ctx)
	c.watcher = w
}

// fullPass scans the whole body and applies the parameters to every
// text unit. The scan is materialised before any wrapping mutates the
// tree underneath it.
func (c *Controller) fullPass(ctx context.Context, p restyle.Params) {
	start := time.Now()

	c.docMu.Lock()
	root := c.cfg.Doc.Body()
	if root == nil {
		root = c.cfg.Doc.Root()
	}
	units := restyle.Scan(root)
	for _, unit := range units {
		restyle.Apply(unit, p)
	}
	patch, ok := c.renderPatch(root)
	c.docMu.Unlock()

	c.cfg.Logger.Debug("full pass complete",
		"page_id", c.cfg.PageID,
		"units", len(units),
		"duration", time.Since(start))

	if ok {
		if err := c.cfg.Sink.Send(ctx, patch); err != nil {
			c.cfg.Logger.Warn("send full-pass patch failed", "error", err)
		}
	}
}

// injectFonts replaces the custom font style block and pushes the new
// head downstream.
func (c *Controller) injectFonts(ctx context.Context, fonts []fontface.Descriptor) {
	c.docMu.Lock()
	fontface.Inject(c.cfg.Doc, fonts)
	var (
		patch sink.Patch
		ok    bool
	)
	if head := c.cfg.Doc.Head(); head != nil {
		patch, ok = c.renderPatch(head)
	}
	c.docMu.Unlock()

	if ok {
		if err := c.cfg.Sink.Send(ctx, patch); err != nil {
			c.cfg.Logger.Warn("send font patch failed", "error", err)
		}
	}
}

// onReset runs after the watcher replaced the whole tree: fonts, the
// full pass and the processed marker all have to be redone. Called
// without docMu held.
func (c *Controller) onReset() {
	c.mu.Lock()
	p := c.params
	fonts := c.fonts
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	c.cfg.Logger.Info("document replaced, restyling from scratch", "page_id", c.cfg.PageID)
	c.injectFonts(ctx, fonts)
	c.fullPass(ctx, p)

	c.docMu.Lock()
	fontface.MarkProcessed(c.cfg.Doc)
	c.docMu.Unlock()
}

// renderPatch serialises one subtree. Caller holds docMu.
func (c *Controller) renderPatch(n *html.Node) (sink.Patch, bool) {
	if c.cfg.Sink == nil {
		return sink.Patch{}, false
	}
	xpath := mirror.XPathOf(n)
	if xpath == "" {
		return sink.Patch{}, false
	}
	rendered, err := mirror.RenderSubtree(n)
	if err != nil {
		c.cfg.Logger.Warn("render subtree failed", "error", err)
		return sink.Patch{}, false
	}
	return sink.Patch{
		PageID:    c.cfg.PageID,
		Seq:       c.seq.Add(1),
		XPath:     xpath,
		HTML:      rendered,
		Timestamp: time.Now().UnixMilli(),
	}, true
}
