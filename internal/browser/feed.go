package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/wudooh/idgen"
	"github.com/hazyhaar/wudooh/mutation"
)

//go:embed feed.js
var feedJS string

const bindingName = "__wudooh_feed"

// Feed streams mutation batches out of a live tab. It injects a
// MutationObserver into the page and converts its reports into the
// records the restyling watcher replays.
type Feed struct {
	tab    *Tab
	cfg    debounceConfig
	logger *slog.Logger

	rawCh chan mutation.Record
	out   chan mutation.Batch
	seq   atomic.Uint64
}

// FeedConfig for creating a Feed.
type FeedConfig struct {
	Tab       *Tab
	Window    time.Duration
	MaxBuffer int
	Logger    *slog.Logger
}

// NewFeed creates a Feed. Call Start to inject the observer and begin
// streaming.
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Feed{
		tab:    cfg.Tab,
		cfg:    debounceConfig{Window: cfg.Window, MaxBuffer: cfg.MaxBuffer},
		logger: cfg.Logger,
		rawCh:  make(chan mutation.Record, 4096),
		out:    make(chan mutation.Batch, 16),
	}
}

// Batches returns the channel batches are delivered on. It is closed
// when the feed stops.
func (f *Feed) Batches() <-chan mutation.Batch {
	return f.out
}

// Start registers the page binding, injects the observer script and
// runs the debounce loop until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	page := f.tab.Page

	if err := (proto.RuntimeAddBinding{Name: bindingName}.Call(page)); err != nil {
		f.logger.Warn("feed: add binding failed (may already exist)", "error", err)
	}

	go f.listenBinding(ctx)

	if _, err := page.Context(ctx).Eval(feedJS); err != nil {
		return fmt.Errorf("feed: inject observer: %w", err)
	}
	f.logger.Debug("feed: observer injected", "url", f.tab.PageURL)

	go f.loop(ctx)
	return nil
}

// listenBinding receives reports from the injected observer via
// Runtime.bindingCalled.
func (f *Feed) listenBinding(ctx context.Context) {
	f.tab.Page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var records []mutation.Record
		if err := json.Unmarshal([]byte(e.Payload), &records); err != nil {
			f.logger.Warn("feed: bad binding payload", "error", err)
			return
		}
		for _, rec := range records {
			if rec.XPath == "" && rec.Op != mutation.OpDocReset {
				continue
			}
			select {
			case f.rawCh <- rec:
			case <-ctx.Done():
				return
			}
		}
	})()
}

func (f *Feed) loop(ctx context.Context) {
	defer close(f.out)

	d := newDebouncer(f.cfg, func(records []mutation.Record) {
		batch := mutation.Batch{
			ID:        idgen.New(),
			PageURL:   f.tab.PageURL,
			PageID:    f.tab.PageID,
			Seq:       f.seq.Add(1),
			Records:   records,
			Timestamp: time.Now().UnixMilli(),
		}
		select {
		case f.out <- batch:
		case <-ctx.Done():
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-f.rawCh:
			d.add(rec)
		case <-d.timerC():
			d.flush()
		}
	}
}
