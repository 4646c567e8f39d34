package browser

import (
	"slices"
	"time"

	"github.com/hazyhaar/wudooh/mutation"
)

// debounceConfig controls mutation batching.
type debounceConfig struct {
	// Window is the quiet period before a flush. Default: 250ms.
	Window time.Duration
	// MaxBuffer flushes immediately at this many records. Default: 1000.
	MaxBuffer int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 250 * time.Millisecond
	}
	if dc.MaxBuffer <= 0 {
		dc.MaxBuffer = 1000
	}
}

// debouncer buffers records and emits coalesced batches when the window
// expires or the buffer fills. Single-goroutine use only; the feed loop
// owns it.
type debouncer struct {
	cfg     debounceConfig
	records []mutation.Record
	timer   *time.Timer
	timerCh <-chan time.Time
	flushFn func([]mutation.Record)
}

func newDebouncer(cfg debounceConfig, flushFn func([]mutation.Record)) *debouncer {
	cfg.defaults()
	return &debouncer{
		cfg:     cfg,
		records: make([]mutation.Record, 0, cfg.MaxBuffer),
		flushFn: flushFn,
	}
}

func (d *debouncer) add(rec mutation.Record) {
	// A document replacement obsoletes everything buffered before it.
	if rec.Op == mutation.OpDocReset {
		d.records = d.records[:0]
	}
	d.records = append(d.records, rec)

	if len(d.records) >= d.cfg.MaxBuffer {
		d.flush()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.cfg.Window)
	d.timerCh = d.timer.C
}

// timerC fires when the debounce window expires.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

func (d *debouncer) flush() {
	if len(d.records) == 0 {
		return
	}
	// The buffer is reused after flush, so the delivered slice must not
	// alias it (coalesce can return its input unchanged).
	d.flushFn(coalesce(slices.Clone(d.records)))
	d.records = d.records[:0]
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}

// coalesce folds consecutive text edits of the same node into one
// record carrying the first old value and the last new value. Inserts,
// removals and resets are structural and never folded.
func coalesce(records []mutation.Record) []mutation.Record {
	if len(records) <= 1 {
		return records
	}

	out := make([]mutation.Record, 0, len(records))
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if rec.Op == mutation.OpText {
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) &&
				records[j].Op == mutation.OpText &&
				records[j].XPath == rec.XPath {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			i = j - 1
		}
		out = append(out, rec)
	}
	return out
}
