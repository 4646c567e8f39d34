package browser

import (
	"testing"
	"time"

	"github.com/hazyhaar/wudooh/mutation"
)

func TestCoalesceFoldsConsecutiveTextEdits(t *testing.T) {
	records := []mutation.Record{
		{Op: mutation.OpText, XPath: "/html/body/p/text()", OldValue: "a", Value: "ab"},
		{Op: mutation.OpText, XPath: "/html/body/p/text()", OldValue: "ab", Value: "abc"},
		{Op: mutation.OpText, XPath: "/html/body/p/text()", OldValue: "abc", Value: "مرحبا"},
	}
	out := coalesce(records)
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}
	if out[0].OldValue != "a" || out[0].Value != "مرحبا" {
		t.Errorf("folded record = %+v", out[0])
	}
}

func TestCoalesceKeepsStructuralRecords(t *testing.T) {
	records := []mutation.Record{
		{Op: mutation.OpText, XPath: "/html/body/p/text()", Value: "x"},
		{Op: mutation.OpInsert, XPath: "/html/body/div", HTML: "<div></div>"},
		{Op: mutation.OpText, XPath: "/html/body/p/text()", Value: "y"},
		{Op: mutation.OpRemove, XPath: "/html/body/span"},
	}
	out := coalesce(records)
	if len(out) != 4 {
		t.Fatalf("got %d records, want 4 (edits split by an insert must not fold)", len(out))
	}
}

func TestDebouncerFlushesOnFullBuffer(t *testing.T) {
	var flushed [][]mutation.Record
	d := newDebouncer(debounceConfig{Window: time.Hour, MaxBuffer: 3}, func(recs []mutation.Record) {
		flushed = append(flushed, recs)
	})

	for i := 0; i < 3; i++ {
		d.add(mutation.Record{Op: mutation.OpInsert, XPath: "/html/body/div"})
	}
	if len(flushed) != 1 {
		t.Fatalf("flushes = %d, want 1", len(flushed))
	}
	if len(flushed[0]) != 3 {
		t.Errorf("flushed %d records, want 3", len(flushed[0]))
	}
	if d.timerC() != nil {
		t.Error("timer still armed after flush")
	}
}

func TestFlushedBatchSurvivesBufferReuse(t *testing.T) {
	var got []mutation.Record
	d := newDebouncer(debounceConfig{Window: time.Hour, MaxBuffer: 10}, func(recs []mutation.Record) {
		got = recs
	})

	d.add(mutation.Record{Op: mutation.OpText, XPath: "/html/body/p/text()", Value: "first"})
	d.flush()
	// The reused buffer must not reach back into the delivered batch.
	d.add(mutation.Record{Op: mutation.OpInsert, XPath: "/html/body/div[2]", Value: "second"})

	if len(got) != 1 {
		t.Fatalf("delivered batch has %d records, want 1", len(got))
	}
	if got[0].Op != mutation.OpText || got[0].Value != "first" {
		t.Errorf("delivered record mutated after flush: %+v", got[0])
	}
}

func TestDebouncerDocResetDropsBuffer(t *testing.T) {
	var flushed [][]mutation.Record
	d := newDebouncer(debounceConfig{Window: time.Hour, MaxBuffer: 100}, func(recs []mutation.Record) {
		flushed = append(flushed, recs)
	})

	d.add(mutation.Record{Op: mutation.OpText, XPath: "/html/body/p/text()", Value: "stale"})
	d.add(mutation.Record{Op: mutation.OpDocReset, HTML: "<html><body></body></html>"})
	d.flush()

	if len(flushed) != 1 || len(flushed[0]) != 1 {
		t.Fatalf("flushed = %+v, want exactly the reset record", flushed)
	}
	if flushed[0][0].Op != mutation.OpDocReset {
		t.Errorf("surviving record = %+v", flushed[0][0])
	}
}
