package watch

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"
)

// fakeDetector returns a controllable version token.
type fakeDetector struct {
	v atomic.Int64
}

func (f *fakeDetector) detect(ctx context.Context, db *sql.DB) (int64, error) {
	return f.v.Load(), nil
}

func TestOnChangeFiresOnVersionAdvance(t *testing.T) {
	det := &fakeDetector{}
	w := New(nil, Options{
		Interval: 5 * time.Millisecond,
		Detector: det.detect,
	})

	fired := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	det.v.Store(1)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("action never fired after version advance")
	}
}

func TestOnChangeRetriesOnActionError(t *testing.T) {
	det := &fakeDetector{}
	w := New(nil, Options{
		Interval: 5 * time.Millisecond,
		Detector: det.detect,
	})

	var calls atomic.Int64
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return context.DeadlineExceeded // any error: must retry
		}
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	})

	det.v.Store(1)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("action not retried after error")
	}
	if calls.Load() < 2 {
		t.Errorf("calls = %d, want >= 2", calls.Load())
	}
}

func TestOnChangeStopsWithContext(t *testing.T) {
	det := &fakeDetector{}
	w := New(nil, Options{Interval: 5 * time.Millisecond, Detector: det.detect})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.OnChange(ctx, func() error { return nil })
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange did not return on cancel")
	}
}
