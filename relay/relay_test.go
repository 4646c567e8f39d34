package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestBroadcastReachesAllPages(t *testing.T) {
	d := NewDispatcher(nil)
	var a, b atomic.Int64
	d.Register("page-a", func(ctx context.Context, payload []byte) error {
		a.Add(1)
		return nil
	})
	d.Register("page-b", func(ctx context.Context, payload []byte) error {
		b.Add(1)
		return nil
	})

	if err := d.Broadcast(context.Background(), []byte(`{"reason":"updateAllText"}`)); err != nil {
		t.Fatal(err)
	}
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", a.Load(), b.Load())
	}
}

func TestBroadcastContinuesPastErrors(t *testing.T) {
	d := NewDispatcher(nil)
	var delivered atomic.Int64
	d.Register("bad", func(ctx context.Context, payload []byte) error {
		return errors.New("boom")
	})
	d.Register("good", func(ctx context.Context, payload []byte) error {
		delivered.Add(1)
		return nil
	})

	err := d.Broadcast(context.Background(), []byte(`{}`))
	if err == nil {
		t.Error("expected first error to propagate")
	}
	if delivered.Load() != 1 {
		t.Errorf("healthy page skipped: %d deliveries", delivered.Load())
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	d := NewDispatcher(nil)
	var n atomic.Int64
	d.Register("p", func(ctx context.Context, payload []byte) error {
		n.Add(1)
		return nil
	})
	d.Unregister("p")
	if err := d.Broadcast(context.Background(), []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if n.Load() != 0 {
		t.Errorf("unregistered page still receiving: %d", n.Load())
	}
}

func TestHTTPMessageIngress(t *testing.T) {
	d := NewDispatcher(nil)
	got := make(chan string, 1)
	d.Register("p", func(ctx context.Context, payload []byte) error {
		got <- string(payload)
		return nil
	})

	srv := httptest.NewServer(NewHTTP(d, nil))
	defer srv.Close()

	body := `{"reason":"updateAllText","newSize":200,"newHeight":150,"font":"Amiri"}`
	resp, err := http.Post(srv.URL+"/v1/message", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if payload := <-got; payload != body {
		t.Errorf("payload = %s", payload)
	}
}

func TestHTTPRejectsBadMessages(t *testing.T) {
	srv := httptest.NewServer(NewHTTP(NewDispatcher(nil), nil))
	defer srv.Close()

	for _, body := range []string{"not json", `{"noReason":true}`} {
		resp, err := http.Post(srv.URL+"/v1/message", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewHTTP(NewDispatcher(nil), nil))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
