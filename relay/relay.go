// Package relay carries the cross-process message protocol to the page
// controllers. Messages arrive from the settings watcher (in-process) or
// over HTTP, and are broadcast to every registered page; callers never
// know or care which pages exist.
//
// Two message shapes are understood by the receiving controllers,
// distinguished by their "reason" field: updateAllText and
// injectCustomFonts.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one message payload for one page.
type Handler func(ctx context.Context, payload []byte) error

// Dispatcher fans messages out to registered page handlers.
// Thread-safe: pages register and unregister as tabs open and close.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a page handler. A second registration for the same page
// replaces the first.
func (d *Dispatcher) Register(pageID string, h Handler) {
	d.mu.Lock()
	d.handlers[pageID] = h
	d.mu.Unlock()
}

// Unregister removes a page handler.
func (d *Dispatcher) Unregister(pageID string) {
	d.mu.Lock()
	delete(d.handlers, pageID)
	d.mu.Unlock()
}

// Broadcast delivers payload to every registered page. One failing page
// does not block the others; the first error is returned.
func (d *Dispatcher) Broadcast(ctx context.Context, payload []byte) error {
	d.mu.RLock()
	handlers := make(map[string]Handler, len(d.handlers))
	for id, h := range d.handlers {
		handlers[id] = h
	}
	d.mu.RUnlock()

	var firstErr error
	for id, h := range handlers {
		if err := h(ctx, payload); err != nil {
			d.logger.Warn("relay: deliver failed", "page_id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("relay: deliver to %s: %w", id, err)
			}
		}
	}
	return firstErr
}

// Send delivers payload to a single page.
func (d *Dispatcher) Send(ctx context.Context, pageID string, payload []byte) error {
	d.mu.RLock()
	h, ok := d.handlers[pageID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("relay: unknown page %q", pageID)
	}
	return h(ctx, payload)
}
