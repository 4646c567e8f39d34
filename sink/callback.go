package sink

import "context"

// PatchFunc is called for each patch (in-process, zero serialisation).
type PatchFunc func(ctx context.Context, p Patch) error

// Callback delivers patches via a Go function call.
type Callback struct {
	fn PatchFunc
}

// NewCallback creates a Callback sink. A nil handler discards patches.
func NewCallback(fn PatchFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, p Patch) error {
	if c.fn != nil {
		return c.fn(ctx, p)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
