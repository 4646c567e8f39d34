package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Stdout writes patches as JSON lines. A nil writer means os.Stdout.
type Stdout struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewStdout creates a JSON-lines sink.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w, enc: json.NewEncoder(w)}
}

func (s *Stdout) Send(ctx context.Context, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(p)
}

func (s *Stdout) Close() error { return nil }
