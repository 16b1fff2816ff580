package state

import (
	"context"
	"log"

	"SwingSentinel/internal/model"
)

// Run is the writer loop: it applies bars from in until in is closed or ctx
// is cancelled. Cancellation is only observed between bars. Per-bar errors
// are logged and do not stop the loop.
func (m *Manager) Run(ctx context.Context, in <-chan model.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			if err := m.AppendBar(b); err != nil {
				log.Printf("[WARN] append bar %d: %v", b.Timestamp, err)
			}
		}
	}
}

// Tracker lets a reader skip recomputation when the state has not changed.
// It is not safe for concurrent use; give each reader its own.
type Tracker struct {
	seen uint64
}

// Changed reports whether version differs from the last one seen, and
// records it.
func (t *Tracker) Changed(version uint64) bool {
	if version == t.seen {
		return false
	}
	t.seen = version
	return true
}
