package catalog

import (
	"github.com/BitPonyLLC/huematch/pkg/events"

	"go.uber.org/atomic"
)

// SwapEvent is emitted on Store.Events whenever a new snapshot goes live.
type SwapEvent struct {
	Generation int64
	Entries    int
	Source     string
}

// Store publishes the current Snapshot to concurrent readers. Readers call
// Load once per request and keep using that snapshot even if a reload swaps a
// newer one in meanwhile.
type Store struct {
	Events events.Manager

	current    atomic.Value
	generation atomic.Int64
}

// NewStore starts with the provided snapshot; nil starts with an empty one.
func NewStore(initial *Snapshot) *Store {
	if initial == nil {
		initial, _ = NewSnapshot("", nil)
	}

	s := &Store{}
	s.current.Store(initial)
	s.generation.Store(1)
	return s
}

// Load returns the live snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load().(*Snapshot)
}

// Swap makes next the live snapshot and returns the one it replaced.
func (s *Store) Swap(next *Snapshot) *Snapshot {
	prev := s.current.Swap(next).(*Snapshot)
	gen := s.generation.Inc()

	s.Events.Emit(SwapEvent{Generation: gen, Entries: next.Len(), Source: next.Source()})
	return prev
}

// Generation counts swaps, starting at 1 for the initial snapshot.
func (s *Store) Generation() int64 {
	return s.generation.Load()
}
