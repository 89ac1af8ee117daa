// Package events fans out notifications (such as catalog swaps) to any number
// of interested watchers.
package events

import (
	"sync"

	"go.uber.org/atomic"
)

// DefaultBuffer is the channel capacity given to each Watcher.
const DefaultBuffer = 8

type Manager struct {
	watchers sync.Map
	dropped  atomic.Int64

	// held for reading while emitting so Stop never closes a channel mid-send
	mu sync.RWMutex
}

func (m *Manager) Watch() *Watcher {
	watcher := &Watcher{
		Ch:   make(chan Event, DefaultBuffer),
		stop: m.Stop,
	}

	m.watchers.Store(watcher, watcher)
	return watcher
}

// Emit delivers event to every watcher without blocking. A watcher whose
// buffer is full misses the event (see Dropped).
func (m *Manager) Emit(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.watchers.Range(func(_, value any) bool {
		watcher := value.(*Watcher)
		select {
		case watcher.Ch <- event:
		default:
			m.dropped.Inc()
		}
		return true
	})
}

func (m *Manager) Stop(watcher *Watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, loaded := m.watchers.LoadAndDelete(watcher); loaded {
		close(watcher.Ch)
	}
}

// Dropped counts events discarded because a watcher fell behind.
func (m *Manager) Dropped() int64 {
	return m.dropped.Load()
}
