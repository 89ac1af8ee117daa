package events

import "context"

// Event is anything a Manager fans out, e.g. catalog.SwapEvent.
type Event any

// Watcher receives Events on Ch until Stop is called.
type Watcher struct {
	Ch chan Event

	stop func(*Watcher)
}

// Next waits for the next event. It reports false once ctx is done or the
// watcher has been stopped.
func (w *Watcher) Next(ctx context.Context) (Event, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case ev, ok := <-w.Ch:
		return ev, ok
	}
}

// Stop unregisters the Watcher and closes Ch.
func (w *Watcher) Stop() {
	w.stop(w)
}
