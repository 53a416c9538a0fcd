// Package notifytest provides an in-memory notify.Dispatcher for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/notify"
)

// Recorder keeps dispatched events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *Recorder) Dispatch(_ context.Context, evt notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []notify.Event {
	var out []notify.Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
