package waitlist

import (
	"sync"
	"time"

	"github.com/iliyamo/waitlist-display/internal/model"
)

// EventType names a state change emitted by the engine.
type EventType string

const (
	EventRegistered EventType = "reservation.registered"
	EventCalled     EventType = "reservation.called"
	EventSeated     EventType = "reservation.seated"
	EventCancelled  EventType = "reservation.cancelled"
	EventMissed     EventType = "reservation.missed"
)

// Event carries the reservation as it was right after the transition.
type Event struct {
	Type        EventType         `json:"type"`
	Reservation model.Reservation `json:"reservation"`
	At          time.Time         `json:"at"`
}

// notifier fans events out to subscribers.  Handlers are invoked
// synchronously on the goroutine that performed the transition and must
// not block.
type notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func (n *notifier) subscribe(fn func(Event)) func() {
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) publish(ev Event) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
