package engine

import (
	"sync"
)

// EventKind identifies what completed.
type EventKind int

const (
	// EventFlushed is published after a flush cycle's calls have settled.
	EventFlushed EventKind = iota + 1
	// EventCleared is published after a clear has been sent and reconciled.
	EventCleared
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventFlushed:
		return "flushed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is a "cart changed" notification. Seq increases per publish.
type Event struct {
	Kind EventKind
	Seq  int64
}

// Broadcaster is the engine's cart-changed topic. It replaces a global event
// bus with an explicit subscriber list owned by one engine.
//
// Subscribers are invoked synchronously, in subscription order, on the
// publishing goroutine and without the lock held, so a subscriber may
// subscribe or unsubscribe from its callback.
type Broadcaster struct {
	mu    sync.Mutex
	subs  map[uint64]func(Event)
	order []uint64
	next  uint64
	seq   versionClock
}

// NewBroadcaster returns a topic with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]func(Event))}
}

// Subscription is a handle for one subscriber.
type Subscription struct {
	b    *Broadcaster
	id   uint64
	once sync.Once
}

// Subscribe registers fn for all future events.
func (b *Broadcaster) Subscribe(fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	b.subs[id] = fn
	b.order = append(b.order, id)
	return &Subscription{b: b, id: id}
}

// Unsubscribe removes the subscriber. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		b := s.b
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.subs, s.id)
		for i, id := range b.order {
			if id == s.id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	})
}

// Publish delivers an event to every current subscriber.
func (b *Broadcaster) Publish(kind EventKind) Event {
	ev := Event{Kind: kind, Seq: b.seq.Next()}

	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// Len returns the number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
