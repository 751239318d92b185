package engine

import (
	"sync/atomic"

	"github.com/roach88/cartsync/internal/cart"
)

// Surface is a mounted cart view (nav badge, drawer, cart page).
//
// Surfaces never own cart state. Each one subscribes to the engine's
// broadcast and reacts to every event with a debounced refresh, so any
// number of mounted surfaces converge on the same snapshot through at most
// one read per quiet period.
type Surface struct {
	name    string
	engine  *Engine
	sub     *Subscription
	notices atomic.Int64
}

// Mount attaches a named surface to the engine.
func (e *Engine) Mount(name string) *Surface {
	s := &Surface{name: name, engine: e}
	s.sub = e.broadcast.Subscribe(func(ev Event) {
		s.notices.Add(1)
		e.logger.Debug("surface notified", "surface", name, "event", ev.Kind.String(), "seq", ev.Seq)
		e.reconciler.DebouncedRefresh()
	})
	return s
}

// Name returns the surface name.
func (s *Surface) Name() string { return s.name }

// Snapshot returns the engine's current snapshot.
func (s *Surface) Snapshot() cart.Snapshot { return s.engine.Snapshot() }

// Notifications returns how many broadcast events the surface received.
func (s *Surface) Notifications() int64 { return s.notices.Load() }

// Unmount detaches the surface. Safe to call more than once.
func (s *Surface) Unmount() { s.sub.Unsubscribe() }
