package engine

import (
	"sync"

	"github.com/roach88/cartsync/internal/cart"
)

// OptimisticStore holds the UI-facing cart snapshot.
//
// It keeps two layers: the visible snapshot (confirmed base plus local
// patches) and the last confirmed snapshot from a successful read. The
// confirmed layer routes flushes to server line ids and supplies delivery
// charges for local patches.
//
// Thread-safety: all methods are safe for concurrent use.
type OptimisticStore struct {
	mu        sync.RWMutex
	snap      cart.Snapshot
	confirmed cart.Snapshot
	versions  versionClock

	watchers  map[int]chan struct{}
	nextWatch int
}

// NewOptimisticStore returns a store holding an empty cart.
func NewOptimisticStore() *OptimisticStore {
	return &OptimisticStore{
		snap:     cart.Empty(),
		watchers: make(map[int]chan struct{}),
	}
}

// Snapshot returns a copy of the visible snapshot.
func (s *OptimisticStore) Snapshot() cart.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// ApplyLocalQuantity sets item's quantity in the visible snapshot.
// Negative quantities clamp to 0 and 0 removes the line. Totals are derived
// from the lines, so this is O(lines) and never touches the network.
func (s *OptimisticStore) ApplyLocalQuantity(item cart.FoodItem, quantity int) cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.WithQuantity(item, quantity)
	next.DeliveryCharges = s.confirmed.DeliveryCharges
	return s.setLocked(next)
}

// ReplaceWithAuthoritative overwrites both layers with a confirmed snapshot.
// Replacing with an identical snapshot is a no-op, version included.
func (s *OptimisticStore) ReplaceWithAuthoritative(snap cart.Snapshot) cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed = snap.Clone()
	s.confirmed.Version = 0
	return s.setLocked(snap.Clone())
}

// Clear empties the visible snapshot and forgets confirmed lines, so a later
// add is not routed to a line the server is about to drop.
func (s *OptimisticStore) Clear() cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confirmed = cart.Empty()
	return s.setLocked(cart.Empty())
}

// Invalidate shows an empty cart after a failed read while keeping the
// confirmed layer for line routing.
func (s *OptimisticStore) Invalidate() cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(cart.Empty())
}

// LineID returns the server line id for a food item from the confirmed layer.
func (s *OptimisticStore) LineID(itemID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.confirmed.Line(itemID)
	if !ok || l.ID == "" {
		return "", false
	}
	return l.ID, true
}

// Item looks up a food item in the visible snapshot, then the confirmed one.
func (s *OptimisticStore) Item(itemID string) (cart.FoodItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.snap.Line(itemID); ok {
		return l.FoodItem, true
	}
	if l, ok := s.confirmed.Line(itemID); ok {
		return l.FoodItem, true
	}
	return cart.FoodItem{}, false
}

// Version returns the version of the visible snapshot.
func (s *OptimisticStore) Version() int64 {
	return s.versions.Current()
}

// Watch returns a channel that receives a signal whenever the visible
// snapshot changes. Signals coalesce (buffer of 1); read Snapshot after
// each one. Call cancel to stop watching.
func (s *OptimisticStore) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatch
	s.nextWatch++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
		})
	}
	return ch, cancel
}

// setLocked installs next as the visible snapshot, bumping the version and
// signalling watchers only if the content changed.
func (s *OptimisticStore) setLocked(next cart.Snapshot) cart.Snapshot {
	if next.Equal(s.snap) {
		return s.snap.Clone()
	}

	next.Version = s.versions.Next()
	s.snap = next

	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return s.snap.Clone()
}
