package engine

import "sync"

// Mutation is a pending target quantity for one food item.
type Mutation struct {
	ItemID   string
	Quantity int
}

// MutationQueue buffers pending quantity changes with last-write-wins per
// item. Intermediate values are never sent: only the latest target for each
// item survives until the next Take.
//
// Thread-safety: all methods are safe for concurrent use.
type MutationQueue struct {
	mu      sync.Mutex
	pending map[string]int
	order   []string // first-enqueue order, for deterministic dispatch
}

// NewMutationQueue returns an empty queue.
func NewMutationQueue() *MutationQueue {
	return &MutationQueue{pending: make(map[string]int)}
}

// Enqueue records quantity as the target for itemID, overwriting any
// previous target.
func (q *MutationQueue) Enqueue(itemID string, quantity int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[itemID]; !ok {
		q.order = append(q.order, itemID)
	}
	q.pending[itemID] = quantity
}

// Take atomically returns all pending mutations and empties the queue.
func (q *MutationQueue) Take() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return nil
	}
	out := make([]Mutation, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, Mutation{ItemID: id, Quantity: q.pending[id]})
	}
	q.pending = make(map[string]int)
	q.order = q.order[:0]
	return out
}

// Drop discards all pending mutations and returns how many there were.
func (q *MutationQueue) Drop() int {
	return len(q.Take())
}

// Len returns the number of distinct items pending.
func (q *MutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
