package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/clock"
	"github.com/roach88/cartsync/internal/gateway"
)

// Defaults for the engine timers.
const (
	DefaultFlushDelay      = 800 * time.Millisecond
	DefaultRefreshDelay    = 500 * time.Millisecond
	DefaultRefreshCooldown = time.Second
	DefaultReconcileDelay  = 150 * time.Millisecond
	DefaultMaxConcurrency  = 8
)

// SessionProvider supplies the session id addressing the server cart.
// Implemented by session.Identity.
type SessionProvider interface {
	Ensure(ctx context.Context) string
}

// Engine owns one client's cart state: the optimistic store, the pending
// mutation queue, the dedupe gate, the reconciler and the broadcast topic.
// Independent engines share nothing.
//
// Thread-safety model:
//   - all exported methods are safe from any goroutine
//   - flushes and reads hold the dispatch lock shared; Clear holds it
//     exclusively, so no call straddles a server-side clear
type Engine struct {
	gw      gateway.Gateway
	session SessionProvider
	clock   clock.Clock
	logger  *slog.Logger

	flushDelay     time.Duration
	refreshDelay   time.Duration
	cooldown       time.Duration
	reconcileDelay time.Duration
	maxConcurrency int

	store      *OptimisticStore
	queue      *MutationQueue
	gate       *Gate
	reconciler *Reconciler
	broadcast  *Broadcaster

	flusher *Debouncer // trailing flush timer
	settle  *Debouncer // post-flush forced reconcile

	dispatchMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup

	flushes  atomic.Int64
	failures atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock driving debounce and cooldown timers.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFlushDelay sets the quiet period before queued mutations are sent.
func WithFlushDelay(d time.Duration) Option {
	return func(e *Engine) { e.flushDelay = d }
}

// WithRefreshDelay sets the quiet period for broadcast-driven refreshes.
func WithRefreshDelay(d time.Duration) Option {
	return func(e *Engine) { e.refreshDelay = d }
}

// WithRefreshCooldown sets the minimum interval between non-forced reads.
func WithRefreshCooldown(d time.Duration) Option {
	return func(e *Engine) { e.cooldown = d }
}

// WithReconcileDelay sets the delay between a settled flush and its forced
// read.
func WithReconcileDelay(d time.Duration) Option {
	return func(e *Engine) { e.reconcileDelay = d }
}

// WithMaxConcurrency bounds the number of item calls a flush runs at once.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

// New creates an engine talking to gw for the session supplied by sp.
// No network call is made until the first flush or refresh.
func New(gw gateway.Gateway, sp SessionProvider, opts ...Option) *Engine {
	e := &Engine{
		gw:             gw,
		session:        sp,
		clock:          clock.Real{},
		logger:         slog.Default(),
		flushDelay:     DefaultFlushDelay,
		refreshDelay:   DefaultRefreshDelay,
		cooldown:       DefaultRefreshCooldown,
		reconcileDelay: DefaultReconcileDelay,
		maxConcurrency: DefaultMaxConcurrency,
		store:          NewOptimisticStore(),
		queue:          NewMutationQueue(),
		gate:           NewGate(),
		broadcast:      NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxConcurrency < 1 {
		e.maxConcurrency = 1
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.reconciler = &Reconciler{
		gw:       gw,
		gate:     e.gate,
		store:    e.store,
		clock:    e.clock,
		session:  sp.Ensure,
		cooldown: e.cooldown,
		logger:   e.logger,
		lock:     &e.dispatchMu,
		baseCtx:  e.ctx,
	}
	e.reconciler.debounce = NewDebouncer(e.clock, e.refreshDelay, e.tracked(e.reconciler.debouncedFire))

	e.flusher = NewDebouncer(e.clock, e.flushDelay, e.tracked(func() {
		if err := e.flush(e.ctx); err != nil {
			e.logger.Debug("scheduled flush failed", "error", err)
		}
	}))
	e.settle = NewDebouncer(e.clock, e.reconcileDelay, e.tracked(func() {
		if err := e.reconciler.Refresh(e.ctx, true); err != nil {
			e.logger.Debug("post-flush reconcile failed", "error", err)
		}
	}))

	return e
}

// SessionID returns the session id, creating it on first use.
func (e *Engine) SessionID(ctx context.Context) string {
	return e.session.Ensure(ctx)
}

// Snapshot returns a copy of the current optimistic snapshot.
func (e *Engine) Snapshot() cart.Snapshot {
	return e.store.Snapshot()
}

// Watch returns a coalescing change signal and its cancel function.
func (e *Engine) Watch() (<-chan struct{}, func()) {
	return e.store.Watch()
}

// Subscribe registers fn for broadcast events.
func (e *Engine) Subscribe(fn func(Event)) *Subscription {
	return e.broadcast.Subscribe(fn)
}

// Add increases item's quantity by n, inserting the line if needed.
func (e *Engine) Add(item cart.FoodItem, n int) error {
	if n < 1 {
		return fmt.Errorf("add %s x%d: %w", item.ID, n, ErrInvalidQuantity)
	}
	current := e.store.Snapshot().Quantity(item.ID)
	return e.apply(item, current+n)
}

// SetQuantity sets an existing item's quantity. 0 removes the line.
func (e *Engine) SetQuantity(itemID string, quantity int) error {
	item, ok := e.store.Item(itemID)
	if !ok {
		return fmt.Errorf("set %s: %w", itemID, ErrUnknownItem)
	}
	return e.apply(item, quantity)
}

// Increment adds one to an existing item.
func (e *Engine) Increment(itemID string) error {
	return e.SetQuantity(itemID, e.store.Snapshot().Quantity(itemID)+1)
}

// Decrement removes one from an existing item, dropping the line at zero.
func (e *Engine) Decrement(itemID string) error {
	return e.SetQuantity(itemID, e.store.Snapshot().Quantity(itemID)-1)
}

// Remove drops an item from the cart.
func (e *Engine) Remove(itemID string) error {
	return e.SetQuantity(itemID, 0)
}

func (e *Engine) apply(item cart.FoodItem, quantity int) error {
	if e.isClosed() {
		return ErrClosed
	}
	if quantity < 0 {
		quantity = 0
	}
	snap := e.store.ApplyLocalQuantity(item, quantity)
	e.queue.Enqueue(item.ID, quantity)
	e.flusher.Trigger()

	e.logger.Debug("local change",
		"item", item.ID,
		"quantity", quantity,
		"items", snap.ItemCount(),
		"version", snap.Version,
	)
	return nil
}

// Flush cancels the debounce timer and sends pending mutations now.
func (e *Engine) Flush(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}
	e.flusher.Stop()
	return e.flush(ctx)
}

// Refresh reads the server cart; see Reconciler.Refresh.
func (e *Engine) Refresh(ctx context.Context, force bool) error {
	if e.isClosed() {
		return ErrClosed
	}
	return e.reconciler.Refresh(ctx, force)
}

// DebouncedRefresh schedules a non-forced refresh after the quiet period.
func (e *Engine) DebouncedRefresh() {
	if e.isClosed() {
		return
	}
	e.reconciler.DebouncedRefresh()
}

// flush sends one call per distinct pending item and waits for all of them.
// Item failures are logged and counted, never returned: the forced read
// scheduled afterwards is what restores server truth.
func (e *Engine) flush(ctx context.Context) error {
	e.dispatchMu.RLock()

	// Take under the lock so a concurrent Clear either drops these
	// mutations first or waits for them to settle.
	muts := e.queue.Take()
	if len(muts) == 0 {
		e.dispatchMu.RUnlock()
		return nil
	}

	sid := e.session.Ensure(ctx)
	var failed atomic.Int64

	// Taken mutations are always sent, and the read lock is held until
	// every call has settled, even when the caller stops waiting. A Clear
	// must not reach the server ahead of a call still in flight.
	callCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)
	for _, m := range muts {
		m := m
		g.Go(func() error {
			if err := e.dispatch(callCtx, sid, m); err != nil {
				failed.Add(1)
				e.logger.Warn("item sync failed",
					"item", m.ItemID,
					"quantity", m.Quantity,
					"transient", gateway.IsTransient(err),
					"not_found", gateway.IsNotFound(err),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Armed before releasing the lock so a Clear waiting on it can cancel
	// the read in favour of its own.
	e.settle.Trigger()
	e.dispatchMu.RUnlock()

	n := e.flushes.Add(1)
	e.failures.Add(failed.Load())
	e.logger.Info("flushed",
		"flush", n,
		"items", len(muts),
		"failed", failed.Load(),
	)

	e.broadcast.Publish(EventFlushed)
	return ctx.Err()
}

// dispatch sends the call for one mutation, routed by the confirmed line id.
func (e *Engine) dispatch(ctx context.Context, sid string, m Mutation) error {
	lineID, known := e.store.LineID(m.ItemID)

	var (
		key  string
		call func(context.Context) error
	)
	switch {
	case known && m.Quantity == 0:
		key = removeKey(m.ItemID)
		call = func(ctx context.Context) error { return e.gw.Remove(ctx, sid, lineID) }
	case known:
		key = updateKey(m.ItemID)
		call = func(ctx context.Context) error { return e.gw.Update(ctx, sid, lineID, m.Quantity) }
	case m.Quantity > 0:
		key = updateKey(m.ItemID)
		call = func(ctx context.Context) error { return e.gw.Add(ctx, sid, m.ItemID, m.Quantity) }
	default:
		// Never reached the server.
		return nil
	}

	_, _, err := Do(ctx, e.gate, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}

// Clear empties the cart immediately, drops unsent mutations, then clears
// the server cart once any in-flight flush has settled and re-reads it.
func (e *Engine) Clear(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}

	e.store.Clear()
	dropped := e.queue.Drop()
	e.flusher.Stop()

	e.dispatchMu.Lock()
	e.settle.Stop()
	// A read that completed while waiting may have reinstalled old lines.
	e.store.Clear()
	e.queue.Drop()

	sid := e.session.Ensure(ctx)
	_, _, err := Do(ctx, e.gate, clearKey, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.gw.Clear(ctx, sid)
	})
	e.dispatchMu.Unlock()

	if err != nil {
		e.logger.Warn("server clear failed", "error", err)
	} else {
		e.logger.Info("cleared", "dropped", dropped)
	}

	rerr := e.reconciler.Refresh(ctx, true)
	e.broadcast.Publish(EventCleared)

	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return rerr
}

// Stats is a point-in-time view of engine activity.
type Stats struct {
	Pending     int
	InFlight    int
	Version     int64
	Subscribers int
	Flushes     int64
	Failures    int64
	Reads       int
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Pending:     e.queue.Len(),
		InFlight:    e.gate.InFlight(),
		Version:     e.store.Version(),
		Subscribers: e.broadcast.Len(),
		Flushes:     e.flushes.Load(),
		Failures:    e.failures.Load(),
		Reads:       e.gate.Calls(fetchKey),
	}
}

// Gate exposes the dedupe gate for inspection.
func (e *Engine) Gate() *Gate { return e.gate }

// Close stops all timers and waits for running callbacks to finish.
// Pending unflushed mutations are dropped; call Flush first to keep them.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.flusher.Stop()
	e.settle.Stop()
	e.reconciler.debounce.Stop()
	if n := e.queue.Drop(); n > 0 {
		e.logger.Warn("closing with unsent changes", "items", n)
	}

	done := make(chan struct{})
	go func() {
		e.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// tracked wraps a timer callback so Close can wait for it. Callbacks that
// fire after Close are skipped.
func (e *Engine) tracked(fn func()) func() {
	return func() {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		e.running.Add(1)
		e.mu.Unlock()

		defer e.running.Done()
		fn()
	}
}
