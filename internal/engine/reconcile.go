package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/clock"
	"github.com/roach88/cartsync/internal/gateway"
)

// Reconciler replaces the optimistic snapshot with the server's cart.
//
// Refresh is gated by a cooldown measured from the start of the last
// successful read; force bypasses it. DebouncedRefresh coalesces bursts of
// broadcast-driven refreshes into one. Every read goes through the "fetch"
// gate key, so overlapping triggers never produce two simultaneous reads.
type Reconciler struct {
	gw       gateway.Gateway
	gate     *Gate
	store    *OptimisticStore
	clock    clock.Clock
	session  func(context.Context) string
	cooldown time.Duration
	logger   *slog.Logger

	// lock is held shared for the duration of every read so that an
	// exclusive holder (Clear) knows no read straddles it.
	lock *sync.RWMutex

	mu          sync.Mutex
	lastSuccess time.Time

	debounce *Debouncer
	baseCtx  context.Context
}

// Refresh reads the server cart. Without force, a read is skipped while the
// cooldown since the last successful read is running.
//
// On success the snapshot is replaced wholesale. On failure the visible cart
// becomes empty, so unconfirmed data never stands as if it were confirmed,
// and the error is returned.
func (r *Reconciler) Refresh(ctx context.Context, force bool) error {
	if !force && r.coolingDown() {
		r.logger.Debug("refresh skipped: cooldown")
		return nil
	}

	r.lock.RLock()
	defer r.lock.RUnlock()

	sid := r.session(ctx)
	_, shared, err := Do(ctx, r.gate, fetchKey, func(ctx context.Context) (cart.Snapshot, error) {
		start := r.clock.Now()
		snap, err := r.gw.Fetch(ctx, sid)
		if err != nil {
			r.store.Invalidate()
			return cart.Snapshot{}, err
		}

		installed := r.store.ReplaceWithAuthoritative(snap)
		r.mu.Lock()
		r.lastSuccess = start
		r.mu.Unlock()

		r.logger.Debug("reconciled",
			"lines", len(installed.Lines),
			"items", installed.ItemCount(),
			"version", installed.Version,
		)
		return installed, nil
	})
	if err != nil {
		r.logger.Warn("reconcile failed",
			"force", force,
			"shared", shared,
			"transient", gateway.IsTransient(err),
			"error", err,
		)
		return err
	}
	return nil
}

// DebouncedRefresh schedules a non-forced Refresh after the quiet period.
func (r *Reconciler) DebouncedRefresh() {
	r.debounce.Trigger()
}

func (r *Reconciler) coolingDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSuccess.IsZero() {
		return false
	}
	return r.clock.Now().Sub(r.lastSuccess) < r.cooldown
}

func (r *Reconciler) debouncedFire() {
	if err := r.Refresh(r.baseCtx, false); err != nil && r.baseCtx.Err() == nil {
		r.logger.Debug("debounced refresh failed", "error", err)
	}
}
