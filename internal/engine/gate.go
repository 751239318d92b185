package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Gate keys for the full-cart read and the clear call. Per-item keys are
// built with updateKey and removeKey.
const (
	fetchKey = "fetch"
	clearKey = "clear"
)

func updateKey(itemID string) string { return "update_" + itemID }
func removeKey(itemID string) string { return "remove_" + itemID }

// Gate ensures at most one in-flight call per key. Callers that arrive while
// a call is running share its result instead of starting another.
//
// The in-flight entry is removed exactly once, when the call settles with a
// value, an error, or a recovered panic.
type Gate struct {
	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]struct{}
	calls    map[string]int
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{
		inflight: make(map[string]struct{}),
		calls:    make(map[string]int),
	}
}

// Do runs fn under key, or joins the call already running under key.
// shared reports whether the result came from a call started by someone
// else. fn receives a context detached from the caller's cancellation so
// that one impatient caller cannot fail the call for everyone; a cancelled
// caller stops waiting and gets ctx.Err().
func Do[T any](ctx context.Context, g *Gate, key string, fn func(context.Context) (T, error)) (val T, shared bool, err error) {
	owner := false
	callCtx := context.WithoutCancel(ctx)

	ch := g.group.DoChan(key, func() (v any, err error) {
		owner = true
		g.begin(key)
		defer g.end(key)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", key, r)
			}
		}()
		return fn(callCtx)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case r := <-ch:
		v, _ := r.Val.(T)
		return v, r.Shared && !owner, r.Err
	}
}

// Calls returns how many times a function actually ran under key.
func (g *Gate) Calls(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

// InFlight returns the number of keys with a running call.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

func (g *Gate) begin(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight[key] = struct{}{}
	g.calls[key]++
}

func (g *Gate) end(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}
