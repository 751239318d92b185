package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartserver"
	"github.com/roach88/cartsync/internal/gateway"
)

// Operation names recorded by FakeGateway.
const (
	OpFetch  = "fetch"
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
	OpClear  = "clear"
)

// Call is one recorded gateway call.
type Call struct {
	Op         string
	Session    string
	LineID     string
	FoodItemID string
	Quantity   int
	Failed     bool
}

// String renders the call as the HTTP request it stands for.
func (c Call) String() string {
	var s string
	switch c.Op {
	case OpFetch:
		s = "GET /cart"
	case OpAdd:
		s = fmt.Sprintf("POST /cart/add %s quantity=%d", c.FoodItemID, c.Quantity)
	case OpUpdate:
		s = fmt.Sprintf("PUT /cart/%s quantity=%d", c.LineID, c.Quantity)
	case OpRemove:
		s = fmt.Sprintf("DELETE /cart/%s", c.LineID)
	case OpClear:
		s = "POST /cart/clear"
	default:
		s = c.Op
	}
	if c.Failed {
		s += " -> 500"
	}
	return s
}

// FakeGateway implements gateway.Gateway on top of a cartserver.Store.
//
// Every call is recorded in order. FailOn makes matching calls fail with a
// 500 StatusError without touching the store; Before registers a hook that
// runs before a matching call is applied, which tests use to hold a call
// "in flight".
//
// Thread-safety: safe for concurrent use.
type FakeGateway struct {
	Store *cartserver.Store

	mu       sync.Mutex
	calls    []Call
	failures map[string]bool
	hooks    map[string]func()
}

var _ gateway.Gateway = (*FakeGateway)(nil)

// NewFakeGateway wraps store.
func NewFakeGateway(store *cartserver.Store) *FakeGateway {
	return &FakeGateway{
		Store:    store,
		failures: make(map[string]bool),
		hooks:    make(map[string]func()),
	}
}

// FailOn makes calls of op on target fail. target is the line id for
// update/remove, the food item id for add, and "" for fetch/clear.
func (f *FakeGateway) FailOn(op, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+":"+target] = true
}

// Recover undoes FailOn.
func (f *FakeGateway) Recover(op, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, op+":"+target)
}

// Before runs fn before each matching call is applied.
func (f *FakeGateway) Before(op, target string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[op+":"+target] = fn
}

// Calls returns a copy of the recorded calls.
func (f *FakeGateway) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many calls of op were recorded.
func (f *FakeGateway) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (f *FakeGateway) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// begin records the call, runs any hook, and reports whether it should fail.
func (f *FakeGateway) begin(c Call, target string) bool {
	key := c.Op + ":" + target

	f.mu.Lock()
	hook := f.hooks[key]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c.Failed = f.failures[key]
	f.calls = append(f.calls, c)
	return c.Failed
}

func failure(op string) error {
	return &gateway.StatusError{Op: op, StatusCode: http.StatusInternalServerError, Message: "injected failure"}
}

// Fetch reads the cart from the store.
func (f *FakeGateway) Fetch(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	if f.begin(Call{Op: OpFetch, Session: sessionID}, "") {
		return cart.Snapshot{}, failure(OpFetch)
	}
	return f.Store.Get(ctx, sessionID)
}

// Add adds an item in the store.
func (f *FakeGateway) Add(ctx context.Context, sessionID, foodItemID string, quantity int) error {
	if f.begin(Call{Op: OpAdd, Session: sessionID, FoodItemID: foodItemID, Quantity: quantity}, foodItemID) {
		return failure(OpAdd)
	}
	_, err := f.Store.Add(ctx, sessionID, foodItemID, quantity)
	return err
}

// Update sets a line quantity in the store.
func (f *FakeGateway) Update(ctx context.Context, sessionID, lineID string, quantity int) error {
	if f.begin(Call{Op: OpUpdate, Session: sessionID, LineID: lineID, Quantity: quantity}, lineID) {
		return failure(OpUpdate)
	}
	_, err := f.Store.Update(ctx, sessionID, lineID, quantity)
	return err
}

// Remove deletes a line in the store.
func (f *FakeGateway) Remove(ctx context.Context, sessionID, lineID string) error {
	if f.begin(Call{Op: OpRemove, Session: sessionID, LineID: lineID}, lineID) {
		return failure(OpRemove)
	}
	return f.Store.Remove(ctx, sessionID, lineID)
}

// Clear empties the cart in the store.
func (f *FakeGateway) Clear(ctx context.Context, sessionID string) error {
	if f.begin(Call{Op: OpClear, Session: sessionID}, "") {
		return failure(OpClear)
	}
	return f.Store.Clear(ctx, sessionID)
}
