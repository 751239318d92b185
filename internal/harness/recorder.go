package harness

import (
	"context"
	"sync"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/clock"
	"github.com/roach88/cartsync/internal/gateway"
	"github.com/roach88/cartsync/internal/testutil"
)

// recorder wraps the fake gateway and appends each call to the trace once
// it settles, stamped with the fake clock.
type recorder struct {
	fake *testutil.FakeGateway

	mu     sync.Mutex
	result *Result
	clock  *clock.Fake
	seq    int
}

var _ gateway.Gateway = (*recorder)(nil)

// start begins recording into result. Calls made before start (the
// initial load) are not traced.
func (r *recorder) start(result *Result, c *clock.Fake) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.clock = c
}

func (r *recorder) step(detail string) {
	r.append(EventStep, detail)
}

func (r *recorder) call(c testutil.Call, err error) {
	c.Failed = err != nil
	r.append(EventCall, c.String())
}

func (r *recorder) append(typ, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return
	}
	r.seq++
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Seq:    r.seq,
		AtMS:   r.clock.Now().Sub(epoch).Milliseconds(),
		Type:   typ,
		Detail: detail,
	})
}

func (r *recorder) Fetch(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	snap, err := r.fake.Fetch(ctx, sessionID)
	r.call(testutil.Call{Op: testutil.OpFetch}, err)
	return snap, err
}

func (r *recorder) Add(ctx context.Context, sessionID, foodItemID string, quantity int) error {
	err := r.fake.Add(ctx, sessionID, foodItemID, quantity)
	r.call(testutil.Call{Op: testutil.OpAdd, FoodItemID: foodItemID, Quantity: quantity}, err)
	return err
}

func (r *recorder) Update(ctx context.Context, sessionID, lineID string, quantity int) error {
	err := r.fake.Update(ctx, sessionID, lineID, quantity)
	r.call(testutil.Call{Op: testutil.OpUpdate, LineID: lineID, Quantity: quantity}, err)
	return err
}

func (r *recorder) Remove(ctx context.Context, sessionID, lineID string) error {
	err := r.fake.Remove(ctx, sessionID, lineID)
	r.call(testutil.Call{Op: testutil.OpRemove, LineID: lineID}, err)
	return err
}

func (r *recorder) Clear(ctx context.Context, sessionID string) error {
	err := r.fake.Clear(ctx, sessionID)
	r.call(testutil.Call{Op: testutil.OpClear}, err)
	return err
}
