package testutil

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartserver"
	"github.com/roach88/cartsync/internal/gateway"
)

func TestFakeGateway_RecordsAndApplies(t *testing.T) {
	ctx := context.Background()
	store := cartserver.NewStore(cart.FoodItem{ID: "x", Name: "X", Price: decimal.NewFromInt(10)})
	f := NewFakeGateway(store)

	require.NoError(t, f.Add(ctx, "s", "x", 2))
	require.NoError(t, f.Update(ctx, "s", "line-1", 3))
	snap, err := f.Fetch(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.ItemCount())

	var lines []string
	for _, c := range f.Calls() {
		lines = append(lines, c.String())
	}
	assert.Equal(t, []string{
		"POST /cart/add x quantity=2",
		"PUT /cart/line-1 quantity=3",
		"GET /cart",
	}, lines)
	assert.Equal(t, 1, f.Count(OpFetch))
}

func TestFakeGateway_FailOn(t *testing.T) {
	ctx := context.Background()
	store := cartserver.NewStore(cart.FoodItem{ID: "x", Name: "X", Price: decimal.NewFromInt(10)})
	f := NewFakeGateway(store)
	require.NoError(t, f.Add(ctx, "s", "x", 1))

	f.FailOn(OpUpdate, "line-1")
	err := f.Update(ctx, "s", "line-1", 5)
	require.Error(t, err)
	assert.True(t, gateway.IsTransient(err))

	snap, _ := store.Get(ctx, "s")
	assert.Equal(t, 1, snap.ItemCount(), "failed call leaves server untouched")

	f.Recover(OpUpdate, "line-1")
	require.NoError(t, f.Update(ctx, "s", "line-1", 5))
	calls := f.Calls()
	assert.Equal(t, "PUT /cart/line-1 quantity=5 -> 500", calls[1].String())
}

func TestFakeGateway_Before(t *testing.T) {
	store := cartserver.NewStore()
	f := NewFakeGateway(store)
	ran := false
	f.Before(OpClear, "", func() { ran = true })

	require.NoError(t, f.Clear(context.Background(), "s"))
	assert.True(t, ran)
}
