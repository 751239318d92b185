package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
)

var (
	burger = cart.FoodItem{ID: "x", Name: "Burger", Price: decimal.NewFromInt(250)}
	fries  = cart.FoodItem{ID: "y", Name: "Fries", Price: decimal.NewFromInt(120)}
	soda   = cart.FoodItem{ID: "z", Name: "Soda", Price: decimal.NewFromInt(80)}
)

func confirmedCart(dc int64, lines ...cart.Line) cart.Snapshot {
	return cart.New(lines, decimal.NewFromInt(dc))
}

func line(id string, item cart.FoodItem, qty int) cart.Line {
	return cart.Line{ID: id, FoodItemID: item.ID, Quantity: qty, FoodItem: item}
}

func assertInvariant(t *testing.T, s cart.Snapshot) {
	t.Helper()
	sum := decimal.Zero
	count := 0
	for _, l := range s.Lines {
		require.Positive(t, l.Quantity, "materialized line with zero quantity")
		sum = sum.Add(l.Total())
		count += l.Quantity
	}
	assert.True(t, s.Subtotal().Equal(sum), "subtotal %s != %s", s.Subtotal(), sum)
	assert.True(t, s.Total().Equal(s.Subtotal().Add(s.DeliveryCharges)))
	assert.Equal(t, count, s.ItemCount())
}

func TestOptimisticStore_ApplyLocalQuantity(t *testing.T) {
	s := NewOptimisticStore()

	snap := s.ApplyLocalQuantity(burger, 1)
	assert.Equal(t, 1, snap.ItemCount())
	assert.True(t, decimal.NewFromInt(250).Equal(snap.Subtotal()))
	assertInvariant(t, snap)

	snap = s.ApplyLocalQuantity(fries, 2)
	assert.Equal(t, 3, snap.ItemCount())
	assert.True(t, decimal.NewFromInt(490).Equal(snap.Subtotal()))

	snap = s.ApplyLocalQuantity(burger, -4)
	assert.Equal(t, 0, snap.Quantity("x"), "negative clamps to zero and removes")
	_, ok := snap.Line("x")
	assert.False(t, ok)
	assertInvariant(t, snap)
}

func TestOptimisticStore_DeliveryChargesFromConfirmed(t *testing.T) {
	s := NewOptimisticStore()

	snap := s.ApplyLocalQuantity(burger, 1)
	assert.True(t, snap.DeliveryCharges.IsZero(), "unknown delivery charges default to zero")

	s.ReplaceWithAuthoritative(confirmedCart(40, line("line-1", burger, 1)))
	snap = s.ApplyLocalQuantity(fries, 1)
	assert.True(t, decimal.NewFromInt(40).Equal(snap.DeliveryCharges))
	assert.True(t, decimal.NewFromInt(410).Equal(snap.Total()))
	assertInvariant(t, snap)
}

func TestOptimisticStore_ReplaceIsIdempotent(t *testing.T) {
	s := NewOptimisticStore()
	server := confirmedCart(30, line("line-1", burger, 2), line("line-2", soda, 1))

	first := s.ReplaceWithAuthoritative(server)
	second := s.ReplaceWithAuthoritative(server)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Version, second.Version, "identical replace must not bump the version")
	assert.Equal(t, first, s.Snapshot())
}

func TestOptimisticStore_VersionsIncrease(t *testing.T) {
	s := NewOptimisticStore()
	assert.Equal(t, int64(0), s.Version())

	v1 := s.ApplyLocalQuantity(burger, 1).Version
	v2 := s.ApplyLocalQuantity(burger, 2).Version
	v3 := s.Clear().Version

	assert.Less(t, v1, v2)
	assert.Less(t, v2, v3)
	assert.Equal(t, v3, s.Version())

	// Clearing an already empty cart changes nothing.
	assert.Equal(t, v3, s.Clear().Version)
}

func TestOptimisticStore_LineRouting(t *testing.T) {
	s := NewOptimisticStore()
	s.ReplaceWithAuthoritative(confirmedCart(0, line("line-7", burger, 1)))

	id, ok := s.LineID("x")
	require.True(t, ok)
	assert.Equal(t, "line-7", id)

	// A local-only line has no server id.
	s.ApplyLocalQuantity(fries, 1)
	_, ok = s.LineID("y")
	assert.False(t, ok)

	// Invalidate hides the cart but keeps routing.
	snap := s.Invalidate()
	assert.True(t, snap.IsEmpty())
	id, ok = s.LineID("x")
	require.True(t, ok)
	assert.Equal(t, "line-7", id)
	item, ok := s.Item("x")
	require.True(t, ok)
	assert.Equal(t, "Burger", item.Name)

	// Clear forgets it.
	s.Clear()
	_, ok = s.LineID("x")
	assert.False(t, ok)
}

func TestOptimisticStore_WatchCoalesces(t *testing.T) {
	s := NewOptimisticStore()
	ch, cancel := s.Watch()
	defer cancel()

	s.ApplyLocalQuantity(burger, 1)
	s.ApplyLocalQuantity(burger, 2)
	s.ApplyLocalQuantity(burger, 3)

	select {
	case <-ch:
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce into one")
	default:
	}
	assert.Equal(t, 3, s.Snapshot().Quantity("x"))

	cancel()
	s.ApplyLocalQuantity(burger, 4)
	select {
	case <-ch:
		t.Fatal("cancelled watcher must not be signalled")
	default:
	}
}

func TestOptimisticStore_SnapshotIsCopy(t *testing.T) {
	s := NewOptimisticStore()
	s.ApplyLocalQuantity(burger, 1)

	snap := s.Snapshot()
	snap.Lines[0].Quantity = 99

	assert.Equal(t, 1, s.Snapshot().Quantity("x"))
}
