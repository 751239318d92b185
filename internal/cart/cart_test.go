package cart

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, price int64) FoodItem {
	return FoodItem{ID: id, Name: "item-" + id, Price: decimal.NewFromInt(price)}
}

// assertInvariants checks the derived-field contract on any snapshot.
func assertInvariants(t *testing.T, s Snapshot) {
	t.Helper()

	sum := decimal.Zero
	count := 0
	for _, l := range s.Lines {
		assert.Positive(t, l.Quantity, "materialized line %s has non-positive quantity", l.FoodItemID)
		sum = sum.Add(l.FoodItem.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	assert.True(t, s.Subtotal().Equal(sum), "subtotal %s != %s", s.Subtotal(), sum)
	assert.True(t, s.Total().Equal(s.Subtotal().Add(s.DeliveryCharges)))
	assert.Equal(t, count, s.ItemCount())
}

func TestWithQuantity_AddToEmpty(t *testing.T) {
	s := Empty().WithQuantity(item("x", 250), 1)

	require.Len(t, s.Lines, 1)
	assert.Equal(t, 1, s.ItemCount())
	assert.True(t, s.Subtotal().Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "", s.Lines[0].ID, "local line has no server id")
	assertInvariants(t, s)
}

func TestWithQuantity_ReplaceKeepsPositionAndID(t *testing.T) {
	base := New([]Line{
		{ID: "l1", FoodItemID: "a", Quantity: 1, FoodItem: item("a", 100)},
		{ID: "l2", FoodItemID: "b", Quantity: 2, FoodItem: item("b", 50)},
	}, decimal.NewFromInt(30))

	s := base.WithQuantity(item("a", 100), 4)

	require.Len(t, s.Lines, 2)
	assert.Equal(t, "l1", s.Lines[0].ID)
	assert.Equal(t, 4, s.Lines[0].Quantity)
	assert.True(t, s.Total().Equal(decimal.NewFromInt(530)))
	assertInvariants(t, s)

	// Receiver is untouched.
	assert.Equal(t, 1, base.Lines[0].Quantity)
}

func TestWithQuantity_ZeroRemoves(t *testing.T) {
	base := Empty().WithQuantity(item("a", 10), 2).WithQuantity(item("b", 5), 1)

	s := base.WithQuantity(item("a", 10), 0)
	_, ok := s.Line("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.ItemCount())
	assertInvariants(t, s)
}

func TestWithQuantity_NegativeClampsToZero(t *testing.T) {
	s := Empty().WithQuantity(item("a", 10), 2).WithQuantity(item("a", 10), -3)
	assert.True(t, s.IsEmpty())
	assertInvariants(t, s)
}

func TestWithQuantity_ZeroOnAbsentIsNoop(t *testing.T) {
	s := Empty().WithQuantity(item("a", 10), 0)
	assert.True(t, s.IsEmpty())
}

func TestNew_DropsNonPositiveLines(t *testing.T) {
	s := New([]Line{
		{ID: "l1", Quantity: 0, FoodItem: item("a", 1)},
		{ID: "l2", Quantity: 3, FoodItem: item("b", 2)},
	}, decimal.Zero)

	require.Len(t, s.Lines, 1)
	assert.Equal(t, "b", s.Lines[0].FoodItemID, "food item id backfilled from nested item")
	assertInvariants(t, s)
}

func TestInvariants_RandomWalk(t *testing.T) {
	items := []FoodItem{item("a", 120), item("b", 75), item("c", 999)}
	s := New(nil, decimal.NewFromInt(40))

	for i := 0; i < 200; i++ {
		it := items[i%len(items)]
		q := (i*7)%6 - 1 // includes -1 and 0
		s = s.WithQuantity(it, q)
		assertInvariants(t, s)
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	s := Empty().WithQuantity(item("a", 1), 1)
	c := s.Clone()
	c.Lines[0].Quantity = 9

	assert.Equal(t, 1, s.Lines[0].Quantity)
}

func TestMarshalJSON_IncludesDerivedTotals(t *testing.T) {
	s := Empty().WithQuantity(item("a", 250), 2)
	s.DeliveryCharges = decimal.NewFromInt(50)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "500", raw["subtotal"])
	assert.Equal(t, "550", raw["total"])
	assert.EqualValues(t, 2, raw["itemCount"])
}

func TestUnmarshalJSON_RecomputesTotals(t *testing.T) {
	// Server-provided totals disagree with the lines; lines win.
	data := []byte(`{
		"items": [{"id": "l1", "foodItemId": "a", "quantity": 3, "foodItem": {"id": "a", "name": "A", "price": 10}}],
		"subtotal": 999, "deliveryCharges": 5, "total": 999, "itemCount": 42
	}`)

	var s Snapshot
	require.NoError(t, json.Unmarshal(data, &s))
	assert.True(t, s.Subtotal().Equal(decimal.NewFromInt(30)))
	assert.True(t, s.Total().Equal(decimal.NewFromInt(35)))
	assert.Equal(t, 3, s.ItemCount())
}

func TestEqual(t *testing.T) {
	a := Empty().WithQuantity(item("a", 1), 1)
	b := a.Clone()
	b.Version = 7
	assert.True(t, a.Equal(b), "version is ignored")

	c := a.WithQuantity(item("a", 1), 2)
	assert.False(t, a.Equal(c))
}
