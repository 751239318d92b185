package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// FoodItem is the menu item a cart line refers to.
// Price is a snapshot taken when the line was last confirmed or added.
type FoodItem struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image,omitempty"`
}

// Line is a single cart entry.
//
// ID is the server-assigned line id. It is empty for lines that were added
// locally and have not yet been confirmed by an authoritative read.
type Line struct {
	ID         string   `json:"id"`
	FoodItemID string   `json:"foodItemId"`
	Quantity   int      `json:"quantity"`
	FoodItem   FoodItem `json:"foodItem"`
}

// Total returns price × quantity.
func (l Line) Total() decimal.Decimal {
	return l.FoodItem.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is an ordered, immutable view of a cart.
// Methods never modify the receiver; mutators return a new Snapshot.
type Snapshot struct {
	Lines           []Line
	DeliveryCharges decimal.Decimal
	Version         int64
}

// Empty returns a snapshot with no lines and no delivery charges.
func Empty() Snapshot {
	return Snapshot{}
}

// New builds a materialized snapshot from server lines.
// Lines with a non-positive quantity are dropped.
func New(lines []Line, deliveryCharges decimal.Decimal) Snapshot {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if l.FoodItemID == "" {
			l.FoodItemID = l.FoodItem.ID
		}
		out = append(out, l)
	}
	return Snapshot{Lines: out, DeliveryCharges: deliveryCharges}
}

// Subtotal is the sum of all line totals.
func (s Snapshot) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range s.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Total is Subtotal plus DeliveryCharges.
func (s Snapshot) Total() decimal.Decimal {
	return s.Subtotal().Add(s.DeliveryCharges)
}

// ItemCount is the sum of all line quantities.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the snapshot has no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Line returns the line for a food item id.
func (s Snapshot) Line(itemID string) (Line, bool) {
	for _, l := range s.Lines {
		if l.FoodItemID == itemID {
			return l, true
		}
	}
	return Line{}, false
}

// Quantity returns the quantity of itemID, or 0 when absent.
func (s Snapshot) Quantity(itemID string) int {
	l, _ := s.Line(itemID)
	return l.Quantity
}

// WithQuantity returns a copy of s where item has the given quantity.
//
// Negative quantities are clamped to 0. A zero quantity removes the line.
// An existing line keeps its position and server id; a new line is appended
// with an empty id. Delivery charges and version are carried over.
func (s Snapshot) WithQuantity(item FoodItem, quantity int) Snapshot {
	if quantity < 0 {
		quantity = 0
	}

	out := Snapshot{
		Lines:           make([]Line, 0, len(s.Lines)+1),
		DeliveryCharges: s.DeliveryCharges,
		Version:         s.Version,
	}

	found := false
	for _, l := range s.Lines {
		if l.FoodItemID != item.ID {
			out.Lines = append(out.Lines, l)
			continue
		}
		found = true
		if quantity == 0 {
			continue
		}
		l.Quantity = quantity
		out.Lines = append(out.Lines, l)
	}

	if !found && quantity > 0 {
		out.Lines = append(out.Lines, Line{
			FoodItemID: item.ID,
			Quantity:   quantity,
			FoodItem:   item,
		})
	}

	return out
}

// Clone returns a deep copy so callers cannot alias the line slice.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Lines != nil {
		c.Lines = make([]Line, len(s.Lines))
		copy(c.Lines, s.Lines)
	}
	return c
}

// Equal reports whether two snapshots hold the same lines and charges.
// Version is ignored.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Lines) != len(o.Lines) || !s.DeliveryCharges.Equal(o.DeliveryCharges) {
		return false
	}
	for i := range s.Lines {
		a, b := s.Lines[i], o.Lines[i]
		if a.ID != b.ID || a.FoodItemID != b.FoodItemID || a.Quantity != b.Quantity ||
			!a.FoodItem.Price.Equal(b.FoodItem.Price) || a.FoodItem.Name != b.FoodItem.Name {
			return false
		}
	}
	return true
}

// snapshotJSON is the serialized form, including derived totals.
type snapshotJSON struct {
	Items           []Line          `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DeliveryCharges decimal.Decimal `json:"deliveryCharges"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"itemCount"`
	Version         int64           `json:"version,omitempty"`
}

// MarshalJSON writes the lines together with the derived totals.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	items := s.Lines
	if items == nil {
		items = []Line{}
	}
	return json.Marshal(snapshotJSON{
		Items:           items,
		Subtotal:        s.Subtotal(),
		DeliveryCharges: s.DeliveryCharges,
		Total:           s.Total(),
		ItemCount:       s.ItemCount(),
		Version:         s.Version,
	})
}

// UnmarshalJSON reads lines and delivery charges. Serialized totals are
// ignored because they are always recomputed from the lines.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = New(raw.Items, raw.DeliveryCharges)
	s.Version = raw.Version
	return nil
}
