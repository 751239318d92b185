// Package cartserver is an in-memory reference implementation of the remote
// cart HTTP contract consumed by the gateway package.
//
// It exists so the gateway and engine can be exercised end to end in tests
// and from `cartsync serve`. It is not a production cart service: there is
// no persistence, pricing beyond price × quantity, or authentication.
package cartserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/cart"
)

var (
	// ErrLineNotFound indicates the line id does not exist in the session's cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrUnknownFoodItem indicates the food item is not on the menu.
	ErrUnknownFoodItem = errors.New("unknown food item")
	// ErrInvalidQuantity indicates a negative quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Store holds carts keyed by session id.
type Store struct {
	mu              sync.RWMutex
	menu            map[string]cart.FoodItem
	carts           map[string][]cart.Line
	nextLine        int
	deliveryCharges decimal.Decimal
}

// NewStore creates a store whose menu contains items.
func NewStore(items ...cart.FoodItem) *Store {
	s := &Store{
		menu:  make(map[string]cart.FoodItem),
		carts: make(map[string][]cart.Line),
	}
	for _, it := range items {
		s.menu[it.ID] = it
	}
	return s
}

// AddMenuItem adds or replaces a menu item.
func (s *Store) AddMenuItem(item cart.FoodItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu[item.ID] = item
}

// SetDeliveryCharges sets the flat delivery charge applied to non-empty carts.
func (s *Store) SetDeliveryCharges(d decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveryCharges = d
}

// Get returns the session's cart. Unknown sessions have an empty cart.
func (s *Store) Get(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.carts[sessionID]
	if len(lines) == 0 {
		return cart.Empty(), nil
	}
	out := make([]cart.Line, len(lines))
	copy(out, lines)
	return cart.New(out, s.deliveryCharges), nil
}

// Add adds quantity of a menu item, creating the line if needed.
func (s *Store) Add(ctx context.Context, sessionID, foodItemID string, quantity int) (cart.Line, error) {
	if quantity <= 0 {
		return cart.Line{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[foodItemID]
	if !ok {
		return cart.Line{}, fmt.Errorf("%w: %s", ErrUnknownFoodItem, foodItemID)
	}

	lines := s.carts[sessionID]
	for i := range lines {
		if lines[i].FoodItemID == foodItemID {
			lines[i].Quantity += quantity
			return lines[i], nil
		}
	}

	s.nextLine++
	line := cart.Line{
		ID:         fmt.Sprintf("line-%d", s.nextLine),
		FoodItemID: foodItemID,
		Quantity:   quantity,
		FoodItem:   item,
	}
	s.carts[sessionID] = append(lines, line)
	return line, nil
}

// Update sets the quantity of an existing line. Zero removes it.
func (s *Store) Update(ctx context.Context, sessionID, lineID string, quantity int) (cart.Line, error) {
	if quantity < 0 {
		return cart.Line{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[sessionID]
	for i := range lines {
		if lines[i].ID != lineID {
			continue
		}
		if quantity == 0 {
			removed := lines[i]
			s.carts[sessionID] = append(lines[:i], lines[i+1:]...)
			removed.Quantity = 0
			return removed, nil
		}
		lines[i].Quantity = quantity
		return lines[i], nil
	}
	return cart.Line{}, ErrLineNotFound
}

// Remove deletes a line.
func (s *Store) Remove(ctx context.Context, sessionID, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[sessionID]
	for i := range lines {
		if lines[i].ID == lineID {
			s.carts[sessionID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// Clear empties the session's cart.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}
