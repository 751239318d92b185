package engine

import "errors"

var (
	// ErrUnknownItem is returned when a quantity change targets an item that
	// is neither in the current snapshot nor in the last confirmed cart.
	ErrUnknownItem = errors.New("engine: item not in cart")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine: closed")
)

// ErrInvalidQuantity is returned by Add for a non-positive count.
var ErrInvalidQuantity = errors.New("engine: quantity must be positive")
