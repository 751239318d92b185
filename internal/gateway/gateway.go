// Package gateway is the client side of the remote cart API.
//
// Gateway is the narrow interface the sync engine depends on; HTTPGateway is
// the production implementation. Every call carries the session id, and every
// failure is reported as an error: retry and recovery policy belongs to the
// engine, which reconciles instead of retrying.
package gateway

import (
	"context"

	"github.com/roach88/cartsync/internal/cart"
)

// Gateway performs the remote cart operations.
type Gateway interface {
	// Fetch reads the authoritative cart. A response without a success
	// indicator yields an empty snapshot and a nil error.
	Fetch(ctx context.Context, sessionID string) (cart.Snapshot, error)

	// Add puts quantity of a food item that has no server line yet.
	Add(ctx context.Context, sessionID, foodItemID string, quantity int) error

	// Update sets the quantity of an existing server line.
	Update(ctx context.Context, sessionID, lineID string, quantity int) error

	// Remove deletes a server line.
	Remove(ctx context.Context, sessionID, lineID string) error

	// Clear empties the cart.
	Clear(ctx context.Context, sessionID string) error
}
