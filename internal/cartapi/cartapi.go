// Package cartapi defines the JSON wire format of the remote cart API.
//
//	GET    /cart?sessionId=<id>   -> Envelope{Data: cart snapshot}
//	POST   /cart/add              AddRequest    -> Envelope{Data: line}
//	PUT    /cart/{lineId}         UpdateRequest -> Envelope{Data: line}
//	DELETE /cart/{lineId}         SessionRequest -> Envelope
//	POST   /cart/clear            SessionRequest -> Envelope
//
// A response without "success": true is a failure indicator; for reads the
// client treats it as an empty cart.
package cartapi

import "encoding/json"

// Paths and query parameters.
const (
	PathCart       = "/cart"
	PathAdd        = "/cart/add"
	PathClear      = "/cart/clear"
	QuerySessionID = "sessionId"
)

// Envelope wraps every response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// AddRequest adds a menu item to the cart.
type AddRequest struct {
	FoodItemID string `json:"foodItemId"`
	Quantity   int    `json:"quantity"`
	SessionID  string `json:"sessionId"`
}

// UpdateRequest sets a line's quantity.
type UpdateRequest struct {
	Quantity  int    `json:"quantity"`
	SessionID string `json:"sessionId"`
}

// SessionRequest carries only the session id (delete and clear).
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}
