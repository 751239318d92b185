// Package cart defines the cart snapshot the sync engine keeps in memory.
//
// A Snapshot stores only its lines and the delivery charges reported by the
// server. Subtotal, Total and ItemCount are always computed from the lines,
// so they can never drift from the line list:
//
//	Subtotal  = sum(line.Total())
//	Total     = Subtotal + DeliveryCharges
//	ItemCount = sum(line.Quantity)
//
// Lines with quantity zero are never materialized; WithQuantity removes a
// line instead of storing a zero.
package cart
