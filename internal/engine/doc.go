// Package engine implements the client-side cart sync engine.
//
// The engine keeps an optimistic, UI-facing cart snapshot responsive to
// bursty input while the authoritative cart lives on the server.
//
// ARCHITECTURE:
//
// Optimistic now, authoritative later:
// Every user action patches the OptimisticStore synchronously. The server is
// never trusted to agree: each flush cycle ends in a forced reconciliation
// read that replaces the snapshot wholesale. There is no merge and no retry.
//
// Mutation Flow:
//  1. SetQuantity/Add/Increment/Decrement patch the store and enqueue the
//     target quantity in the MutationQueue (last write wins per item)
//  2. Every enqueue resets one trailing debounce timer (default 800ms)
//  3. When input goes quiet the queue is taken atomically and one call per
//     distinct item is dispatched concurrently through the DedupeGate
//  4. After all calls settle, a short-delayed forced read is scheduled and
//     EventFlushed is published to subscribers
//  5. Subscribers (mounted Surfaces) call DebouncedRefresh; the cooldown
//     and the "fetch" gate collapse a burst into at most one read
//
// Concurrency:
// Timer callbacks run on the clock's goroutines. The pending queue and the
// in-flight map are the only shared mutable state and are written solely
// through MutationQueue.Enqueue/Take and Gate.Do. Clear takes the dispatch
// lock exclusively, so no write or read straddles a server-side clear.
//
// Failure model:
// Nothing here is fatal. A failed item call is logged and left for the
// reconciliation read to correct; a failed read shows an empty cart rather
// than leaving unconfirmed data standing.
package engine
