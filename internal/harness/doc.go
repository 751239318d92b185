// Package harness runs cart sync scenarios against the real engine.
//
// Each scenario gets a fresh in-memory cart server, a fake gateway over it
// and a fake clock, so timer-driven behavior (debounced flushes, cooldowns,
// post-flush reconciliation) is reproducible to the millisecond.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: burst_coalesces
//	description: "Three taps inside the window send one PUT"
//	session: sess-b
//	menu:
//	  - { id: x, name: Burger, price: "250" }
//	setup:
//	  - { item: x, quantity: 3 }
//	surfaces: [nav, drawer]
//	steps:
//	  - { action: dec, item: x }
//	  - { action: advance, duration: 100ms }
//	  - { action: inc, item: x }
//	  - { action: advance, duration: 1s }
//	assertions:
//	  - type: trace_count
//	    prefix: "PUT "
//	    count: 1
//	  - type: final_cart
//	    cart: { items: { x: 2 } }
//
// Setup lines are written straight to the server and loaded with one forced
// read before the trace starts.
//
// # Step Actions
//
//   - add, set, inc, dec, remove: local cart changes
//   - clear, flush, refresh, debounced_refresh: engine operations
//   - advance: move the fake clock forward by duration
//   - fail, recover: inject or lift a 500 for op/target on the gateway
//   - hold, release: block a gateway call in flight until release
//   - expect: check the optimistic cart mid-scenario
//
// advance and clear accept background: true to run concurrently with the
// following steps; release waits for them.
//
// # Assertion Types
//
//   - trace_contains: a call with exactly this text was made
//   - trace_order: calls appear in this relative order
//   - trace_count: number of calls starting with prefix
//   - final_cart: the engine's cart after the last step
//   - server_cart: the server's cart after the last step
//
// # Golden Traces
//
// RunWithGolden serializes the trace and final state as indented JSON and
// compares it with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
