package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_FailingAssertionIsReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "Asserts a quantity the engine never reaches"
menu:
  - { id: x, name: Burger, price: "250" }
steps:
  - { action: add, item: x, quantity: 2 }
  - { action: advance, duration: 1s }
assertions:
  - type: final_cart
    cart: { items: { x: 3 } }
  - type: trace_count
    prefix: "PUT "
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "cart items = {x:2}, want {x:3}")
	assert.Contains(t, result.Errors[1], "0 calls")
}

func TestRun_StepErrorIsReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unknown_item
description: "Setting an item that is not in the cart fails"
menu:
  - { id: x, name: Burger, price: "250" }
steps:
  - { action: set, item: x, quantity: 2 }
assertions:
  - type: final_cart
    cart: { empty: true }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 0 (set)")
	assert.Contains(t, result.Errors[0], "item not in cart")
}

func TestRun_ExpectStep(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: expect_mid_run
description: "Expect steps check the optimistic cart before any network call"
menu:
  - { id: x, name: Burger, price: "250" }
  - { id: y, name: Fries, price: "120" }
steps:
  - { action: add, item: x }
  - { action: add, item: y, quantity: 2 }
  - action: expect
    expect: { items: { x: 1, y: 2 }, item_count: 3, subtotal: "490", total: "490" }
  - { action: remove, item: x }
  - action: expect
    expect: { items: { y: 2 } }
  - { action: flush }
assertions:
  - type: trace_order
    calls: ["POST /cart/add y quantity=2"]
  - type: trace_count
    prefix: "POST /cart/add x"
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"POST /cart/add y quantity=2"}, result.Calls())
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: d
menu: [{ id: x, name: X, price: "1" }]
steps: [{ action: flush }]
assertions: [{ type: trace_count, prefix: "GET", count: 0 }]
`,
			want: "name is required",
		},
		{
			name: "unknown field",
			yaml: `
name: n
description: d
menu: [{ id: x, name: X, price: "1" }]
step: [{ action: flush }]
`,
			want: "failed to parse YAML",
		},
		{
			name: "bad price",
			yaml: `
name: n
description: d
menu: [{ id: x, name: X, price: "cheap" }]
steps: [{ action: flush }]
assertions: [{ type: trace_count, prefix: "GET", count: 0 }]
`,
			want: `invalid price "cheap"`,
		},
		{
			name: "add off menu",
			yaml: `
name: n
description: d
menu: [{ id: x, name: X, price: "1" }]
steps: [{ action: add, item: nope }]
assertions: [{ type: trace_count, prefix: "GET", count: 0 }]
`,
			want: `item "nope" not on menu`,
		},
		{
			name: "bad duration",
			yaml: `
name: n
description: d
menu: [{ id: x, name: X, price: "1" }]
steps: [{ action: advance, duration: soon }]
assertions: [{ type: trace_count, prefix: "GET", count: 0 }]
`,
			want: `invalid duration "soon"`,
		},
		{
			name: "background flush",
			yaml: `
name: n
description: d
menu: [{ id: x, name: X, price: "1" }]
steps: [{ action: flush, background: true }]
assertions: [{ type: trace_count, prefix: "GET", count: 0 }]
`,
			want: "background is only valid",
		},
		{
			name: "unknown assertion",
			yaml: `
name: n
description: d
menu: [{ id: x, name: X, price: "1" }]
steps: [{ action: flush }]
assertions: [{ type: vibes }]
`,
			want: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_DefaultSession(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: n
description: d
menu: [{ id: x, name: X, price: "1" }]
steps: [{ action: flush }]
assertions: [{ type: trace_count, prefix: "GET", count: 0 }]
`))
	require.NoError(t, err)
	assert.Equal(t, defaultSession, s.Session)
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 calls",
		Actual:   "2 calls",
		Calls:    []string{"GET /cart", "GET /cart"},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "[2] GET /cart")
}
