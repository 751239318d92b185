package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/cart"
)

// AssertionError is returned when an assertion fails. It carries the call
// log so a failure can be read without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Calls    []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nCalls:\n")
		for i, c := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, c)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Calls(), a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Calls(), a)
		case AssertTraceCount:
			err = assertTraceCount(result.Calls(), a)
		case AssertFinalCart:
			err = cartError(AssertFinalCart, checkCart("cart", result.Cart, a.Cart), result.Calls())
		case AssertServerCart:
			err = cartError(AssertServerCart, checkCart("server cart", result.ServerCart, a.Cart), result.Calls())
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertTraceContains(calls []string, a Assertion) error {
	for _, c := range calls {
		if c == a.Call {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %q", a.Call),
		Actual:   "not found in trace",
		Calls:    calls,
	}
}

// assertTraceOrder checks that the calls appear in order. Other calls may
// appear between them.
func assertTraceOrder(calls []string, a Assertion) error {
	next := 0
	for _, c := range calls {
		if next < len(a.Calls) && c == a.Calls[next] {
			next++
		}
	}
	if next == len(a.Calls) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("calls in order: %v", a.Calls),
		Actual:   fmt.Sprintf("missing or out of order: %q", a.Calls[next]),
		Calls:    calls,
	}
}

func assertTraceCount(calls []string, a Assertion) error {
	count := 0
	for _, c := range calls {
		if strings.HasPrefix(c, a.Prefix) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d calls starting with %q", a.Count, a.Prefix),
		Actual:   fmt.Sprintf("%d calls", count),
		Calls:    calls,
	}
}

func cartError(typ string, problems []string, calls []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: "cart matching assertion",
		Actual:   strings.Join(problems, "; "),
		Calls:    calls,
	}
}

// checkCart compares the set fields of want against s.
func checkCart(label string, s cart.Snapshot, want *CartExpect) []string {
	var problems []string

	if want.Empty && !s.IsEmpty() {
		problems = append(problems, fmt.Sprintf("%s not empty: %v", label, formatQuantities(quantities(s))))
	}
	if want.Items != nil {
		got := quantities(s)
		if !sameQuantities(got, want.Items) {
			problems = append(problems, fmt.Sprintf("%s items = %v, want %v",
				label, formatQuantities(got), formatQuantities(want.Items)))
		}
	}
	if want.ItemCount != nil && s.ItemCount() != *want.ItemCount {
		problems = append(problems, fmt.Sprintf("%s item_count = %d, want %d", label, s.ItemCount(), *want.ItemCount))
	}
	if want.Subtotal != "" {
		if msg := compareDecimal(label+" subtotal", s.Subtotal(), want.Subtotal); msg != "" {
			problems = append(problems, msg)
		}
	}
	if want.Total != "" {
		if msg := compareDecimal(label+" total", s.Total(), want.Total); msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}

func compareDecimal(label string, got decimal.Decimal, want string) string {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return fmt.Sprintf("%s: invalid expected value %q", label, want)
	}
	if !got.Equal(w) {
		return fmt.Sprintf("%s = %s, want %s", label, got, w)
	}
	return ""
}

func sameQuantities(got, want map[string]int) bool {
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func formatQuantities(q map[string]int) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, q[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
