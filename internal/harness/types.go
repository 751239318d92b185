package harness

import (
	"github.com/roach88/cartsync/internal/cart"
)

// Trace event types.
const (
	EventStep = "step"
	EventCall = "call"
)

// TraceEvent is one user step or gateway call, stamped with fake-clock
// milliseconds since the scenario started.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	AtMS   int64  `json:"at_ms"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// FinalState summarizes the run after the last step.
type FinalState struct {
	Items     map[string]int   `json:"items"`
	ItemCount int              `json:"item_count"`
	Subtotal  string           `json:"subtotal"`
	Total     string           `json:"total"`
	Server    map[string]int   `json:"server"`
	Reads     int              `json:"reads"`
	Flushed   int              `json:"flushed"`
	Cleared   int              `json:"cleared"`
	Surfaces  map[string]int64 `json:"surfaces"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect step and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
	Final  FinalState   `json:"final"`

	// Cart and ServerCart are the final snapshots, for assertions.
	Cart       cart.Snapshot `json:"-"`
	ServerCart cart.Snapshot `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the details of call events in order.
func (r *Result) Calls() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type == EventCall {
			out = append(out, ev.Detail)
		}
	}
	return out
}

func quantities(s cart.Snapshot) map[string]int {
	out := make(map[string]int, len(s.Lines))
	for _, l := range s.Lines {
		out[l.FoodItemID] = l.Quantity
	}
	return out
}
