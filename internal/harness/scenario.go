package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/testutil"
)

// Scenario describes one run of the engine against a scripted server.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the fixed session id. Defaults to "harness-session".
	Session string `yaml:"session,omitempty"`

	// Menu lists the items the server knows.
	Menu []MenuItem `yaml:"menu"`

	// DeliveryCharges applied by the server to non-empty carts.
	DeliveryCharges string `yaml:"delivery_charges,omitempty"`

	// Setup seeds the server cart before the trace starts.
	Setup []SeedLine `yaml:"setup,omitempty"`

	// Surfaces are mounted before the first step.
	Surfaces []string `yaml:"surfaces,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// MenuItem is a server menu entry. Price is a decimal string.
type MenuItem struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// SeedLine is an initial server cart line.
type SeedLine struct {
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
}

// Step is one scripted action.
type Step struct {
	Action     string      `yaml:"action"`
	Item       string      `yaml:"item,omitempty"`
	Quantity   int         `yaml:"quantity,omitempty"`
	Duration   string      `yaml:"duration,omitempty"`
	Force      bool        `yaml:"force,omitempty"`
	Background bool        `yaml:"background,omitempty"`
	Op         string      `yaml:"op,omitempty"`
	Target     string      `yaml:"target,omitempty"`
	WantError  bool        `yaml:"want_error,omitempty"`
	Expect     *CartExpect `yaml:"expect,omitempty"`
}

// CartExpect is a subset match on a cart. Only set fields are checked.
type CartExpect struct {
	Items     map[string]int `yaml:"items,omitempty"`
	ItemCount *int           `yaml:"item_count,omitempty"`
	Subtotal  string         `yaml:"subtotal,omitempty"`
	Total     string         `yaml:"total,omitempty"`
	Empty     bool           `yaml:"empty,omitempty"`
}

// Assertion validates the trace or a final cart.
type Assertion struct {
	Type   string      `yaml:"type"`
	Call   string      `yaml:"call,omitempty"`
	Calls  []string    `yaml:"calls,omitempty"`
	Prefix string      `yaml:"prefix,omitempty"`
	Count  int         `yaml:"count,omitempty"`
	Cart   *CartExpect `yaml:"cart,omitempty"`
}

// Step actions.
const (
	ActionAdd              = "add"
	ActionSet              = "set"
	ActionInc              = "inc"
	ActionDec              = "dec"
	ActionRemove           = "remove"
	ActionClear            = "clear"
	ActionFlush            = "flush"
	ActionRefresh          = "refresh"
	ActionDebouncedRefresh = "debounced_refresh"
	ActionAdvance          = "advance"
	ActionFail             = "fail"
	ActionRecover          = "recover"
	ActionHold             = "hold"
	ActionRelease          = "release"
	ActionExpect           = "expect"
)

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalCart     = "final_cart"
	AssertServerCart    = "server_cart"
)

const defaultSession = "harness-session"

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if s.Session == "" {
		s.Session = defaultSession
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Menu) == 0 {
		return fmt.Errorf("menu list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	menu := make(map[string]bool, len(s.Menu))
	for i, m := range s.Menu {
		if m.ID == "" {
			return fmt.Errorf("menu[%d]: id is required", i)
		}
		if _, err := decimal.NewFromString(m.Price); err != nil {
			return fmt.Errorf("menu[%d]: invalid price %q", i, m.Price)
		}
		menu[m.ID] = true
	}
	if s.DeliveryCharges != "" {
		if _, err := decimal.NewFromString(s.DeliveryCharges); err != nil {
			return fmt.Errorf("invalid delivery_charges %q", s.DeliveryCharges)
		}
	}
	for i, l := range s.Setup {
		if !menu[l.Item] {
			return fmt.Errorf("setup[%d]: item %q not on menu", i, l.Item)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("setup[%d]: quantity must be positive", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, menu); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, menu map[string]bool) error {
	switch step.Action {
	case ActionAdd:
		if !menu[step.Item] {
			return fmt.Errorf("steps[%d]: item %q not on menu", i, step.Item)
		}
	case ActionSet, ActionInc, ActionDec, ActionRemove:
		if step.Item == "" {
			return fmt.Errorf("steps[%d]: item is required for %s", i, step.Action)
		}
	case ActionAdvance:
		if _, err := time.ParseDuration(step.Duration); err != nil {
			return fmt.Errorf("steps[%d]: invalid duration %q", i, step.Duration)
		}
	case ActionFail, ActionRecover, ActionHold:
		switch step.Op {
		case testutil.OpFetch, testutil.OpAdd, testutil.OpUpdate, testutil.OpRemove, testutil.OpClear:
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	case ActionExpect:
		if step.Expect == nil {
			return fmt.Errorf("steps[%d]: expect is required", i)
		}
	case ActionClear, ActionFlush, ActionRefresh, ActionDebouncedRefresh, ActionRelease:
	case "":
		return fmt.Errorf("steps[%d]: action is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}
	if step.Background && step.Action != ActionAdvance && step.Action != ActionClear {
		return fmt.Errorf("steps[%d]: background is only valid for advance and clear", i)
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", i)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", i)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", i)
		}
	case AssertFinalCart, AssertServerCart:
		if a.Cart == nil {
			return fmt.Errorf("assertions[%d]: cart is required for %s", i, a.Type)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
