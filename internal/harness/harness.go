package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartserver"
	"github.com/roach88/cartsync/internal/clock"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/session"
	"github.com/roach88/cartsync/internal/testutil"
)

// epoch is the fake clock's start time for every scenario.
var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// waitTimeout bounds how long background steps may take to reach a
// checkpoint before the scenario fails.
const waitTimeout = 5 * time.Second

// Harness is one scenario execution.
type Harness struct {
	scenario *Scenario
	server   *cartserver.Store
	gw       *recorder
	clock    *clock.Fake
	engine   *engine.Engine
	menu     map[string]cart.FoodItem
	logger   *slog.Logger

	surfaces []*engine.Surface

	eventsMu sync.Mutex
	events   map[engine.EventKind]int

	hold       *hold
	background sync.WaitGroup
	bgMu       sync.Mutex
	bgErrs     []string
}

// hold blocks one gateway call until released.
type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns its result. The returned error is
// for setup problems; behavioral mismatches are reported in Result.Errors.
//
// Execution flow:
//  1. Build the server from the menu and seed the setup lines
//  2. Create the engine on a fake clock and load the seeded cart
//  3. Mount surfaces and start recording
//  4. Execute steps, then evaluate assertions
func Run(s *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: s,
		clock:    clock.NewFake(epoch),
		menu:     make(map[string]cart.FoodItem, len(s.Menu)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		events:   make(map[engine.EventKind]int),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()
	if err := h.setup(ctx); err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}
	defer h.engine.Close(ctx)

	result := NewResult()
	h.gw.start(result, h.clock)
	readsBefore := h.engine.Stats().Reads

	for i, step := range s.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Action, err))
		}
	}
	h.waitBackground(result)

	snap := h.engine.Snapshot()
	server, err := h.server.Get(ctx, s.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to read server cart: %w", err)
	}
	result.Cart = snap
	result.ServerCart = server
	result.Final = h.final(snap, server, readsBefore)

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) setup(ctx context.Context) error {
	s := h.scenario

	h.server = cartserver.NewStore()
	for _, m := range s.Menu {
		item := cart.FoodItem{ID: m.ID, Name: m.Name, Price: decimal.RequireFromString(m.Price)}
		h.menu[m.ID] = item
		h.server.AddMenuItem(item)
	}
	if s.DeliveryCharges != "" {
		h.server.SetDeliveryCharges(decimal.RequireFromString(s.DeliveryCharges))
	}
	for _, l := range s.Setup {
		if _, err := h.server.Add(ctx, s.Session, l.Item, l.Quantity); err != nil {
			return fmt.Errorf("seed %s: %w", l.Item, err)
		}
	}

	h.gw = &recorder{fake: testutil.NewFakeGateway(h.server)}
	id := session.NewIdentity(session.NewMemoryStorage(),
		session.WithGenerator(session.NewFixedGenerator(s.Session)),
		session.WithLogger(h.logger),
	)

	// One call at a time keeps the trace order deterministic.
	h.engine = engine.New(h.gw, id,
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithMaxConcurrency(1),
	)

	if len(s.Setup) > 0 {
		if err := h.engine.Refresh(ctx, true); err != nil {
			return fmt.Errorf("initial read: %w", err)
		}
	}

	h.engine.Subscribe(func(ev engine.Event) {
		h.eventsMu.Lock()
		h.events[ev.Kind]++
		h.eventsMu.Unlock()
	})
	for _, name := range s.Surfaces {
		h.surfaces = append(h.surfaces, h.engine.Mount(name))
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var err error
	switch step.Action {
	case ActionAdd:
		n := step.Quantity
		if n == 0 {
			n = 1
		}
		h.gw.step(fmt.Sprintf("add %s %d", step.Item, n))
		err = h.engine.Add(h.menu[step.Item], n)
	case ActionSet:
		h.gw.step(fmt.Sprintf("set %s %d", step.Item, step.Quantity))
		err = h.engine.SetQuantity(step.Item, step.Quantity)
	case ActionInc:
		h.gw.step("inc " + step.Item)
		err = h.engine.Increment(step.Item)
	case ActionDec:
		h.gw.step("dec " + step.Item)
		err = h.engine.Decrement(step.Item)
	case ActionRemove:
		h.gw.step("remove " + step.Item)
		err = h.engine.Remove(step.Item)
	case ActionFlush:
		h.gw.step("flush")
		err = h.engine.Flush(ctx)
	case ActionRefresh:
		if step.Force {
			h.gw.step("refresh force")
		} else {
			h.gw.step("refresh")
		}
		err = h.engine.Refresh(ctx, step.Force)
	case ActionDebouncedRefresh:
		h.gw.step("debounced_refresh")
		h.engine.DebouncedRefresh()
	case ActionClear:
		h.gw.step("clear")
		if step.Background {
			return h.clearInBackground(ctx, i)
		}
		err = h.engine.Clear(ctx)
	case ActionAdvance:
		d, _ := time.ParseDuration(step.Duration)
		if step.Background {
			return h.advanceInBackground(d)
		}
		h.clock.Advance(d)
	case ActionFail:
		h.gw.fake.FailOn(step.Op, step.Target)
	case ActionRecover:
		h.gw.fake.Recover(step.Op, step.Target)
	case ActionHold:
		return h.installHold(step.Op, step.Target)
	case ActionRelease:
		return h.releaseHold(result)
	case ActionExpect:
		for _, msg := range checkCart("cart", h.engine.Snapshot(), step.Expect) {
			result.AddError(fmt.Sprintf("step %d (expect): %s", i, msg))
		}
		return nil
	}

	switch {
	case step.WantError && err == nil:
		return fmt.Errorf("expected an error")
	case step.WantError:
		return nil
	}
	return err
}

func (h *Harness) installHold(op, target string) error {
	if h.hold != nil {
		return fmt.Errorf("a hold is already installed")
	}
	hd := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	h.hold = hd
	h.gw.fake.Before(op, target, func() {
		hd.once.Do(func() { close(hd.entered) })
		<-hd.release
	})
	return nil
}

// advanceInBackground advances the clock on another goroutine and returns
// once the held call has been entered.
func (h *Harness) advanceInBackground(d time.Duration) error {
	if h.hold == nil {
		return fmt.Errorf("background advance requires a hold")
	}
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		h.clock.Advance(d)
	}()

	select {
	case <-h.hold.entered:
		return nil
	case <-time.After(waitTimeout):
		return fmt.Errorf("held call was not reached within %s", waitTimeout)
	}
}

// clearInBackground starts a clear and returns once its optimistic part is
// visible. The server-side part may still be waiting on in-flight calls.
func (h *Harness) clearInBackground(ctx context.Context, i int) error {
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		if err := h.engine.Clear(ctx); err != nil {
			h.bgMu.Lock()
			h.bgErrs = append(h.bgErrs, fmt.Sprintf("step %d (clear): %v", i, err))
			h.bgMu.Unlock()
		}
	}()

	deadline := time.Now().Add(waitTimeout)
	for !h.engine.Snapshot().IsEmpty() {
		if time.Now().After(deadline) {
			return fmt.Errorf("cart not cleared within %s", waitTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (h *Harness) releaseHold(result *Result) error {
	if h.hold == nil {
		return fmt.Errorf("no hold installed")
	}
	close(h.hold.release)
	h.hold = nil
	h.waitBackground(result)
	return nil
}

func (h *Harness) waitBackground(result *Result) {
	h.background.Wait()

	h.bgMu.Lock()
	defer h.bgMu.Unlock()
	for _, msg := range h.bgErrs {
		result.AddError(msg)
	}
	h.bgErrs = nil
}

func (h *Harness) final(snap, server cart.Snapshot, readsBefore int) FinalState {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()

	surfaces := make(map[string]int64, len(h.surfaces))
	for _, s := range h.surfaces {
		surfaces[s.Name()] = s.Notifications()
	}
	return FinalState{
		Items:     quantities(snap),
		ItemCount: snap.ItemCount(),
		Subtotal:  snap.Subtotal().String(),
		Total:     snap.Total().String(),
		Server:    quantities(server),
		Reads:     h.engine.Stats().Reads - readsBefore,
		Flushed:   h.events[engine.EventFlushed],
		Cleared:   h.events[engine.EventCleared],
		Surfaces:  surfaces,
	}
}
