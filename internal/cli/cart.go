package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/gateway"
	"github.com/roach88/cartsync/internal/telemetry"
)

// cartAction is the change a cart command applies to a loaded cart.
// A nil action only reads.
type cartAction func(ctx context.Context, e *engine.Engine) error

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the server cart",
		Long: `Read the cart for this client's session and print it.

Example:
  cartsync show
  cartsync show --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, rootOpts, nil)
		},
	}
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <itemId> <quantity>",
		Short: "Set the quantity of an item already in the cart",
		Long: `Set the quantity of an item already in the cart, send it, and print the
reconciled cart. A quantity of 0 removes the line.

Example:
  cartsync set pizza-1 3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			return runCart(cmd, rootOpts, func(ctx context.Context, e *engine.Engine) error {
				return e.SetQuantity(args[0], qty)
			})
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <foodItemId> <name> <price> [quantity]",
		Short: "Add an item to the cart",
		Long: `Add quantity (default 1) of a menu item to the cart. If the item is
already in the cart its quantity is increased.

Example:
  cartsync add pizza-1 Margherita 9.50
  cartsync add soda-2 Cola 2 4`,
		Args:          cobra.RangeArgs(3, 4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(args[2])
			if err != nil || price.IsNegative() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid price %q", args[2]))
			}
			qty := 1
			if len(args) == 4 {
				if qty, err = parseQuantity(args[3]); err != nil {
					return err
				}
			}
			item := cart.FoodItem{ID: args[0], Name: args[1], Price: price}
			return runCart(cmd, rootOpts, func(ctx context.Context, e *engine.Engine) error {
				return e.Add(item, qty)
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <itemId>",
		Short:         "Remove an item from the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, rootOpts, func(ctx context.Context, e *engine.Engine) error {
				return e.Remove(args[0])
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Empty the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, rootOpts, func(ctx context.Context, e *engine.Engine) error {
				return e.Clear(ctx)
			})
		},
	}
}

// runCart loads the cart, applies action, flushes, re-reads, and prints
// the result. Rejected item changes exit with ExitFailure after printing.
func runCart(cmd *cobra.Command, opts *RootOptions, action cartAction) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := opts.formatter(cmd)
	c, err := openClient(opts)
	if err != nil {
		return startError(out, err)
	}
	defer c.closeLogged(ctx, opts.Logger)

	ctx, span := c.tracer.Start(ctx, "cartsync "+cmd.Name())
	defer span.End()

	out.TraceID = telemetry.TraceID(ctx)
	sid := c.engine.SessionID(ctx)
	out.VerboseLog("session %s", sid)

	// Routing needs the confirmed line ids.
	if err := c.engine.Refresh(ctx, true); err != nil {
		return syncError(out, "failed to read cart", err)
	}

	if action != nil {
		if err := action(ctx, c.engine); err != nil {
			if errors.Is(err, engine.ErrUnknownItem) || errors.Is(err, engine.ErrInvalidQuantity) {
				return WrapExitError(ExitCommandError, "invalid change", err)
			}
			return syncError(out, "change failed", err)
		}
		if err := c.engine.Flush(ctx); err != nil {
			return syncError(out, "failed to send changes", err)
		}
		if err := c.engine.Refresh(ctx, true); err != nil {
			return syncError(out, "failed to reconcile cart", err)
		}
	}

	stats := c.engine.Stats()
	view := newCartView(sid, c.engine.Snapshot())
	view.Ephemeral = c.identity.Ephemeral()
	view.Rejected = stats.Failures
	out.VerboseLog("reads=%d flushes=%d version=%d", stats.Reads, stats.Flushes, stats.Version)

	if err := out.Success(view); err != nil {
		return err
	}
	if stats.Failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d change(s) rejected by the server", stats.Failures))
	}
	return nil
}

// syncDetails classifies a failed server interaction for JSON output.
type syncDetails struct {
	Error     string `json:"error"`
	Transient bool   `json:"transient"`
}

// syncError reports a server interaction failure and exits with ExitFailure.
// Transient failures (transport errors, 5xx, 429) are worth retrying.
func syncError(out *OutputFormatter, msg string, err error) error {
	if out.Format == "json" {
		_ = out.Error(CodeSync, msg, syncDetails{
			Error:     err.Error(),
			Transient: gateway.IsTransient(err),
		})
	}
	return WrapExitError(ExitFailure, msg, err)
}

// startError reports a client that could not be wired and exits with
// ExitCommandError.
func startError(out *OutputFormatter, err error) error {
	const msg = "failed to start client"
	if out.Format == "json" {
		_ = out.Error(CodeSession, msg, err.Error())
	}
	return WrapExitError(ExitCommandError, msg, err)
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", s))
	}
	return n, nil
}
