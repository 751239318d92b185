package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/cartserver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	MenuPath string
}

// menuFile is the YAML menu loaded by serve --menu.
type menuFile struct {
	DeliveryCharges string     `yaml:"delivery_charges"`
	Items           []menuItem `yaml:"items"`
}

type menuItem struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Image string `yaml:"image"`
}

// defaultMenu is served when no --menu file is given.
var defaultMenu = menuFile{
	DeliveryCharges: "40",
	Items: []menuItem{
		{ID: "burger", Name: "Burger", Price: "250"},
		{ID: "fries", Name: "Fries", Price: "120"},
		{ID: "soda", Name: "Soda", Price: "80"},
	},
}

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory reference cart server",
		Long: `Run an in-memory cart server implementing the cart HTTP API, for local
development and demos. Carts are lost when the server stops.

The menu file lists the items the server accepts:

  delivery_charges: "40"
  items:
    - { id: burger, name: Burger, price: "250" }

Example:
  cartsync serve --addr :8080
  cartsync serve --menu ./menu.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.MenuPath, "menu", "", "path to a YAML menu file")

	return cmd
}

func runServer(opts *ServeOptions, cmd *cobra.Command) error {
	log := opts.Logger

	menu := defaultMenu
	if opts.MenuPath != "" {
		var err error
		if menu, err = loadMenu(opts.MenuPath); err != nil {
			return WrapExitError(ExitCommandError, "failed to load menu", err)
		}
	}
	store, err := newMenuStore(menu)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid menu", err)
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           cartserver.NewRouter(store, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	log.Info("cart server starting", "addr", ln.Addr().String(), "items", len(menu.Items))
	fmt.Fprintf(cmd.OutOrStdout(), "Cart server listening on %s\n", ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	log.Info("cart server stopped gracefully")
	return nil
}

func loadMenu(path string) (menuFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return menuFile{}, fmt.Errorf("failed to read menu: %w", err)
	}
	var m menuFile
	if err := yaml.Unmarshal(data, &m); err != nil {
		return menuFile{}, fmt.Errorf("failed to parse menu: %w", err)
	}
	if len(m.Items) == 0 {
		return menuFile{}, errors.New("menu has no items")
	}
	return m, nil
}

// newMenuStore builds a reference store that accepts the menu's items.
func newMenuStore(m menuFile) (*cartserver.Store, error) {
	items := make([]cart.FoodItem, 0, len(m.Items))
	for i, it := range m.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("item %d: missing id", i)
		}
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return nil, fmt.Errorf("item %s: invalid price %q", it.ID, it.Price)
		}
		items = append(items, cart.FoodItem{ID: it.ID, Name: it.Name, Price: price, Image: it.Image})
	}
	store := cartserver.NewStore(items...)
	if m.DeliveryCharges != "" {
		d, err := decimal.NewFromString(m.DeliveryCharges)
		if err != nil {
			return nil, fmt.Errorf("invalid delivery charges %q", m.DeliveryCharges)
		}
		store.SetDeliveryCharges(d)
	}
	return store, nil
}
