package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print this client's session id",
		Long: `Print the session id that addresses this client's server cart, creating
and persisting one on first use. No request is sent to the cart API.

Example:
  cartsync session
  cartsync session --session-store redis`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			out := rootOpts.formatter(cmd)
			c, err := openClient(rootOpts)
			if err != nil {
				return startError(out, err)
			}
			defer c.closeLogged(ctx, rootOpts.Logger)

			id := c.identity.Ensure(ctx)
			return out.Success(sessionView{
				SessionID: id,
				Store:     rootOpts.Config.SessionStore,
				Ephemeral: c.identity.Ephemeral(),
			})
		},
	}
}
