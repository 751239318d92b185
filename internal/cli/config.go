package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/config"
)

// configView is the resolved configuration as printed by the config command.
type configView struct {
	BaseURL         string `json:"baseUrl"`
	SessionStore    string `json:"sessionStore"`
	DBPath          string `json:"dbPath,omitempty"`
	RedisAddr       string `json:"redisAddr,omitempty"`
	RedisKey        string `json:"redisKey,omitempty"`
	FlushDelay      string `json:"flushDelay"`
	RefreshDelay    string `json:"refreshDelay"`
	RefreshCooldown string `json:"refreshCooldown"`
	ReconcileDelay  string `json:"reconcileDelay"`
	MaxConcurrency  int    `json:"maxConcurrency"`
	RequestTimeout  string `json:"requestTimeout"`
	OTLPEndpoint    string `json:"otlpEndpoint,omitempty"`
	Locale          string `json:"locale"`
}

func newConfigView(c config.Config) configView {
	v := configView{
		BaseURL:         c.BaseURL,
		SessionStore:    c.SessionStore,
		FlushDelay:      c.FlushDelay.String(),
		RefreshDelay:    c.RefreshDelay.String(),
		RefreshCooldown: c.RefreshCooldown.String(),
		ReconcileDelay:  c.ReconcileDelay.String(),
		MaxConcurrency:  c.MaxConcurrency,
		RequestTimeout:  c.RequestTimeout.String(),
		OTLPEndpoint:    c.OTLPEndpoint,
		Locale:          c.Locale,
	}
	switch c.SessionStore {
	case config.StoreSQLite:
		v.DBPath = c.DBPath
	case config.StoreRedis:
		v.RedisAddr = c.RedisAddr
		v.RedisKey = c.RedisKey
	}
	return v
}

func (v configView) renderText(w io.Writer, _ priceFormatter) {
	row := func(k, val string) {
		if val != "" {
			fmt.Fprintf(w, "%-17s %s\n", k, val)
		}
	}
	row("base_url", v.BaseURL)
	row("session_store", v.SessionStore)
	row("db_path", v.DBPath)
	row("redis_addr", v.RedisAddr)
	row("redis_key", v.RedisKey)
	row("flush_delay", v.FlushDelay)
	row("refresh_delay", v.RefreshDelay)
	row("refresh_cooldown", v.RefreshCooldown)
	row("reconcile_delay", v.ReconcileDelay)
	row("max_concurrency", fmt.Sprint(v.MaxConcurrency))
	row("request_timeout", v.RequestTimeout)
	row("otlp_endpoint", v.OTLPEndpoint)
	row("locale", v.Locale)
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Long: `Resolve defaults, the --config file, CARTSYNC_* variables and flags,
validate the result, and print it.

Exit codes:
  0 - Configuration is valid
  2 - Configuration is invalid

Example:
  cartsync config --config ./cartsync.cue
  CARTSYNC_FLUSH_DELAY=1s cartsync config --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(newConfigView(rootOpts.Config))
		},
	}
}
