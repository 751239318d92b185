// Package config resolves cartsync settings.
//
// Sources, lowest precedence first: built-in defaults, an optional CUE file
// validated against the embedded schema, CARTSYNC_* environment variables,
// then command-line flags (applied by the cli package).
package config

import (
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"
)

// Session store kinds.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds every tunable of the client and the reference server.
type Config struct {
	// BaseURL is the cart API root, e.g. http://localhost:8080.
	BaseURL string

	// SessionStore selects where the session id persists.
	SessionStore string
	DBPath       string
	RedisAddr    string
	RedisKey     string

	FlushDelay      time.Duration
	RefreshDelay    time.Duration
	RefreshCooldown time.Duration
	ReconcileDelay  time.Duration
	MaxConcurrency  int

	// RequestTimeout bounds each HTTP call.
	RequestTimeout time.Duration

	// OTLPEndpoint enables trace export when set (host:port, gRPC).
	OTLPEndpoint string

	// Locale is a BCP 47 tag used to format prices.
	Locale string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		SessionStore:    StoreSQLite,
		DBPath:          "cartsync.db",
		RedisAddr:       "localhost:6379",
		RedisKey:        "session:cart_session_id",
		FlushDelay:      800 * time.Millisecond,
		RefreshDelay:    500 * time.Millisecond,
		RefreshCooldown: time.Second,
		ReconcileDelay:  150 * time.Millisecond,
		MaxConcurrency:  8,
		RequestTimeout:  10 * time.Second,
		Locale:          "en-US",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: "base_url", Message: fmt.Sprintf("invalid URL %q", c.BaseURL)}
	}

	switch c.SessionStore {
	case StoreSQLite:
		if c.DBPath == "" {
			return &Error{Field: "db_path", Message: "required for sqlite session store"}
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return &Error{Field: "redis_addr", Message: "required for redis session store"}
		}
	case StoreMemory:
	default:
		return &Error{Field: "session_store", Message: fmt.Sprintf("unknown kind %q (want sqlite, redis or memory)", c.SessionStore)}
	}

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"flush_delay", c.FlushDelay},
		{"refresh_delay", c.RefreshDelay},
		{"refresh_cooldown", c.RefreshCooldown},
		{"reconcile_delay", c.ReconcileDelay},
		{"request_timeout", c.RequestTimeout},
	} {
		if d.value <= 0 {
			return &Error{Field: d.field, Message: "must be positive"}
		}
	}

	if c.MaxConcurrency < 1 {
		return &Error{Field: "max_concurrency", Message: "must be at least 1"}
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return &Error{Field: "locale", Message: fmt.Sprintf("invalid tag %q", c.Locale)}
	}
	return nil
}
