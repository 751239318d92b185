package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvBaseURL         = "CARTSYNC_BASE_URL"
	EnvSessionStore    = "CARTSYNC_SESSION_STORE"
	EnvDBPath          = "CARTSYNC_DB_PATH"
	EnvRedisAddr       = "CARTSYNC_REDIS_ADDR"
	EnvRedisKey        = "CARTSYNC_REDIS_KEY"
	EnvFlushDelay      = "CARTSYNC_FLUSH_DELAY"
	EnvRefreshDelay    = "CARTSYNC_REFRESH_DELAY"
	EnvRefreshCooldown = "CARTSYNC_REFRESH_COOLDOWN"
	EnvReconcileDelay  = "CARTSYNC_RECONCILE_DELAY"
	EnvMaxConcurrency  = "CARTSYNC_MAX_CONCURRENCY"
	EnvRequestTimeout  = "CARTSYNC_REQUEST_TIMEOUT"
	EnvOTLPEndpoint    = "CARTSYNC_OTLP_ENDPOINT"
	EnvLocale          = "CARTSYNC_LOCALE"
)

// ApplyEnv overlays CARTSYNC_* variables from the process environment.
func ApplyEnv(c Config) (Config, error) {
	return applyEnv(c, os.Getenv)
}

func applyEnv(c Config, getenv func(string) string) (Config, error) {
	c.BaseURL = getEnvDefault(getenv, EnvBaseURL, c.BaseURL)
	c.SessionStore = getEnvDefault(getenv, EnvSessionStore, c.SessionStore)
	c.DBPath = getEnvDefault(getenv, EnvDBPath, c.DBPath)
	c.RedisAddr = getEnvDefault(getenv, EnvRedisAddr, c.RedisAddr)
	c.RedisKey = getEnvDefault(getenv, EnvRedisKey, c.RedisKey)
	c.OTLPEndpoint = getEnvDefault(getenv, EnvOTLPEndpoint, c.OTLPEndpoint)
	c.Locale = getEnvDefault(getenv, EnvLocale, c.Locale)

	if v := getenv(EnvMaxConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, &Error{Field: EnvMaxConcurrency, Message: "not an integer: " + v}
		}
		c.MaxConcurrency = n
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{EnvFlushDelay, &c.FlushDelay},
		{EnvRefreshDelay, &c.RefreshDelay},
		{EnvRefreshCooldown, &c.RefreshCooldown},
		{EnvReconcileDelay, &c.ReconcileDelay},
		{EnvRequestTimeout, &c.RequestTimeout},
	} {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return c, &Error{Field: d.key, Message: err.Error()}
		}
		*d.dst = parsed
	}
	return c, nil
}

// getEnvDefault returns the variable's value, or def if it is unset or empty.
func getEnvDefault(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// Load resolves defaults, the optional file at path, and the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = LoadFile(path, c); err != nil {
			return c, err
		}
	}
	return ApplyEnv(c)
}
