package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource []byte

// fileConfig mirrors #Config. Pointers distinguish unset from zero.
type fileConfig struct {
	BaseURL         *string `json:"base_url"`
	SessionStore    *string `json:"session_store"`
	DBPath          *string `json:"db_path"`
	RedisAddr       *string `json:"redis_addr"`
	RedisKey        *string `json:"redis_key"`
	FlushDelay      *string `json:"flush_delay"`
	RefreshDelay    *string `json:"refresh_delay"`
	RefreshCooldown *string `json:"refresh_cooldown"`
	ReconcileDelay  *string `json:"reconcile_delay"`
	MaxConcurrency  *int    `json:"max_concurrency"`
	RequestTimeout  *string `json:"request_timeout"`
	OTLPEndpoint    *string `json:"otlp_endpoint"`
	Locale          *string `json:"locale"`
}

// LoadFile reads a CUE config file and applies it over base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data, base)
}

// Parse validates CUE source against the schema and applies it over base.
// Unknown fields are rejected.
func Parse(filename string, data []byte, base Config) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return base, fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return base, formatCUEError(err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return base, formatCUEError(err)
	}

	var f fileConfig
	if err := unified.Decode(&f); err != nil {
		return base, formatCUEError(err)
	}
	return f.apply(base)
}

func (f fileConfig) apply(c Config) (Config, error) {
	setString(&c.BaseURL, f.BaseURL)
	setString(&c.SessionStore, f.SessionStore)
	setString(&c.DBPath, f.DBPath)
	setString(&c.RedisAddr, f.RedisAddr)
	setString(&c.RedisKey, f.RedisKey)
	setString(&c.OTLPEndpoint, f.OTLPEndpoint)
	setString(&c.Locale, f.Locale)
	if f.MaxConcurrency != nil {
		c.MaxConcurrency = *f.MaxConcurrency
	}

	for _, d := range []struct {
		field string
		src   *string
		dst   *time.Duration
	}{
		{"flush_delay", f.FlushDelay, &c.FlushDelay},
		{"refresh_delay", f.RefreshDelay, &c.RefreshDelay},
		{"refresh_cooldown", f.RefreshCooldown, &c.RefreshCooldown},
		{"reconcile_delay", f.ReconcileDelay, &c.ReconcileDelay},
		{"request_timeout", f.RequestTimeout, &c.RequestTimeout},
	} {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return c, &Error{Field: d.field, Message: err.Error()}
		}
		*d.dst = parsed
	}
	return c, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
