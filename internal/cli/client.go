package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/cartsync/internal/config"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/gateway"
	"github.com/roach88/cartsync/internal/session"
	"github.com/roach88/cartsync/internal/telemetry"
)

const serviceName = "cartsync"

// client is one CLI invocation's engine and the resources behind it.
type client struct {
	cfg      config.Config
	identity *session.Identity
	engine   *engine.Engine
	tracer   trace.Tracer

	closers  []func() error
	shutdown telemetry.ShutdownFunc
}

// openClient wires session storage, tracing, the HTTP gateway and the
// engine from the resolved configuration.
func openClient(opts *RootOptions) (*client, error) {
	cfg := opts.Config
	log := opts.Logger
	c := &client{cfg: cfg}

	storage, closer, err := openStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	c.identity = session.NewIdentity(storage, session.WithLogger(log))

	tp, shutdown, err := telemetry.InitTracing(log, telemetry.Config{
		ServiceName: serviceName,
		Host:        cfg.OTLPEndpoint,
		Probability: 1,
	})
	if err != nil {
		c.closeResources()
		return nil, err
	}
	c.shutdown = shutdown
	c.tracer = tp.Tracer("github.com/roach88/cartsync/internal/cli")

	gw := gateway.NewHTTP(cfg.BaseURL,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		gateway.WithTracerProvider(tp),
	)
	c.engine = engine.New(gw, c.identity,
		engine.WithLogger(log),
		engine.WithFlushDelay(cfg.FlushDelay),
		engine.WithRefreshDelay(cfg.RefreshDelay),
		engine.WithRefreshCooldown(cfg.RefreshCooldown),
		engine.WithReconcileDelay(cfg.ReconcileDelay),
		engine.WithMaxConcurrency(cfg.MaxConcurrency),
	)
	return c, nil
}

// openStorage returns the configured session storage and its closer.
// An unopenable session database is not fatal: the returned storage is nil
// and the identity falls back to an in-memory session id.
func openStorage(cfg config.Config, log *slog.Logger) (session.Storage, func() error, error) {
	switch cfg.SessionStore {
	case config.StoreSQLite:
		st, err := session.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Warn("open session database failed",
				"path", cfg.DBPath,
				"error", err,
			)
			return nil, nil, nil
		}
		return st, st.Close, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return session.NewRedisStorage(rdb, cfg.RedisKey), rdb.Close, nil
	case config.StoreMemory:
		return session.NewMemoryStorage(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// Close stops the engine, flushes spans and releases storage.
func (c *client) Close(ctx context.Context) error {
	var errs []error
	if c.engine != nil {
		errs = append(errs, c.engine.Close(ctx))
	}
	if c.shutdown != nil {
		errs = append(errs, c.shutdown(ctx))
	}
	errs = append(errs, c.closeResources())
	return errors.Join(errs...)
}

// closeLogged closes the client after the command has finished, logging
// rather than returning the error.
func (c *client) closeLogged(ctx context.Context, log *slog.Logger) {
	if err := c.Close(context.WithoutCancel(ctx)); err != nil {
		log.Warn("error closing client", "error", err)
	}
}

func (c *client) closeResources() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	return errors.Join(errs...)
}
