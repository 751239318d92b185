package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Identity hands out the session id, creating and persisting it on first use.
//
// Ensure is idempotent: every call on the same Identity, and every Identity
// sharing the same storage, returns the same id once one has been saved.
type Identity struct {
	storage Storage
	gen     TokenGenerator
	logger  *slog.Logger

	mu        sync.Mutex
	id        string
	ephemeral bool
}

// Option configures an Identity.
type Option func(*Identity)

// WithGenerator overrides the token generator (default UUIDv7Generator).
func WithGenerator(g TokenGenerator) Option {
	return func(i *Identity) { i.gen = g }
}

// WithLogger sets the logger used to report degraded storage.
func WithLogger(l *slog.Logger) Option {
	return func(i *Identity) { i.logger = l }
}

// NewIdentity creates an Identity over storage. A nil storage behaves as
// unavailable storage and yields an ephemeral id.
func NewIdentity(storage Storage, opts ...Option) *Identity {
	i := &Identity{
		storage: storage,
		gen:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ensure returns the persisted session id, generating and saving a new one
// if none exists. It never fails: when storage cannot be read or written the
// id is kept in memory only and Ephemeral reports true.
func (i *Identity) Ensure(ctx context.Context) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}

	if i.storage == nil {
		i.id = i.gen.Generate()
		i.ephemeral = true
		i.logger.Warn("session storage unavailable, using ephemeral session", "session", i.id)
		return i.id
	}

	id, err := i.storage.Load(ctx)
	switch {
	case err == nil && id != "":
		i.id = id
		return i.id
	case err != nil && !errors.Is(err, ErrNoSession):
		i.logger.Warn("session storage read failed", "error", err)
	}

	i.id = i.gen.Generate()
	if err := i.storage.Save(ctx, i.id); err != nil {
		i.ephemeral = true
		i.logger.Warn("session storage write failed, using ephemeral session",
			"session", i.id,
			"error", err,
		)
		return i.id
	}

	i.logger.Debug("session created", "session", i.id)
	return i.id
}

// Ephemeral reports whether the current id could not be persisted.
func (i *Identity) Ephemeral() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ephemeral
}
