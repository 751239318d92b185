package session

import (
	"context"
	"errors"
	"sync"
)

// StorageKey is the single key under which the session id is persisted.
const StorageKey = "cart_session_id"

// ErrNoSession is returned by Storage.Load when nothing has been saved yet.
var ErrNoSession = errors.New("session: no stored session")

// Storage persists the session id.
type Storage interface {
	// Load returns the stored id, or ErrNoSession if none exists.
	Load(ctx context.Context) (string, error)
	// Save stores id, replacing any previous value.
	Save(ctx context.Context, id string) error
}

// MemoryStorage keeps the id in memory.
type MemoryStorage struct {
	mu sync.RWMutex
	id string
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load returns the stored id.
func (m *MemoryStorage) Load(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.id == "" {
		return "", ErrNoSession
	}
	return m.id, nil
}

// Save stores the id.
func (m *MemoryStorage) Save(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}
