// Package session provides the anonymous session identifier that addresses
// the remote cart.
//
// The identifier is created lazily on first use, persisted under a single
// storage key, and never expires inside this package. If the storage backend
// is unavailable, Identity degrades to an in-memory token for the lifetime of
// the process: callers always get a usable id, but it will not survive a
// restart.
//
// Backends:
//   - SQLiteStorage: a local client-storage file (default for the CLI)
//   - RedisStorage: shared storage when several processes act for one client
//   - MemoryStorage: tests and ephemeral runs
package session
