// Package testutil provides deterministic collaborators for engine tests:
// a gateway that records every call against an in-memory reference server,
// with failure injection and blocking hooks.
package testutil
