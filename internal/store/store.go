// Package store persists session snapshots and heartbeat records. The
// snapshot is the JSON form of a session's full state, written after every
// accepted action and read back when a worker restarts. The heartbeat is a
// short-lived liveness record the supervisor watches; its absence is the
// only restart trigger.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no snapshot exists for the session,
// either because none was ever saved or because it expired.
var ErrNotFound = errors.New("store: session not found")

// Store is the persistence contract shared by the session workers and the
// supervisor. Implementations must be safe for concurrent use.
type Store interface {
	// Save replaces the session's snapshot and refreshes its expiry.
	Save(ctx context.Context, sessionID string, snapshot []byte) error
	// Load returns the stored snapshot, or ErrNotFound.
	Load(ctx context.Context, sessionID string) ([]byte, error)
	// Delete removes the snapshot. Missing snapshots are not an error.
	Delete(ctx context.Context, sessionID string) error

	// Beat refreshes the session's liveness record for one more interval.
	Beat(ctx context.Context, sessionID string) error
	// Alive reports whether an unexpired liveness record exists.
	Alive(ctx context.Context, sessionID string) (bool, error)
	// ClearBeat drops the liveness record so the session reads as dead.
	ClearBeat(ctx context.Context, sessionID string) error

	// Reap removes expired records on backends without native expiry.
	Reap(ctx context.Context) error

	Close() error
}
