package store

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// Memory is an in-process Store used in tests and single-node runs. Expiry
// follows the same rules as the networked backends: records past their TTL
// read as absent even before Reap removes them.
type Memory struct {
	snapshotTTL  time.Duration
	heartbeatTTL time.Duration

	mu        sync.RWMutex
	snapshots map[string]memoryRecord
	beats     map[string]time.Time

	now func() time.Time
}

// NewMemory builds an empty in-memory store. A zero snapshot TTL keeps
// snapshots forever; the heartbeat TTL must be positive.
func NewMemory(snapshotTTL, heartbeatTTL time.Duration) *Memory {
	return &Memory{
		snapshotTTL:  snapshotTTL,
		heartbeatTTL: heartbeatTTL,
		snapshots:    make(map[string]memoryRecord),
		beats:        make(map[string]time.Time),
		now:          time.Now,
	}
}

func (m *Memory) Save(_ context.Context, sessionID string, snapshot []byte) error {
	rec := memoryRecord{data: append([]byte(nil), snapshot...)}
	if m.snapshotTTL > 0 {
		rec.expires = m.now().Add(m.snapshotTTL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[sessionID] = rec
	return nil
}

func (m *Memory) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.snapshots[sessionID]
	if !ok || m.expired(rec.expires) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec.data...), nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, sessionID)
	return nil
}

func (m *Memory) Beat(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beats[sessionID] = m.now().Add(m.heartbeatTTL)
	return nil
}

func (m *Memory) Alive(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expires, ok := m.beats[sessionID]
	return ok && !m.expired(expires), nil
}

func (m *Memory) ClearBeat(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.beats, sessionID)
	return nil
}

func (m *Memory) Reap(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.snapshots {
		if m.expired(rec.expires) {
			delete(m.snapshots, id)
		}
	}
	for id, expires := range m.beats {
		if m.expired(expires) {
			delete(m.beats, id)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) expired(at time.Time) bool {
	return !at.IsZero() && !m.now().Before(at)
}
