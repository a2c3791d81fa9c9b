package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// subscriberBuffer is the per-subscription queue depth. A subscriber that
// lags further than this loses the oldest pending frames, mirroring how
// the networked backends treat slow consumers.
const subscriberBuffer = 256

// Memory is an in-process Bus for tests and single-node runs.
type Memory struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

// NewMemory builds an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[*memorySub]struct{})}
}

func (m *Memory) Publish(_ context.Context, topic string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("bus is closed")
	}

	frame := Message{Topic: topic, Data: append([]byte(nil), data...)}
	for sub := range m.subs {
		if !matchTopic(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- frame:
		default:
			// Queue full: drop the oldest frame to keep the stream moving.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- frame:
			default:
			}
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, pattern string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("bus is closed")
	}

	sub := &memorySub{
		bus:     m,
		pattern: pattern,
		ch:      make(chan Message, subscriberBuffer),
	}
	m.subs[sub] = struct{}{}
	return sub, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for sub := range m.subs {
		sub.closeOnce()
		delete(m.subs, sub)
	}
	return nil
}

type memorySub struct {
	bus     *Memory
	pattern string
	ch      chan Message
	once    sync.Once
}

func (s *memorySub) Messages() <-chan Message { return s.ch }

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.closeOnce()
	return nil
}

func (s *memorySub) closeOnce() {
	s.once.Do(func() { close(s.ch) })
}

// matchTopic matches a dot-separated topic against a pattern where "*"
// stands for exactly one segment.
func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, ".")
	tp := strings.Split(topic, ".")
	if len(pp) != len(tp) {
		return false
	}
	for i, seg := range pp {
		if seg != "*" && seg != tp[i] {
			return false
		}
	}
	return true
}
