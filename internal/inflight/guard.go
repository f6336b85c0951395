// Package inflight keeps at most one status update per order in flight.
package inflight

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when another update for the same order is outstanding.
var ErrBusy = errors.New("an update for this order is already in flight")

// Guard hands out per-order exclusive slots.
type Guard interface {
	// Acquire claims the slot for orderID. The returned release must be
	// called exactly once when the request has settled.
	Acquire(ctx context.Context, orderID string) (release func(), err error)
}

// Memory 进程内实现
type Memory struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{busy: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, orderID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.busy[orderID]; ok {
		return nil, ErrBusy
	}
	m.busy[orderID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.busy, orderID)
			m.mu.Unlock()
		})
	}, nil
}

// InFlight 当前占用数 (采样值)
func (m *Memory) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.busy)
}
