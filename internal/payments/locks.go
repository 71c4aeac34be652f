package payments

import (
	"context"
	"sync"
)

// Locker serializes payment operations per enrollment. Acquire is
// non-blocking: a second caller gets ErrEnrollmentBusy instead of waiting,
// so two concurrent charges (or a charge racing a plan re-selection)
// cannot both proceed.
type Locker interface {
	Acquire(ctx context.Context, enrollmentID uint) (release func(), err error)
}

// KeyedMutex is the in-process Locker. Sufficient for a single node and
// for tests; multi-node deployments use the redis implementation in
// internal/infra/redislock.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[uint]struct{})}
}

func (m *KeyedMutex) Acquire(_ context.Context, enrollmentID uint) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[enrollmentID]; ok {
		return nil, ErrEnrollmentBusy
	}
	m.held[enrollmentID] = struct{}{}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, enrollmentID)
	}, nil
}
