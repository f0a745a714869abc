package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is the in-process ports.PlanLocker, used in tests and in
// single-instance deployments without Redis.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an in-process plan locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

// Acquire takes the plan lock or fails fast with ErrLockHeld.
func (l *MemoryLocker) Acquire(_ context.Context, planID string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[planID] {
		return nil, ErrLockHeld
	}
	l.held[planID] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, planID)
			l.mu.Unlock()
		})
	}
	return release, nil
}
