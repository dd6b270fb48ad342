package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker holds keys in process memory. It serializes sweeps within
// one server only.
type MemoryLocker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// held reports whether key is live, dropping it when it has expired.
// Callers hold m.mu.
func (m *MemoryLocker) held(key string) bool {
	exp, ok := m.expires[key]
	if !ok {
		return false
	}
	if !m.now().Before(exp) {
		delete(m.expires, key)
		return false
	}
	return true
}

// Acquire takes key unless a live holder has it.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held(key) {
		return false, nil
	}
	m.expires[key] = m.now().Add(ttl)
	return true, nil
}

// Release drops key.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.held(key)
	delete(m.expires, key)
	return live, ctx.Err()
}

// Extend refreshes a live key.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.held(key) {
		return false, nil
	}
	m.expires[key] = m.now().Add(ttl)
	return true, nil
}

var _ Locker = (*MemoryLocker)(nil)
