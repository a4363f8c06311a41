package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LockManager implements domain.LockManager with per-key channel semaphores.
// Locks are process-local; ttl bounds how long a forgotten lock is held.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*keyLock)}
}

// Acquire blocks until key is free or ctx ends.
func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, kl)
		return nil, fmt.Errorf("memory: acquire lock %s: %w", key, ctx.Err())
	}

	var (
		once  sync.Once
		timer *time.Timer
	)
	free := func() {
		once.Do(func() {
			<-kl.sem
			m.release(key, kl)
		})
	}
	if ttl > 0 {
		timer = time.AfterFunc(ttl, free)
	}
	return func() {
		if timer != nil {
			timer.Stop()
		}
		free()
	}, nil
}

func (m *LockManager) release(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}
