// Package lock provides per-key locking so that transitions on the same
// visit never interleave.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// keyMutex is a context-aware mutex with a reference count for cleanup.
type keyMutex struct {
	ch   chan struct{}
	refs int
}

// KeyLock provides one mutex per key. Entries are dropped once no
// goroutine holds or waits for them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyLock) ref(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

func (kl *KeyLock) unref(key string) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		return
	}
	m.refs--
	if m.refs <= 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for key, waiting until it is free or ctx is done.
func (kl *KeyLock) Lock(ctx context.Context, key string) error {
	m := kl.ref(key)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.unref(key)
		return ctx.Err()
	}
}

// Unlock releases the lock for key. Unlocking a key that is not locked is a no-op.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-m.ch:
		kl.unref(key)
	default:
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *KeyLock) TryLock(key string) bool {
	m := kl.ref(key)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		kl.unref(key)
		return false
	}
}

// WithLock executes fn while holding the lock for key. A positive timeout
// bounds the wait; running out of it yields ErrLockTimeout.
func (kl *KeyLock) WithLock(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := kl.Lock(lockCtx, key); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrLockTimeout
		}
		return err
	}
	defer kl.Unlock(key)

	return fn()
}

// IsLocked checks if key is currently held.
// Note: This is a point-in-time check and may change immediately after.
func (kl *KeyLock) IsLocked(key string) bool {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	return ok && len(m.ch) == 1
}

// Len returns the number of keys currently tracked.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
