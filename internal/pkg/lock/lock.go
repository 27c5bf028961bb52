// Package lock provides per-key serialization for chat and user scoped flows.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex wraps a mutex with the number of goroutines holding or waiting on it,
// so idle entries can be dropped.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock serializes work per int64 key (a chat or user id).
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[int64]*keyMutex)}
}

func (kl *KeyLock) acquire(key int64) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

func (kl *KeyLock) release(key int64, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for a key.
func (kl *KeyLock) Lock(key int64) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for a key.
func (kl *KeyLock) Unlock(key int64) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	kl.release(key, m)
}

// TryLock acquires the lock for a key if it is free and reports whether it did.
func (kl *KeyLock) TryLock(key int64) bool {
	m := kl.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	kl.release(key, m)
	return false
}

// WithLock executes fn while holding the key's lock.
func (kl *KeyLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext executes fn while holding the key's lock, giving up
// with ErrLockTimeout if the lock is not acquired within timeout.
func (kl *KeyLock) WithLockContext(ctx context.Context, key int64, timeout time.Duration, fn func() error) error {
	m := kl.acquire(key)

	acquired := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(acquired)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-acquired:
	case <-timeoutCtx.Done():
		// The waiter still takes the lock eventually; hand it straight back.
		go func() {
			<-acquired
			m.mu.Unlock()
			kl.release(key, m)
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}

	defer kl.Unlock(key)
	return fn()
}
