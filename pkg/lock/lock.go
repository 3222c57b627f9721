package lock

import (
	"context"
	"sync"
)

// Locker serializes critical sections by key. The billing committer holds a
// lock for one user's whole read-resolve-append sequence; different keys never
// contend with each other.
type Locker interface {
	// Acquire blocks until the lock for key is held and returns a release
	// function. Release must be called exactly once.
	Acquire(ctx context.Context, key string) (func(), error)
}

// KeyLocker is an in-process Locker backed by one mutex per key. It is
// sufficient whenever a user's commits are all served by a single instance.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyLocker creates an in-process per-key locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for key, creating it on first use. Key mutexes are
// never removed; the key space here is bounded by the active user set.
func (l *KeyLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
