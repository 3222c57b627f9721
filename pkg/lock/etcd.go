package lock

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// EtcdLocker is a Locker backed by etcd session mutexes, for deployments that
// run more than one gateway instance. The session TTL bounds how long a crashed
// holder can wedge a key.
type EtcdLocker struct {
	client *clientv3.Client
	ttl    int // seconds
	prefix string
}

// NewEtcdLocker creates a distributed locker on top of an etcd client.
func NewEtcdLocker(client *clientv3.Client, ttlSeconds int) *EtcdLocker {
	return &EtcdLocker{
		client: client,
		ttl:    ttlSeconds,
		prefix: "/energyflow/locks/",
	}
}

// Acquire takes the etcd mutex for key. The returned release function unlocks
// the mutex and closes its session.
func (l *EtcdLocker) Acquire(ctx context.Context, key string) (func(), error) {
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(l.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, l.prefix+key)
	if err := mutex.Lock(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}

	return func() {
		// Unlock with a fresh context so a cancelled request still releases.
		_ = mutex.Unlock(context.Background())
		_ = session.Close()
	}, nil
}
