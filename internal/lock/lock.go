// Package lock provides the single-flight lock that keeps two integration
// cycles from running against the same store at once.
package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrLocked is returned when the key is held by someone else.
	ErrLocked = errors.New("lock held")

	// ErrNotHeld is returned when releasing a lease that expired or was
	// taken over.
	ErrNotHeld = errors.New("lock not held")
)

// Locker hands out exclusive leases on keys. Acquire never blocks: a held key
// returns ErrLocked immediately.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocal creates an in-process Locker.
func NewLocal() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Acquire takes key if it is free.
func (l *LocalLocker) Acquire(_ context.Context, key string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, ErrLocked
	}
	l.held[key] = true
	return &localLease{locker: l, key: key}, nil
}

type localLease struct {
	locker   *LocalLocker
	key      string
	released bool
}

func (l *localLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if l.released {
		return ErrNotHeld
	}
	l.released = true
	delete(l.locker.held, l.key)
	return nil
}
