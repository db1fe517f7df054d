// Package lock serializes work on a single booking.
//
// The reply cap is a count-then-insert sequence; two patient messages on
// the same booking must not interleave between the count and the insert.
// Local covers a single process. Redis extends the same guarantee across
// instances sharing one database.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

// Locker acquires a named lock, blocking until it is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// BookingKey returns the lock key for a booking.
func BookingKey(bookingID uint) string {
	return fmt.Sprintf("booking:%d", bookingID)
}

// Local is an in-process keyed mutex. The zero value is ready to use.
type Local struct {
	mu   sync.Mutex
	keys map[string]*slot
}

type slot struct {
	held chan struct{}
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	if l.keys == nil {
		l.keys = make(map[string]*slot)
	}
	s, ok := l.keys[key]
	if !ok {
		s = &slot{held: make(chan struct{}, 1)}
		l.keys[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, fmt.Errorf("lock: acquire %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.held
			l.release(key, s)
		})
	}, nil
}

// release drops one reference and forgets the key once nobody waits on it.
func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.keys, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
