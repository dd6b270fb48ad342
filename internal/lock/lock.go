// Package lock coordinates the expired-share sweep between server instances
// and the admin CLI. Lockers are backed by process memory or by Redis.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired is returned when another holder owns the key.
	ErrNotAcquired = errors.New("lock held by another process")

	// ErrLeaseLost is returned when a lease expired or was taken over before it was refreshed.
	ErrLeaseLost = errors.New("lock lease lost")
)

// Locker grants time-bounded ownership of a key.
type Locker interface {
	// Acquire takes key for ttl. It returns false without error when the key is held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives key up. It returns false when this process no longer held it.
	Release(ctx context.Context, key string) (bool, error)

	// Extend resets the ttl of a key this process holds.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Lease is an acquired key that can be refreshed while work continues.
type Lease struct {
	locker Locker
	key    string
	ttl    time.Duration
}

// Obtain acquires key once and returns ErrNotAcquired if it is taken.
func Obtain(ctx context.Context, locker Locker, key string, ttl time.Duration) (*Lease, error) {
	ok, err := locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{locker: locker, key: key, ttl: ttl}, nil
}

// Wait polls for key every interval until it is acquired or maxWait elapses.
// A maxWait of zero behaves like Obtain.
func Wait(ctx context.Context, locker Locker, key string, ttl, maxWait, interval time.Duration) (*Lease, error) {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(maxWait)

	for {
		lease, err := Obtain(ctx, locker, key, ttl)
		if !errors.Is(err, ErrNotAcquired) || !time.Now().Add(interval).Before(deadline) {
			return lease, err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Key returns the leased key.
func (l *Lease) Key() string {
	return l.key
}

// Refresh pushes the expiry out by the original ttl.
func (l *Lease) Refresh(ctx context.Context) error {
	ok, err := l.locker.Extend(ctx, l.key, l.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLeaseLost
	}
	return nil
}

// Release gives the key up. Releasing a lease that already expired is not an error.
func (l *Lease) Release(ctx context.Context) error {
	_, err := l.locker.Release(ctx, l.key)
	return err
}

// =============================================================================
// Lock Keys
// =============================================================================

// Keys provides lock key generation.
var Keys = lockKeys{}

type lockKeys struct{}

// ShareCleanup returns the key guarding the expired-share sweep.
func (lockKeys) ShareCleanup() string {
	return "lock:cleanup:shares"
}
