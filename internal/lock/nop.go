package lock

import (
	"context"
	"time"
)

// Nop grants every request. The admin CLI uses it for -no-lock runs on a
// single instance.
var Nop Locker = nopLocker{}

type nopLocker struct{}

func (nopLocker) Acquire(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	return true, ctx.Err()
}

func (nopLocker) Release(ctx context.Context, _ string) (bool, error) {
	return true, ctx.Err()
}

func (nopLocker) Extend(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	return true, ctx.Err()
}
