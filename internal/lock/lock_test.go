package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newClockedLocker returns a MemoryLocker driven by a manual clock.
func newClockedLocker() (*MemoryLocker, *time.Time) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryLocker()
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	m, _ := newClockedLocker()
	ctx := context.Background()
	key := Keys.ShareCleanup()

	ok, err := m.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := m.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = m.Release(ctx, key)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	m, clock := newClockedLocker()
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	*clock = clock.Add(30 * time.Second)
	extended, err := m.Extend(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	// Still held 50s after the refresh, 80s after the original acquire.
	*clock = clock.Add(50 * time.Second)
	ok, err = m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	*clock = clock.Add(time.Minute)
	extended, err = m.Extend(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)

	ok, err = m.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLocker_CanceledContext(t *testing.T) {
	m, _ := newClockedLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLease(t *testing.T) {
	m, clock := newClockedLocker()
	ctx := context.Background()

	lease, err := Obtain(ctx, m, Keys.ShareCleanup(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Keys.ShareCleanup(), lease.Key())

	_, err = Obtain(ctx, m, Keys.ShareCleanup(), time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	*clock = clock.Add(45 * time.Second)
	require.NoError(t, lease.Refresh(ctx))

	*clock = clock.Add(2 * time.Minute)
	assert.ErrorIs(t, lease.Refresh(ctx), ErrLeaseLost)
	require.NoError(t, lease.Release(ctx))
}

func TestWait(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()
	key := Keys.ShareCleanup()

	held, err := Obtain(ctx, m, key, time.Minute)
	require.NoError(t, err)

	t.Run("gives up after maxWait", func(t *testing.T) {
		_, err := Wait(ctx, m, key, time.Minute, 20*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("acquires once released", func(t *testing.T) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = held.Release(ctx)
		}()
		lease, err := Wait(ctx, m, key, time.Minute, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))
	})

	t.Run("honors cancellation", func(t *testing.T) {
		_, err := Obtain(ctx, m, key, time.Minute)
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = Wait(cctx, m, key, time.Minute, time.Minute, 5*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNop(t *testing.T) {
	ctx := context.Background()

	first, err := Obtain(ctx, Nop, "k", time.Minute)
	require.NoError(t, err)
	second, err := Obtain(ctx, Nop, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, first.Refresh(ctx))
	require.NoError(t, second.Release(ctx))
}
