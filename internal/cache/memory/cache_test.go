package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/repository"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := NewCache()
	defer c.Stop()
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	value := []byte("v1")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache()
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}
