package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessSweepLock(t *testing.T) {
	lock := NewInProcessSweepLock()
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "sweep", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.TryAcquire(ctx, "sweep", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "a second holder must not acquire the same lock before it expires")

	require.NoError(t, lock.Release(ctx, "sweep"))

	ok, err = lock.TryAcquire(ctx, "sweep", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "releasing the lock lets the next caller acquire it")
}

func TestInProcessSweepLock_ExpiresAfterTTL(t *testing.T) {
	lock := NewInProcessSweepLock()
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "sweep", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err = lock.TryAcquire(ctx, "sweep", 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lease must be re-acquirable")
}
