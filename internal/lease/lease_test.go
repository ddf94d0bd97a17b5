package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(client, 30*time.Second, zerolog.Nop()), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	lease, err := manager.Acquire(ctx, "sub-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("lease:submission:sub-1"))

	_, err = manager.Acquire(ctx, "sub-1")
	require.ErrorIs(t, err, ErrHeld)

	// A different key is unaffected.
	other, err := manager.Acquire(ctx, "sub-2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	require.False(t, mr.Exists("lease:submission:sub-1"))

	// Released keys can be claimed again.
	_, err = manager.Acquire(ctx, "sub-1")
	require.NoError(t, err)
}

func TestReleaseIgnoresExpiredLease(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	lease, err := manager.Acquire(ctx, "sub-1")
	require.NoError(t, err)

	// The TTL fires and another worker claims the key before release.
	mr.FastForward(time.Minute)
	stolen, err := manager.Acquire(ctx, "sub-1")
	require.NoError(t, err)

	// The stale holder's release must not free the new claim.
	require.NoError(t, lease.Release(ctx))
	require.True(t, mr.Exists("lease:submission:sub-1"))

	require.NoError(t, stolen.Release(ctx))
	require.False(t, mr.Exists("lease:submission:sub-1"))
}

func TestLeaseExpiresWithTTL(t *testing.T) {
	manager, mr := setupManager(t)
	ctx := context.Background()

	_, err := manager.Acquire(ctx, "sub-1")
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	require.False(t, mr.Exists("lease:submission:sub-1"))

	_, err = manager.Acquire(ctx, "sub-1")
	require.NoError(t, err)
}
