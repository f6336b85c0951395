package inflight

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseGuard(t *testing.T, g Guard) {
	ctx := context.Background()

	release, err := g.Acquire(ctx, "ORD001")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "ORD001")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := g.Acquire(ctx, "ORD002")
	require.NoError(t, err, "other orders are independent")
	other()

	release()
	release() // idempotent

	again, err := g.Acquire(ctx, "ORD001")
	require.NoError(t, err)
	again()
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemory()
	exerciseGuard(t, g)
	assert.Equal(t, 0, g.InFlight())
}

func newRedisGuard(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl), mr
}

func TestRedisGuard(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)
	exerciseGuard(t, g)
	assert.False(t, mr.Exists("dashboard:inflight:ORD001"))
}

func TestRedisGuardTTLFreesStaleSlot(t *testing.T) {
	g, mr := newRedisGuard(t, time.Second)
	ctx := context.Background()

	stale, err := g.Acquire(ctx, "ORD009")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := g.Acquire(ctx, "ORD009")
	require.NoError(t, err)

	// the expired holder must not delete the new holder's slot
	stale()
	assert.True(t, mr.Exists("dashboard:inflight:ORD009"))

	fresh()
	assert.False(t, mr.Exists("dashboard:inflight:ORD009"))
}

func TestRedisGuardUnavailable(t *testing.T) {
	g, mr := newRedisGuard(t, time.Minute)
	mr.Close()

	_, err := g.Acquire(context.Background(), "ORD001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
}
