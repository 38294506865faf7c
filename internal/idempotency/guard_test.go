package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEvent = "7d0c5d3e-2f7a-4c3e-9a51-0f0b7c1e9d11"

func newTestGuard(t *testing.T, ttl, pendingTTL time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisGuard(client, ttl, pendingTTL), mr
}

func TestKey_DistinguishesRecipientSlots(t *testing.T) {
	assert.Equal(t, "notification:delivery:"+testEvent+":0:a@x.com", Key(testEvent, 0, "a@x.com"))
	assert.NotEqual(t, Key(testEvent, 0, "a@x.com"), Key(testEvent, 1, "a@x.com"))
	assert.NotEqual(t, Key(testEvent, 0, "a@x.com"), Key(testEvent, 0, "b@x.com"))
}

func TestRedisGuard_ClaimOnce(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour, time.Minute)
	ctx := context.Background()
	k1, k2 := Key(testEvent, 0, "a@x.com"), Key(testEvent, 1, "b@x.com")

	ok, err := g.Claim(ctx, k1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, k1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Claim(ctx, k2)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, mr.Exists(k1))
	assert.Equal(t, time.Minute, mr.TTL(k1))
}

func TestRedisGuard_UnconfirmedClaimExpiresEarly(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour, time.Minute)
	ctx := context.Background()
	k := Key(testEvent, 0, "a@x.com")

	ok, err := g.Claim(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = g.Claim(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ConfirmExtendsClaim(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour, time.Minute)
	ctx := context.Background()
	k := Key(testEvent, 0, "a@x.com")

	_, err := g.Claim(ctx, k)
	require.NoError(t, err)
	require.NoError(t, g.Confirm(ctx, k))
	assert.Equal(t, time.Hour, mr.TTL(k))

	mr.FastForward(2 * time.Minute)

	ok, err := g.Claim(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisGuard_PendingTTLClampedToTTL(t *testing.T) {
	g, mr := newTestGuard(t, time.Minute, time.Hour)
	k := Key(testEvent, 0, "a@x.com")

	_, err := g.Claim(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(k))
}

func TestRedisGuard_Release(t *testing.T) {
	g, _ := newTestGuard(t, time.Hour, time.Minute)
	ctx := context.Background()
	k := Key(testEvent, 0, "a@x.com")

	_, err := g.Claim(ctx, k)
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, k))

	ok, err := g.Claim(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ServerDown(t *testing.T) {
	g, mr := newTestGuard(t, time.Hour, time.Minute)
	mr.Close()

	_, err := g.Claim(context.Background(), Key(testEvent, 0, "a@x.com"))
	assert.Error(t, err)
}

func TestNopGuard(t *testing.T) {
	var g Guard = NopGuard{}
	ctx := context.Background()
	ok, err := g.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.Confirm(ctx, "k"))
	assert.NoError(t, g.Release(ctx, "k"))
}
