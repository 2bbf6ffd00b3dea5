package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx := context.Background()

	client, err := NewRedisClient(ctx, Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, PingCheck(client)(ctx))

	mr.Close()
	_, err = NewRedisClient(ctx, Options{Addr: mr.Addr()})
	require.Error(t, err)
}

func TestWithLockRunsAndReleases(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisLocker(client, "lock:", time.Minute)

	ran := false
	err := locker.WithLock(context.Background(), "audit-relay", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:audit-relay"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:audit-relay"))
}

func TestWithLockRejectsSecondHolder(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisLocker(client, "lock:", time.Minute)

	err := locker.WithLock(context.Background(), "audit-relay", func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "audit-relay", func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithLockKeepsForeignLease(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisLocker(client, "lock:", time.Minute)

	err := locker.WithLock(context.Background(), "audit-relay", func(ctx context.Context) error {
		// Lease expired and another instance took it.
		require.NoError(t, mr.Set("lock:audit-relay", "someone-else"))
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	v, err := mr.Get("lock:audit-relay")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestCursorAdvancesOnlyForward(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()
	cursor := NewCursor(client, "audit:relay:cursor")

	pos, err := cursor.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, pos)

	require.NoError(t, cursor.Advance(ctx, 10))
	require.NoError(t, cursor.Advance(ctx, 4))

	pos, err = cursor.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)
}

func TestCursorRejectsGarbage(t *testing.T) {
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set("audit:relay:cursor", "not-a-number"))

	_, err := NewCursor(client, "audit:relay:cursor").Get(context.Background())
	require.Error(t, err)
}
