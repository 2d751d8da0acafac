package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	lock, err := locker.Lock(ctx, TriggerCheckExpiry)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, TriggerCheckExpiry)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Lock(ctx, TriggerCleanupExpired)
	require.NoError(t, err)
	require.NoError(t, other.Unlock(ctx))

	require.NoError(t, lock.Unlock(ctx))

	again, err := locker.Lock(ctx, TriggerCheckExpiry)
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	lock, err := locker.Lock(ctx, TriggerTrialEnding)
	require.NoError(t, err)

	// simulate expiry and takeover by another instance
	require.NoError(t, client.Set(ctx, lockKeyPrefix+TriggerTrialEnding, "other-instance", time.Minute).Err())

	require.NoError(t, lock.Unlock(ctx))
	val, err := client.Get(ctx, lockKeyPrefix+TriggerTrialEnding).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-instance", val)
}
