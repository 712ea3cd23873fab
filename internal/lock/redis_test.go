package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonica-labs/zircon/internal/errors"
	"github.com/canonica-labs/zircon/pkg/migration"
)

var _ migration.Locker = (*RedisLocker)(nil)

// redisClient connects to ZIRCON_TEST_REDIS_ADDR or skips.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("ZIRCON_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ZIRCON_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisLocker_ExcludesSecondHolder(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	key := "zircon:test:" + uuid.NewString()

	first := NewRedisLocker(rdb, WithKey(key), WithTTL(time.Minute), WithWait(0))
	second := NewRedisLocker(rdb, WithKey(key), WithTTL(time.Minute), WithWait(300*time.Millisecond), WithRetryInterval(50*time.Millisecond))

	unlock, err := first.Lock(ctx)
	require.NoError(t, err)

	_, err = second.Lock(ctx)
	var lna *errors.ErrLockNotAcquired
	require.ErrorAs(t, err, &lna)
	assert.Equal(t, key, lna.Key)

	require.NoError(t, unlock(ctx))

	unlock, err = second.Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	key := "zircon:test:" + uuid.NewString()

	unlock, err := NewRedisLocker(rdb, WithKey(key), WithWait(0)).Lock(ctx)
	require.NoError(t, err)

	// simulate expiry and takeover by another instance
	require.NoError(t, rdb.Set(ctx, key, "someone-else", time.Minute).Err())
	require.NoError(t, unlock(ctx))

	val, err := rdb.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
	require.NoError(t, rdb.Del(ctx, key).Err())
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	key := "zircon:test:" + uuid.NewString()

	unlock, err := NewRedisLocker(rdb, WithKey(key), WithWait(0)).Lock(ctx)
	require.NoError(t, err)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = unlock(context.Background())
	}()

	waiter := NewRedisLocker(rdb, WithKey(key), WithWait(5*time.Second), WithRetryInterval(20*time.Millisecond))
	unlock2, err := waiter.Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_UnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	_, err := NewRedisLocker(rdb, WithWait(0)).Lock(context.Background())
	var lna *errors.ErrLockNotAcquired
	require.ErrorAs(t, err, &lna)
	assert.Equal(t, "zircon:migration-lock", lna.Key)
	assert.Equal(t, int(errors.CodeDatabase), errors.ExitCode(err))
}

func TestNewRedisLocker_Defaults(t *testing.T) {
	l := NewRedisLocker(nil, WithKey("  app:lock "), WithLogger(nil))
	assert.Equal(t, "app:lock", l.key)
	assert.Equal(t, 5*time.Minute, l.ttl)
	assert.Equal(t, 30*time.Second, l.wait)
	assert.NotNil(t, l.logger)
}
