// Package lock provides a cross-instance lock so that only one process
// migrates and seeds a database at a time.
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/errors"
)

// release deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease lock stored under a single redis key.
type RedisLocker struct {
	rdb redis.UniversalClient

	key string
	// ttl bounds how long a crashed holder blocks others.
	ttl time.Duration
	// wait is how long Lock keeps retrying; zero tries once.
	wait  time.Duration
	retry time.Duration

	logger *zap.Logger
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithKey sets the redis key guarding migrations.
func WithKey(key string) Option {
	return func(l *RedisLocker) { l.key = strings.TrimSpace(key) }
}

// WithTTL sets how long the lock lives without a release.
func WithTTL(d time.Duration) Option {
	return func(l *RedisLocker) { l.ttl = d }
}

// WithWait sets how long Lock retries before giving up.
func WithWait(d time.Duration) Option {
	return func(l *RedisLocker) { l.wait = d }
}

// WithRetryInterval sets the pause between acquisition attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(l *RedisLocker) { l.retry = d }
}

// WithLogger sets the logger for lock warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(l *RedisLocker) { l.logger = logger }
}

// NewRedisLocker creates a locker. The client is not closed by the locker.
func NewRedisLocker(rdb redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		rdb:    rdb,
		key:    "zircon:migration-lock",
		ttl:    5 * time.Minute,
		wait:   30 * time.Second,
		retry:  250 * time.Millisecond,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Lock acquires the lock, retrying until the wait elapses or ctx ends.
// The returned function releases it.
func (l *RedisLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for attempt := 1; ; attempt++ {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.NewLockNotAcquired(l.key, err)
		}
		if ok {
			l.logger.Debug("Acquired migration lock", zap.String("key", l.key), zap.Int("attempt", attempt))
			return l.unlocker(token), nil
		}

		if !time.Now().Before(deadline) {
			return nil, errors.NewLockNotAcquired(l.key, fmt.Errorf("held by another instance after %s", l.wait))
		}
		if attempt == 1 {
			l.logger.Info("Waiting for migration lock", zap.String("key", l.key), zap.Duration("wait", l.wait))
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.NewLockNotAcquired(l.key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) unlocker(token string) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := release.Run(ctx, l.rdb, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		if n == 0 {
			l.logger.Warn("Migration lock expired before release", zap.String("key", l.key))
		}
		return nil
	}
}
