package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long a crashed holder blocks other cycles.
const DefaultTTL = 5 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// refreshScript extends the key's expiry only if it still holds our token.
var refreshScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLocker is a Locker shared by every process using the same Redis.
// A held lease is refreshed every third of its TTL until it is released, so
// a long cycle keeps the key. A crashed holder stops refreshing and its key
// expires after the TTL.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedis creates a RedisLocker. An empty prefix defaults to "msync:lock:"
// and a zero ttl to DefaultTTL.
func NewRedis(client redis.UniversalClient, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "msync:lock:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, ttl: ttl, logger: logger}
}

// Acquire sets the key with SET NX PX and a random token.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	lockKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	l.logger.Debug("lock acquired", zap.String("key", lockKey), zap.Duration("ttl", l.ttl))

	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	lease := &redisLease{locker: l, key: lockKey, token: token, cancel: cancel, done: make(chan struct{})}
	go lease.keepAlive(renewCtx)
	return lease, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string

	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once
}

// keepAlive refreshes the key until ctx is cancelled or the key is lost.
func (l *redisLease) keepAlive(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(max(l.locker.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := l.refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.locker.logger.Warn("lock refresh failed", zap.String("key", l.key), zap.Error(err))
				continue
			}
			if !held {
				l.locker.logger.Warn("lock lost", zap.String("key", l.key))
				return
			}
		}
	}
}

// refresh extends the key's TTL and reports whether this lease still owns it.
func (l *redisLease) refresh(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, l.locker.client, []string{l.key}, l.token, l.locker.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", l.key, err)
	}
	return n == 1, nil
}

// Release stops refreshing and deletes the key if this lease still owns it.
func (l *redisLease) Release(ctx context.Context) error {
	l.stop.Do(func() {
		l.cancel()
		<-l.done
	})

	n, err := releaseScript.Run(ctx, l.locker.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	l.locker.logger.Debug("lock released", zap.String("key", l.key))
	return nil
}
