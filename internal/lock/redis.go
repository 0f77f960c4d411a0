package lock

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries our token, so a
// holder whose TTL lapsed never frees somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every replica of the service.  Locks
// are plain SET NX PX keys carrying a random token.
type RedisLocker struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	maxWait time.Duration
}

// NewRedisLocker returns a RedisLocker.  ttl bounds how long a crashed
// holder can block a session; maxWait bounds how long Lock retries.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, maxWait time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, maxWait: maxWait}
}

// Lock retries SET NX with exponential backoff until it wins, ctx ends or
// maxWait elapses.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (bool, error) {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return false, backoff.Permanent(err)
		}
		if !ok {
			return false, ErrNotAcquired
		}
		return true, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(l.maxWait))
	if err != nil {
		if errors.Is(err, ErrNotAcquired) {
			return nil, err
		}
		return nil, errors.Join(ErrNotAcquired, err)
	}

	return func() {
		// release with a fresh context: the caller's may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{full}, token).Err(); err != nil {
			log.Printf("lock: release %s failed: %v", full, err)
		}
	}, nil
}
