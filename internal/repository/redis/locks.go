package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

var _ repository.EntityLockStore = (*redisLocks)(nil)

const (
	lockKeyPrefix  = "cascade:lock:"
	defaultLockTTL = 30 * time.Minute
)

// releaseScript deletes the key only when it still belongs to the caller.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews the TTL only when the key still belongs to the caller.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocks struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewRedisLockStore creates a Redis-backed EntityLockStore using SETNX.
// The TTL bounds how long a crashed process can hold an entity; live holders
// renew it with Extend.
func NewRedisLockStore(client goredis.UniversalClient, ttl time.Duration) repository.EntityLockStore {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisLocks{client: client, ttl: ttl}
}

// Acquire uses Redis SETNX to atomically claim the key.
func (r *redisLocks) Acquire(ctx context.Context, key, holder string) (bool, string, error) {
	k := lockKeyPrefix + key
	ok, err := r.client.SetNX(ctx, k, holder, r.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("redis: acquire lock: %w", err)
	}
	if ok {
		return true, holder, nil
	}
	current, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = r.client.SetNX(ctx, k, holder, r.ttl).Result()
		if err != nil {
			return false, "", fmt.Errorf("redis: acquire lock: %w", err)
		}
		if ok {
			return true, holder, nil
		}
		current, err = r.client.Get(ctx, k).Result()
	}
	if err != nil {
		return false, "", fmt.Errorf("redis: read lock holder: %w", err)
	}
	return current == holder, current, nil
}

// Release runs a compare-and-delete so a lock is never freed by a stale holder.
func (r *redisLocks) Release(ctx context.Context, key, holder string) error {
	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + key}, holder).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

// Extend pushes the expiry out by the configured TTL if holder still owns key.
func (r *redisLocks) Extend(ctx context.Context, key, holder string) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{lockKeyPrefix + key}, holder, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis: extend lock: %w", err)
	}
	return n == 1, nil
}
