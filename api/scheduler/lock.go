package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived named locks shared by every instance
type Locker interface {
	TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// LockClient is the part of the redis client the locker uses
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// release only deletes the lock while it still belongs to the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client LockClient
	prefix string
}

// NewRedisLocker returns a locker storing locks under "lock:<name>"
func NewRedisLocker(client LockClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "lock:"}
}

// TryAcquireLock takes name for ttl unless another owner holds it
func (l *RedisLocker) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// ReleaseLock drops name if owner still holds it
func (l *RedisLocker) ReleaseLock(ctx context.Context, name, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
