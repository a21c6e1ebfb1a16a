package sweeper

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockKey guards the sweep across instances.
const LockKey = "sweeper:lock"

// releaseScript deletes the lock only while it still holds this owner's value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes a SETNX lock for the length of one sweep. The TTL frees
// the lock if its holder dies before Unlock.
type RedisLocker struct {
	client *redis.Client
	owner  string
}

func NewRedisLocker(client *redis.Client, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

func (l *RedisLocker) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, LockKey, l.owner, ttl).Result()
}

// Unlock releases the lock if this owner still holds it.
func (l *RedisLocker) Unlock(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{LockKey}, l.owner).Err()
}
