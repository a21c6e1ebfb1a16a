package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusKeyFormat is deposit:status:<user id>:<order code>.
const StatusKeyFormat = "deposit:status:%d:%d"

// StatusTTL bounds how long a cached completion is served.
const StatusTTL = 24 * time.Hour

// StatusCache remembers completed order codes so polling skips the database.
type StatusCache interface {
	SetDone(ctx context.Context, userID uint, orderCode int64) error
	IsDone(ctx context.Context, userID uint, orderCode int64) (bool, error)
}

type noopStatusCache struct{}

func (noopStatusCache) SetDone(context.Context, uint, int64) error { return nil }

func (noopStatusCache) IsDone(context.Context, uint, int64) (bool, error) { return false, nil }

// RedisStatusCache keeps completion markers in Redis.
type RedisStatusCache struct {
	client *redis.Client
}

func NewRedisStatusCache(client *redis.Client) *RedisStatusCache {
	return &RedisStatusCache{client: client}
}

func (c *RedisStatusCache) SetDone(ctx context.Context, userID uint, orderCode int64) error {
	return c.client.Set(ctx, fmt.Sprintf(StatusKeyFormat, userID, orderCode), StatusDone, StatusTTL).Err()
}

func (c *RedisStatusCache) IsDone(ctx context.Context, userID uint, orderCode int64) (bool, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf(StatusKeyFormat, userID, orderCode)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == StatusDone, nil
}
