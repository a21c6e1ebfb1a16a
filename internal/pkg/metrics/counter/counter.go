package counter

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// WebhookOutcomesKey is the Redis hash of webhook acknowledgements by reason.
const WebhookOutcomesKey = "deposit:counters:webhooks"

// Counter tallies named outcomes in a Redis hash. Counts survive restarts
// and are shared by every instance.
type Counter struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client, key string) *Counter {
	return &Counter{client: client, key: key}
}

// NewWebhookOutcomes counts webhook results under WebhookOutcomesKey.
func NewWebhookOutcomes(client *redis.Client) *Counter {
	return New(client, WebhookOutcomesKey)
}

// Add increments the field by one.
func (c *Counter) Add(ctx context.Context, field string) error {
	return c.client.HIncrBy(ctx, c.key, field, 1).Err()
}

// Snapshot returns all counts. Fields that are not integers are skipped.
func (c *Counter) Snapshot(ctx context.Context) (map[string]int64, error) {
	data, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for field, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}

// Reset drops all counts.
func (c *Counter) Reset(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
