package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// RelayChannel is the Redis pub/sub channel that carries completed order codes.
const RelayChannel = "deposit:done"

// RedisRelay forwards completions through Redis so subscribers held by any
// instance behind the load balancer are reached.
type RedisRelay struct {
	client *redis.Client
	local  *Broadcaster

	mu      sync.Mutex
	pubsub  *redis.PubSub
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewRedisRelay(client *redis.Client, local *Broadcaster) *RedisRelay {
	return &RedisRelay{client: client, local: local}
}

// Start subscribes to the relay channel and feeds received order codes into
// the local broadcaster until Stop is called.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	pubsub := r.client.Subscribe(ctx, RelayChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	r.pubsub = pubsub
	r.stopCh = make(chan struct{})
	r.running = true

	r.wg.Add(1)
	go r.listen(pubsub.Channel(), r.stopCh)

	log.Infof("[Notify] Redis relay subscribed to %s", RelayChannel)
	return nil
}

func (r *RedisRelay) listen(msgs <-chan *redis.Message, stopCh <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			orderCode, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				log.Warnf("[Notify] ignoring relay message %q: %v", msg.Payload, err)
				continue
			}
			r.local.Publish(orderCode)
		}
	}
}

// Stop unsubscribes and waits for the listener to exit.
func (r *RedisRelay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	pubsub := r.pubsub
	r.mu.Unlock()

	_ = pubsub.Close()
	r.wg.Wait()
	log.Info("[Notify] Redis relay stopped")
}

// Publish announces a completion to every instance, this one included. If
// Redis is unreachable or the relay is not running, only local subscribers
// are notified.
func (r *RedisRelay) Publish(orderCode int64) int {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return r.local.Publish(orderCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	receivers, err := r.client.Publish(ctx, RelayChannel, strconv.FormatInt(orderCode, 10)).Result()
	if err != nil {
		log.Warnf("[Notify] Redis publish for order %d failed, delivering locally: %v", orderCode, err)
		return r.local.Publish(orderCode)
	}
	return int(receivers)
}
