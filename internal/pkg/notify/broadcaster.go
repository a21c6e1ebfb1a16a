package notify

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// DefaultTimeout closes a channel that saw no completion.
const DefaultTimeout = 10 * time.Minute

const shardCount = 64

const (
	StatusDone    = "done"
	StatusTimeout = "timeout"
)

// Event is the single message a subscription ever receives.
type Event struct {
	OrderCode int64  `json:"-"`
	Status    string `json:"status"`
}

// Broadcaster keeps one channel per order code and fans a completion out to
// every subscriber of that code exactly once.
type Broadcaster struct {
	timeout time.Duration
	shards  [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	channels map[int64]*channel
}

// channel is the live subscriber set of one order code. Once closed it never
// delivers again and is gone from the registry.
type channel struct {
	orderCode int64
	createdAt time.Time
	timer     *time.Timer

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one attached client. C yields one Event and is then closed.
type Subscription struct {
	C <-chan Event

	out   chan Event
	owner *Broadcaster
	ch    *channel
	// detached is guarded by ch.mu.
	detached bool
}

// New creates a broadcaster; a non-positive timeout means DefaultTimeout.
func New(timeout time.Duration) *Broadcaster {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	b := &Broadcaster{timeout: timeout}
	for i := range b.shards {
		b.shards[i].channels = make(map[int64]*channel)
	}
	return b
}

func (b *Broadcaster) shardFor(orderCode int64) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(orderCode, 10)))
	return &b.shards[h.Sum32()%shardCount]
}

// Subscribe attaches a subscriber to the order code's channel, creating the
// channel and starting its timeout if it does not exist yet.
func (b *Broadcaster) Subscribe(orderCode int64) *Subscription {
	out := make(chan Event, 1)
	sub := &Subscription{C: out, out: out, owner: b}

	s := b.shardFor(orderCode)
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		ch, ok := s.channels[orderCode]
		if !ok {
			ch = b.newChannel(orderCode)
			s.channels[orderCode] = ch
		}

		ch.mu.Lock()
		if ch.closed {
			// The last subscriber just left and is about to detach it.
			ch.mu.Unlock()
			ch.timer.Stop()
			delete(s.channels, orderCode)
			continue
		}
		ch.subs[sub] = struct{}{}
		ch.mu.Unlock()
		sub.ch = ch
		return sub
	}
}

func (b *Broadcaster) newChannel(orderCode int64) *channel {
	ch := &channel{
		orderCode: orderCode,
		createdAt: time.Now(),
		subs:      make(map[*Subscription]struct{}),
	}
	ch.timer = time.AfterFunc(b.timeout, func() { b.expire(ch) })
	return ch
}

// Publish delivers "done" to every current subscriber of the order code and
// tears the channel down. It returns the number of subscribers reached; with
// nobody listening the event is dropped.
func (b *Broadcaster) Publish(orderCode int64) int {
	ch := b.detach(orderCode, nil)
	if ch == nil {
		return 0
	}
	n := ch.deliver(Event{OrderCode: orderCode, Status: StatusDone})
	log.Debugf("[Notify] delivered done for order %d to %d subscriber(s)", orderCode, n)
	return n
}

// Len returns the number of open channels.
func (b *Broadcaster) Len() int {
	n := 0
	for i := range b.shards {
		s := &b.shards[i]
		s.mu.Lock()
		n += len(s.channels)
		s.mu.Unlock()
	}
	return n
}

// Subscribers returns the number of subscribers attached to an order code.
func (b *Broadcaster) Subscribers(orderCode int64) int {
	s := b.shardFor(orderCode)
	s.mu.Lock()
	ch, ok := s.channels[orderCode]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subs)
}

func (b *Broadcaster) expire(ch *channel) {
	if b.detach(ch.orderCode, ch) == nil {
		return
	}
	n := ch.deliver(Event{OrderCode: ch.orderCode, Status: StatusTimeout})
	log.Debugf("[Notify] channel for order %d timed out after %s with %d subscriber(s)", ch.orderCode, time.Since(ch.createdAt).Round(time.Second), n)
}

// detach removes the order code's channel from the registry. When want is
// set, only that exact channel is removed.
func (b *Broadcaster) detach(orderCode int64, want *channel) *channel {
	s := b.shardFor(orderCode)
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[orderCode]
	if !ok || (want != nil && ch != want) {
		return nil
	}
	delete(s.channels, orderCode)
	ch.timer.Stop()
	return ch
}

// deliver sends ev to all subscribers once and closes the channel.
func (c *channel) deliver(ev Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	c.closed = true
	n := 0
	for sub := range c.subs {
		sub.out <- ev
		close(sub.out)
		sub.detached = true
		n++
	}
	c.subs = nil
	return n
}

// Close detaches the subscriber. The last subscriber to leave tears the
// channel down without waiting for the timeout. Safe to call more than once.
func (s *Subscription) Close() {
	ch := s.ch
	ch.mu.Lock()
	if s.detached {
		ch.mu.Unlock()
		return
	}
	s.detached = true
	delete(ch.subs, s)
	close(s.out)
	last := !ch.closed && len(ch.subs) == 0
	if last {
		ch.closed = true
	}
	ch.mu.Unlock()

	if last {
		s.owner.detach(ch.orderCode, ch)
	}
}
