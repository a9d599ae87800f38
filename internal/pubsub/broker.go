// Package pubsub is an in-process, topic based event broker. Delivery is
// fire-and-forget: a subscriber that falls behind loses events instead of
// slowing down the publisher or its peers.
package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/observability"
)

const DefaultBuffer = 64

// Filter decides whether a payload is forwarded to one subscriber.
type Filter func(ctx context.Context, payload any) bool

type subscriber struct {
	inbox  chan any
	cancel context.CancelFunc
}

// Broker fans published payloads out to the live subscribers of a topic.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscriber inbox size.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		topics: make(map[string]map[uint64]*subscriber),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands payload to every current subscriber of topic without
// blocking and returns how many inboxes accepted it.
func (b *Broker) Publish(topic string, payload any) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	observability.IncPubSubPublished(topic)
	delivered := 0
	for id, sub := range b.topics[topic] {
		select {
		case sub.inbox <- payload:
			delivered++
		default:
			observability.IncPubSubDropped(topic)
			log.Warn().Str("topic", topic).Uint64("subscriber", id).Msg("pubsub inbox full, event dropped")
		}
	}
	return delivered
}

// Subscribe registers a subscriber on topic. Payloads rejected by filter are
// dropped silently; a nil filter accepts everything. The returned channel is
// closed once ctx is done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context, topic string, filter Filter) <-chan any {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan any)
	sub := &subscriber{inbox: make(chan any, b.buffer), cancel: cancel}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		close(out)
		return out
	}
	id := b.nextID
	b.nextID++
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*subscriber)
	}
	b.topics[topic][id] = sub
	b.mu.Unlock()
	observability.AddPubSubSubscribers(topic, 1)

	go func() {
		defer close(out)
		defer b.unsubscribe(topic, id)
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-sub.inbox:
				if filter != nil && !filter(ctx, payload) {
					continue
				}
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *Broker) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	if sub, ok := subs[id]; ok {
		sub.cancel()
		delete(subs, id)
		observability.AddPubSubSubscribers(topic, -1)
	}
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Subscribers reports the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close cancels every subscription. Later Subscribe calls return closed channels.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	var cancels []context.CancelFunc
	for _, subs := range b.topics {
		for _, sub := range subs {
			cancels = append(cancels, sub.cancel)
		}
	}
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
