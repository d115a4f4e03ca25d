package relay

import (
	"context"
	"time"

	"livewire/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker over redis pub/sub. One PubSub connection per
// process carries every topic subscription; its receive loop dispatches frames
// to the handler in arrival order, which redis guarantees matches publish
// order per publishing connection.
type RedisBroker struct {
	client   *redis.Client
	pubsub   *redis.PubSub
	handler  Handler
	log      *logger.Logger
	retries  int
	backoff  time.Duration
	shutdown context.CancelFunc
}

// NewRedisBroker creates a redis-backed broker delivering to handler
func NewRedisBroker(client *redis.Client, handler Handler, log *logger.Logger, retries int, backoff time.Duration) *RedisBroker {
	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisBroker{
		client:   client,
		pubsub:   client.Subscribe(ctx),
		handler:  handler,
		log:      log,
		retries:  retries,
		backoff:  backoff,
		shutdown: cancel,
	}

	go b.receive(ctx)
	return b
}

// Publish broadcasts a frame on the topic's channel. A failed publish is not
// retried: a retry risks duplicate delivery with no idempotency key, and the
// relay is at-most-once anyway.
func (b *RedisBroker) Publish(ctx context.Context, topic string, frame []byte) error {
	return b.client.Publish(ctx, topic, frame).Err()
}

// Subscribe adds the topic to this process's pub/sub registration, retrying
// with backoff: a silently lost registration breaks cross-process fan-out.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) error {
	return withRetry(ctx, b.retries, b.backoff, func() error {
		return b.pubsub.Subscribe(ctx, topic)
	})
}

// Unsubscribe removes the topic from this process's registration
func (b *RedisBroker) Unsubscribe(ctx context.Context, topic string) error {
	return withRetry(ctx, b.retries, b.backoff, func() error {
		return b.pubsub.Unsubscribe(ctx, topic)
	})
}

// Close tears down the pub/sub connection
func (b *RedisBroker) Close() error {
	b.shutdown()
	return b.pubsub.Close()
}

func (b *RedisBroker) receive(ctx context.Context) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
