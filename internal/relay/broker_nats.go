package relay

import (
	"context"
	"sync"
	"time"

	"livewire/backend/pkg/logger"

	"github.com/nats-io/nats.go"
)

// NatsBroker implements Broker over core NATS, one subject per conversation
// topic. Core NATS rather than JetStream: the relay is not a durable log, a
// subscriber that was not connected at publish time gets nothing. NATS
// delivers per-subscription in publish order, satisfying the FIFO
// per-publisher-per-topic guarantee.
type NatsBroker struct {
	nc      *nats.Conn
	log     *logger.Logger
	retries int
	backoff time.Duration

	mu   sync.Mutex
	subs map[string]*nats.Subscription

	handler Handler
}

// NewNatsBroker connects to NATS and returns a broker delivering to handler
func NewNatsBroker(url string, handler Handler, log *logger.Logger, retries int, backoff time.Duration) (*NatsBroker, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &NatsBroker{
		nc:      nc,
		log:     log,
		retries: retries,
		backoff: backoff,
		subs:    make(map[string]*nats.Subscription),
		handler: handler,
	}, nil
}

// Publish broadcasts a frame on the topic's subject; never retried
func (b *NatsBroker) Publish(_ context.Context, topic string, frame []byte) error {
	return b.nc.Publish(topic, frame)
}

// Subscribe registers a subject subscription for the topic, retrying with
// backoff. Idempotent: an existing subscription is kept.
func (b *NatsBroker) Subscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[topic]; ok {
		return nil
	}

	var sub *nats.Subscription
	err := withRetry(ctx, b.retries, b.backoff, func() error {
		var err error
		sub, err = b.nc.Subscribe(topic, func(m *nats.Msg) {
			b.handler(m.Subject, m.Data)
		})
		return err
	})
	if err != nil {
		return err
	}

	b.subs[topic] = sub
	return nil
}

// Unsubscribe drops the subject subscription for the topic
func (b *NatsBroker) Unsubscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	sub, ok := b.subs[topic]
	if ok {
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}

	return withRetry(ctx, b.retries, b.backoff, sub.Unsubscribe)
}

// Close drains and closes the NATS connection
func (b *NatsBroker) Close() error {
	return b.nc.Drain()
}
