package relay

import (
	"context"
	"sync"
)

// MemoryBroker is the single-process Broker. It fans frames straight back to
// the local handler, synchronously, which preserves publish order per topic.
// A multi-process deployment swaps in the redis or NATS broker without
// touching session or registry logic.
type MemoryBroker struct {
	mu      sync.RWMutex
	topics  map[string]struct{}
	handler Handler
}

// NewMemoryBroker creates an in-process broker delivering to handler
func NewMemoryBroker(handler Handler) *MemoryBroker {
	return &MemoryBroker{
		topics:  make(map[string]struct{}),
		handler: handler,
	}
}

// Publish delivers the frame locally if this process subscribes to the topic.
// Publishing to a topic with no subscribers is a no-op.
func (b *MemoryBroker) Publish(_ context.Context, topic string, frame []byte) error {
	b.mu.RLock()
	_, subscribed := b.topics[topic]
	b.mu.RUnlock()

	if subscribed {
		b.handler(topic, frame)
	}
	return nil
}

// Subscribe registers interest in a topic
func (b *MemoryBroker) Subscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	b.topics[topic] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Unsubscribe drops interest in a topic
func (b *MemoryBroker) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	delete(b.topics, topic)
	b.mu.Unlock()
	return nil
}

// Close implements Broker
func (b *MemoryBroker) Close() error { return nil }
