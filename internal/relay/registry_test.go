package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeIdempotent(t *testing.T) {
	broker := newFakeBroker()
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	s := NewSession(registry, nil, 1, 8, testLogger())
	ctx := context.Background()

	require.NoError(t, registry.Subscribe(ctx, "conversation.42", s))
	require.NoError(t, registry.Subscribe(ctx, "conversation.42", s))

	assert.Equal(t, 1, registry.Subscribers("conversation.42"))
	assert.Equal(t, 1, broker.subscribeCount())
}

func TestBrokerRegistrationOnFirstAndLast(t *testing.T) {
	broker := newFakeBroker()
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	ctx := context.Background()
	s1 := NewSession(registry, nil, 1, 8, testLogger())
	s2 := NewSession(registry, nil, 2, 8, testLogger())

	require.NoError(t, registry.Subscribe(ctx, "conversation.7", s1))
	require.NoError(t, registry.Subscribe(ctx, "conversation.7", s2))
	assert.Equal(t, 1, broker.subscribeCount(), "broker registration happens once per topic")

	registry.Unsubscribe(ctx, "conversation.7", s1)
	assert.Equal(t, 1, registry.Subscribers("conversation.7"))
	assert.Equal(t, 0, broker.unsubscribeCount(), "broker stays registered while subscribers remain")

	registry.Unsubscribe(ctx, "conversation.7", s2)
	assert.Equal(t, 0, registry.Subscribers("conversation.7"))
	assert.Equal(t, 1, broker.unsubscribeCount())

	// removing an already-removed session is a no-op
	registry.Unsubscribe(ctx, "conversation.7", s2)
	assert.Equal(t, 1, broker.unsubscribeCount())
}

func TestSubscribeFailedRegistrationAddsNoSubscriber(t *testing.T) {
	broker := newFakeBroker()
	broker.failSubscribe = true
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	ctx := context.Background()
	s := NewSession(registry, nil, 1, 8, testLogger())
	err := registry.Subscribe(ctx, "conversation.42", s)

	require.Error(t, err)
	assert.Equal(t, 0, registry.Subscribers("conversation.42"))

	// registration is attempted afresh once the broker recovers
	broker.failSubscribe = false
	require.NoError(t, registry.Subscribe(ctx, "conversation.42", s))
	assert.Equal(t, 1, registry.Subscribers("conversation.42"))
	assert.Equal(t, 1, broker.subscribeCount())
}

// gatedBroker blocks Subscribe until released, so a test can hold one
// subscriber mid-registration while another races it on the same topic.
type gatedBroker struct {
	fakeBroker
	entered chan struct{}
	release chan error
}

func newGatedBroker() *gatedBroker {
	return &gatedBroker{
		fakeBroker: *newFakeBroker(),
		entered:    make(chan struct{}),
		release:    make(chan error),
	}
}

func (b *gatedBroker) Subscribe(ctx context.Context, topic string) error {
	b.entered <- struct{}{}
	if err := <-b.release; err != nil {
		return err
	}
	return b.fakeBroker.Subscribe(ctx, topic)
}

func TestConcurrentSubscribeSerializesRegistration(t *testing.T) {
	broker := newGatedBroker()
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	ctx := context.Background()
	s1 := NewSession(registry, nil, 1, 8, testLogger())
	s2 := NewSession(registry, nil, 2, 8, testLogger())

	errs := make(chan error, 2)
	go func() { errs <- registry.Subscribe(ctx, "conversation.42", s1) }()
	<-broker.entered

	// s2 queues behind s1's in-flight registration
	go func() { errs <- registry.Subscribe(ctx, "conversation.42", s2) }()

	// s1's registration fails; s2 then registers on its own
	broker.release <- assert.AnError
	<-broker.entered
	broker.release <- nil

	first := <-errs
	second := <-errs
	if first == nil {
		first, second = second, first
	}
	require.Error(t, first, "the failed registration surfaces to its subscriber")
	require.NoError(t, second)

	assert.Equal(t, 1, registry.Subscribers("conversation.42"))
	assert.Equal(t, 1, broker.subscribeCount(), "exactly one registration holds")
}

func TestPublishWrapsEnvelope(t *testing.T) {
	broker := newFakeBroker()
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	payload := []byte(`{"body":"wrapped"}`)
	require.NoError(t, registry.Publish(context.Background(), "conversation.42", "origin-1", payload))

	broker.mu.Lock()
	frames := broker.frames["conversation.42"]
	broker.mu.Unlock()
	require.Len(t, frames, 1)

	env, err := DecodeEnvelope(frames[0])
	require.NoError(t, err)
	assert.Equal(t, TypeChatMessage, env.Type)
	assert.Equal(t, "origin-1", env.Origin)
	assert.Equal(t, payload, []byte(env.Payload))
}

func TestDispatchSkipsMalformedFrames(t *testing.T) {
	registry, gate := newRelay(false)
	s := openSession(t, registry, gate, 1, "42", 8)

	registry.Dispatch("conversation.42", []byte("not json"))
	expectNothing(t, s)
}
