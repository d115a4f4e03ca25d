package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsMalformedTarget(t *testing.T) {
	for _, target := range []string{"", "abc", "-1", "0", "42x", "4294967296000"} {
		registry, gate := newRelay(false)
		s := NewSession(registry, gate, 1, 8, testLogger())

		err := s.Open(context.Background(), target)
		var malformed *ErrMalformedTarget
		require.ErrorAs(t, err, &malformed, "target %q", target)
		assert.Equal(t, StateClosed, s.State())
	}
}

func TestOpenActivatesSession(t *testing.T) {
	registry, gate := newRelay(false)
	s := NewSession(registry, gate, 1, 8, testLogger())

	require.NoError(t, s.Open(context.Background(), "42"))
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, "conversation.42", s.Topic)
	assert.Equal(t, 1, registry.Subscribers("conversation.42"))
}

func TestCloseIsIdempotent(t *testing.T) {
	broker := newFakeBroker()
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	s := NewSession(registry, NewGate(allowAll{}, 64<<10), 1, 8, testLogger())
	require.NoError(t, s.Open(context.Background(), "42"))

	s.Close()
	s.Close()
	s.Close()

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, registry.Subscribers("conversation.42"))
	assert.Equal(t, 1, broker.unsubscribeCount())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not signalled after close")
	}
}

func TestDeliverAfterCloseIsDropped(t *testing.T) {
	registry, gate := newRelay(false)
	s := openSession(t, registry, gate, 1, "42", 8)
	s.Close()

	assert.False(t, s.Deliver([]byte(`{"body":"late"}`)))
}

func TestInboundDiscardedBeforeActive(t *testing.T) {
	broker := newFakeBroker()
	registry := NewRegistry(testLogger(), false)
	registry.UseBroker(broker)

	s := NewSession(registry, NewGate(allowAll{}, 64<<10), 1, 8, testLogger())
	require.Equal(t, StateConnecting, s.State())

	s.HandleInbound(context.Background(), []byte(`{"body":"too early"}`))

	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Empty(t, broker.frames)
}

func TestInboundRejectedForNonParticipant(t *testing.T) {
	log := testLogger()
	registry := NewRegistry(log, false)
	registry.UseBroker(NewMemoryBroker(registry.Dispatch))
	gate := NewGate(denyAll{}, 64<<10)

	s := NewSession(registry, gate, 1, 8, log)
	require.NoError(t, s.Open(context.Background(), "42"))

	s.HandleInbound(context.Background(), []byte(`{"body":"sneaky"}`))

	frame := receive(t, s)
	var errFrame struct {
		Type  string `json:"type"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(frame, &errFrame))
	assert.Equal(t, TypeRelayError, errFrame.Type)
	assert.Equal(t, "NOT_PARTICIPANT", errFrame.Error.Code)

	// losing membership terminates the session
	assert.Equal(t, StateClosed, s.State())
}

func TestInboundMalformedPayloadKeepsSessionAlive(t *testing.T) {
	registry, gate := newRelay(false)
	s := openSession(t, registry, gate, 1, "42", 8)

	s.HandleInbound(context.Background(), []byte(`[1,2,3]`))

	frame := receive(t, s)
	var errFrame struct {
		Type  string `json:"type"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(frame, &errFrame))
	assert.Equal(t, "MALFORMED_PAYLOAD", errFrame.Error.Code)
	assert.Equal(t, StateActive, s.State())

	// the session still relays well-formed messages afterwards
	peer := openSession(t, registry, gate, 2, "42", 8)
	s.HandleInbound(context.Background(), []byte(`{"body":"recovered"}`))
	assert.Equal(t, []byte(`{"body":"recovered"}`), receive(t, peer))
}

func TestPersistHookRunsBeforePublish(t *testing.T) {
	registry, gate := newRelay(false)

	var persisted [][]byte
	s := NewSession(registry, gate, 1, 8, testLogger()).WithPersist(func(_ context.Context, conversationID, userID uint, payload []byte) error {
		assert.Equal(t, uint(42), conversationID)
		assert.Equal(t, uint(1), userID)
		persisted = append(persisted, payload)
		return nil
	})
	require.NoError(t, s.Open(context.Background(), "42"))
	peer := openSession(t, registry, gate, 2, "42", 8)

	payload := []byte(`{"body":"stored"}`)
	s.HandleInbound(context.Background(), payload)

	receive(t, peer)
	require.Len(t, persisted, 1)
	assert.Equal(t, payload, persisted[0])
}

func TestDeliverDropsWhenQueueFull(t *testing.T) {
	registry, gate := newRelay(false)
	s := openSession(t, registry, gate, 1, "42", 2)

	assert.True(t, s.Deliver([]byte(`{"n":1}`)))
	assert.True(t, s.Deliver([]byte(`{"n":2}`)))
	assert.False(t, s.Deliver([]byte(`{"n":3}`)), "full queue drops instead of blocking")

	assert.Equal(t, []byte(`{"n":1}`), receive(t, s))
	assert.Equal(t, []byte(`{"n":2}`), receive(t, s))
	expectNothing(t, s)
}
