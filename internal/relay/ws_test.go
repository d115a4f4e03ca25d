package relay

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportReadLimitExceedsGateBound(t *testing.T) {
	// The transport must be able to read a payload the gate will reject as
	// oversized; a limit at or below the bound would kill the connection
	// before the gate ever sees the payload.
	for _, bound := range []int64{32, 64 << 10, 1 << 20} {
		assert.Greater(t, transportReadLimit(bound), bound)
	}
}

func TestOversizedInboundRejectedPerMessage(t *testing.T) {
	log := testLogger()
	registry := NewRegistry(log, false)
	registry.UseBroker(NewMemoryBroker(registry.Dispatch))
	gate := NewGate(allowAll{}, 32)

	s := NewSession(registry, gate, 1, 8, log)
	require.NoError(t, s.Open(context.Background(), "42"))
	peer := NewSession(registry, gate, 2, 8, log)
	require.NoError(t, peer.Open(context.Background(), "42"))

	big := []byte(`{"body":"` + strings.Repeat("x", 64) + `"}`)
	s.HandleInbound(context.Background(), big)

	frame := receive(t, s)
	var errFrame struct {
		Type  string `json:"type"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(frame, &errFrame))
	assert.Equal(t, TypeRelayError, errFrame.Type)
	assert.Equal(t, CodePayloadTooLarge, errFrame.Error.Code)

	// fatal only to that message: the session stays active and keeps relaying
	assert.Equal(t, StateActive, s.State())
	expectNothing(t, peer)

	s.HandleInbound(context.Background(), []byte(`{"body":"small"}`))
	assert.Equal(t, []byte(`{"body":"small"}`), receive(t, peer))
}
