package relay

import (
	"encoding/json"
	"fmt"
)

// Frame types on the relay wire
const (
	TypeChatMessage = "chat.message"
	TypeRelayError  = "relay.error"
)

// Envelope is the frame published to the topic broker. Payload carries the
// client's original bytes untouched; Origin identifies the publishing session
// so the self-echo policy can be applied on the receiving side. Subscribers
// are handed Payload only, never the envelope.
type Envelope struct {
	Type    string          `json:"type"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEnvelope builds the broker frame for a payload
func EncodeEnvelope(origin string, payload []byte) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:    TypeChatMessage,
		Origin:  origin,
		Payload: json.RawMessage(payload),
	})
}

// DecodeEnvelope parses a broker frame
func DecodeEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed relay frame: %w", err)
	}
	if env.Type != TypeChatMessage {
		return nil, fmt.Errorf("unexpected relay frame type %q", env.Type)
	}
	return &env, nil
}

// errorFrame is what a sender gets back when a payload is rejected, so a
// client can tell a protocol rejection apart from a transport failure.
type errorFrame struct {
	Type  string          `json:"type"`
	Error errorFrameError `json:"error"`
}

type errorFrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeErrorFrame builds a relay.error frame
func EncodeErrorFrame(code, message string) []byte {
	frame, err := json.Marshal(errorFrame{
		Type:  TypeRelayError,
		Error: errorFrameError{Code: code, Message: message},
	})
	if err != nil {
		return []byte(`{"type":"relay.error","error":{"code":"INTERNAL_ERROR","message":"relay error"}}`)
	}
	return frame
}

// TopicForConversation names the relay topic for a conversation
func TopicForConversation(conversationID uint) string {
	return fmt.Sprintf("conversation.%d", conversationID)
}
