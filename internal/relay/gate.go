package relay

import (
	"bytes"
	"context"
	"encoding/json"

	"livewire/backend/pkg/errors"
)

// Ingress rejection codes
const (
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeMalformedPayload = "MALFORMED_PAYLOAD"
	CodeNotParticipant   = "NOT_PARTICIPANT"
)

// ParticipantChecker answers the single membership fact the gate needs. The
// chat service implements it against the database; a cache may decorate it.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
}

// Gate decides whether an inbound payload is eligible for relay: structurally
// a JSON object, within the size bound, and sent by a current participant of
// the target conversation. Membership is re-checked per message, not just at
// connect, since it can change mid-session.
type Gate struct {
	checker    ParticipantChecker
	maxPayload int64
}

// NewGate creates an ingress gate
func NewGate(checker ParticipantChecker, maxPayload int64) *Gate {
	return &Gate{checker: checker, maxPayload: maxPayload}
}

// Admit returns nil when the payload may be relayed, an AppError describing
// the rejection otherwise. Authorization rejections carry a 403 status so
// callers can distinguish them from malformation.
func (g *Gate) Admit(ctx context.Context, conversationID, userID uint, payload []byte) *errors.AppError {
	if g.maxPayload > 0 && int64(len(payload)) > g.maxPayload {
		rejectedTotal.WithLabelValues(CodePayloadTooLarge).Inc()
		return errors.NewBadRequestError(CodePayloadTooLarge, "payload exceeds the relay size limit")
	}

	if !isJSONObject(payload) {
		rejectedTotal.WithLabelValues(CodeMalformedPayload).Inc()
		return errors.NewBadRequestError(CodeMalformedPayload, "payload must be a JSON object")
	}

	ok, err := g.checker.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		rejectedTotal.WithLabelValues(CodeNotParticipant).Inc()
		return errors.NewInternalServerError("MEMBERSHIP_CHECK_FAILED", "could not verify conversation membership")
	}
	if !ok {
		rejectedTotal.WithLabelValues(CodeNotParticipant).Inc()
		return errors.NewForbiddenError(CodeNotParticipant, "you are not a member of this conversation")
	}

	return nil
}

// isJSONObject reports whether data is a well-formed JSON value whose top
// level is an object.
func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(data)
}
