package api

import (
	"context"
	"io"
	"testing"

	"livewire/backend/internal/models"
	"livewire/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type recordingInvalidator struct {
	pairs [][2]uint
}

func (r *recordingInvalidator) Invalidate(_ context.Context, conversationID, userID uint) {
	r.pairs = append(r.pairs, [2]uint{conversationID, userID})
}

func conversationWith(id uint, userIDs ...uint) *models.Conversation {
	conv := &models.Conversation{ID: id}
	for _, uid := range userIDs {
		conv.Participants = append(conv.Participants, models.ConversationParticipant{
			ConversationID: id,
			UserID:         uid,
		})
	}
	return conv
}

func TestInvalidateMembershipCoversRemovedParticipants(t *testing.T) {
	inv := &recordingInvalidator{}
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	h := NewConversationHandler(nil, inv, log)

	// user 3 was removed by the update; their cached admission must die too
	before := conversationWith(42, 1, 2, 3)
	after := conversationWith(42, 1, 2)

	h.invalidateMembership(context.Background(), before, after)

	assert.Contains(t, inv.pairs, [2]uint{42, 3})
	assert.Contains(t, inv.pairs, [2]uint{42, 1})
	assert.Contains(t, inv.pairs, [2]uint{42, 2})
	assert.Len(t, inv.pairs, 3, "each pair is invalidated once")
}

func TestInvalidateMembershipOnDelete(t *testing.T) {
	inv := &recordingInvalidator{}
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	h := NewConversationHandler(nil, inv, log)

	h.invalidateMembership(context.Background(), conversationWith(7, 1, 2), nil)

	assert.ElementsMatch(t, [][2]uint{{7, 1}, {7, 2}}, inv.pairs)
}

func TestInvalidateMembershipWithoutCacheIsNoOp(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	h := NewConversationHandler(nil, nil, log)

	// must not panic with no cache configured
	h.invalidateMembership(context.Background(), conversationWith(7, 1), nil)
}
