package api

import (
	"context"
	"net/http"
	"strconv"

	"livewire/backend/internal/models"
	"livewire/backend/internal/service"
	"livewire/backend/pkg/logger"
	"livewire/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ParticipantInvalidator drops cached membership admissions when the
// underlying facts change. Implemented by the relay's participant cache.
type ParticipantInvalidator interface {
	Invalidate(ctx context.Context, conversationID, userID uint)
}

// ConversationHandler handles conversation CRUD requests
type ConversationHandler struct {
	service *service.ChatService
	cache   ParticipantInvalidator
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler. cache may be nil
// when no participant cache is configured.
func NewConversationHandler(service *service.ChatService, cache ParticipantInvalidator, logger *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		cache:   cache,
		logger:  logger,
	}
}

// List returns the requester's conversations, most recently active first
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	conversations, err := h.service.ListConversations(userID)
	if err != nil {
		h.logger.Error("Error listing conversations", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}

	responses := make([]models.ConversationResponse, 0, len(conversations))
	for i := range conversations {
		responses = append(responses, conversations[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}

// Create starts a new conversation with the requester as owner
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for conversation create", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	conversation, err := h.service.CreateConversation(userID, &req)
	if err != nil {
		switch err {
		case service.ErrNoParticipants:
			c.JSON(http.StatusBadRequest, gin.H{"error": "A conversation needs at least one participant"})
		default:
			h.logger.Error("Error creating conversation", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		}
		return
	}

	c.JSON(http.StatusCreated, conversation.ToResponse())
}

// Get returns a single conversation the requester belongs to
func (h *ConversationHandler) Get(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	conversation, err := h.service.GetConversation(conversationID, userID)
	if err != nil {
		h.respondChatError(c, err, "Error getting conversation")
		return
	}

	c.JSON(http.StatusOK, conversation.ToResponse())
}

// Update changes a conversation's attributes and membership
func (h *ConversationHandler) Update(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	var req models.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	// The pre-update membership is needed for cache invalidation: the users
	// being removed are exactly the ones missing from the updated set.
	before, err := h.service.GetConversation(conversationID, userID)
	if err != nil {
		h.respondChatError(c, err, "Error updating conversation")
		return
	}

	conversation, err := h.service.UpdateConversation(conversationID, userID, &req)
	if err != nil {
		h.respondChatError(c, err, "Error updating conversation")
		return
	}

	h.invalidateMembership(c.Request.Context(), before, conversation)

	c.JSON(http.StatusOK, conversation.ToResponse())
}

// Delete removes a conversation and its history
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	conversation, err := h.service.GetConversation(conversationID, userID)
	if err != nil {
		h.respondChatError(c, err, "Error deleting conversation")
		return
	}

	if err := h.service.DeleteConversation(conversationID, userID); err != nil {
		h.respondChatError(c, err, "Error deleting conversation")
		return
	}

	// Nobody is a member of a deleted conversation
	h.invalidateMembership(c.Request.Context(), conversation, nil)

	c.Status(http.StatusNoContent)
}

// requestIDs resolves the authenticated user and the :conversationID param
func (h *ConversationHandler) requestIDs(c *gin.Context) (userID, conversationID uint, ok bool) {
	userID, authed := middleware.UserID(c)
	if !authed {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return 0, 0, false
	}

	id, err := strconv.ParseUint(c.Param("conversationID"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation ID must be a positive number"})
		return 0, 0, false
	}

	return userID, uint(id), true
}

func (h *ConversationHandler) respondChatError(c *gin.Context, err error, logMsg string) {
	switch err {
	case service.ErrConversationNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case service.ErrNotParticipant:
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case service.ErrNoParticipants:
		c.JSON(http.StatusBadRequest, gin.H{"error": "A conversation needs at least one participant"})
	default:
		h.logger.Error(logMsg, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
	}
}

// invalidateMembership drops cached membership facts for everyone who was a
// participant before or after the change. Removed members matter most: their
// cached admission must not outlive their membership. Either argument may be
// nil.
func (h *ConversationHandler) invalidateMembership(ctx context.Context, before, after *models.Conversation) {
	if h.cache == nil {
		return
	}
	seen := make(map[uint]struct{})
	for _, conversation := range []*models.Conversation{before, after} {
		if conversation == nil {
			continue
		}
		for _, p := range conversation.Participants {
			if _, done := seen[p.UserID]; done {
				continue
			}
			seen[p.UserID] = struct{}{}
			h.cache.Invalidate(ctx, conversation.ID, p.UserID)
		}
	}
}
