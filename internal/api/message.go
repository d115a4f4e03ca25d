package api

import (
	"net/http"
	"strconv"

	"livewire/backend/internal/models"
	"livewire/backend/internal/service"
	"livewire/backend/pkg/logger"
	"livewire/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const defaultMessagePageSize = 50

// MessageHandler handles message history requests
type MessageHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(service *service.ChatService, logger *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger,
	}
}

// List returns a conversation's messages in chronological order
func (h *MessageHandler) List(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultMessagePageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.service.ListMessages(conversationID, userID, limit, offset)
	if err != nil {
		h.respondChatError(c, err, "Error listing messages")
		return
	}

	responses := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, messages[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}

// Create appends a message to a conversation's history
func (h *MessageHandler) Create(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for message create", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	message, err := h.service.CreateMessage(conversationID, userID, &req)
	if err != nil {
		h.respondChatError(c, err, "Error creating message")
		return
	}

	c.JSON(http.StatusCreated, message.ToResponse())
}

// Get returns one message from a conversation the requester belongs to
func (h *MessageHandler) Get(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	messageID, ok := h.messageID(c)
	if !ok {
		return
	}

	message, err := h.service.GetMessage(conversationID, messageID, userID)
	if err != nil {
		h.respondChatError(c, err, "Error getting message")
		return
	}

	c.JSON(http.StatusOK, message.ToResponse())
}

// Update edits a message's body; only the sender may edit
func (h *MessageHandler) Update(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	messageID, ok := h.messageID(c)
	if !ok {
		return
	}

	var req models.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	message, err := h.service.UpdateMessage(conversationID, messageID, userID, &req)
	if err != nil {
		h.respondChatError(c, err, "Error updating message")
		return
	}

	c.JSON(http.StatusOK, message.ToResponse())
}

// Delete removes a message; only the sender may delete
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, conversationID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	messageID, ok := h.messageID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(conversationID, messageID, userID); err != nil {
		h.respondChatError(c, err, "Error deleting message")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) requestIDs(c *gin.Context) (userID, conversationID uint, ok bool) {
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

func (h *MessageHandler) messageID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("messageID"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message ID must be a positive number"})
		return 0, false
	}
	return uint(id), true
}

func (h *MessageHandler) respondChatError(c *gin.Context, err error, logMsg string) {
	switch err {
	case service.ErrConversationNotFound, service.ErrNotParticipant:
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case service.ErrMessageNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
	case service.ErrNotSender:
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the sender may modify this message"})
	default:
		h.logger.Error(logMsg, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
	}
}
