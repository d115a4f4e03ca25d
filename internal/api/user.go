package api

import (
	"net/http"

	"livewire/backend/internal/models"
	"livewire/backend/internal/service"
	"livewire/backend/pkg/logger"
	"livewire/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UserHandler handles user directory requests
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *service.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// List returns users other than the requester, optionally filtered by the
// search query parameter against email and display name.
func (h *UserHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	users, err := h.service.Search(userID, c.Query("search"))
	if err != nil {
		h.logger.Error("Error searching users", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, users[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}
