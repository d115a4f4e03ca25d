package models

import (
	"time"
)

// Participant roles
const (
	RoleMember = "member"
	RoleOwner  = "owner"
)

// Conversation represents a direct or group chat
type Conversation struct {
	ID           uint                      `gorm:"primaryKey" json:"id"`
	Title        string                    `json:"title"`
	IsGroup      bool                      `gorm:"default:false" json:"is_group"`
	Participants []ConversationParticipant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// ConversationParticipant tracks per-participant metadata (role, timestamps).
// A user appears at most once per conversation.
type ConversationParticipant struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         uint       `gorm:"uniqueIndex:idx_conversation_user" json:"user_id"`
	User           User       `json:"-"`
	Role           string     `gorm:"default:member" json:"role"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
}

// CreateConversationRequest is the request structure for creating a conversation
type CreateConversationRequest struct {
	Title          string `json:"title"`
	IsGroup        bool   `json:"is_group"`
	ParticipantIDs []uint `json:"participant_ids" binding:"required,min=1"`
}

// UpdateConversationRequest is the request structure for updating a conversation.
// Nil fields are left unchanged; a non-nil ParticipantIDs replaces the membership set.
type UpdateConversationRequest struct {
	Title          *string `json:"title"`
	IsGroup        *bool   `json:"is_group"`
	ParticipantIDs []uint  `json:"participant_ids"`
}

// ConversationResponse is the response structure for conversation data
type ConversationResponse struct {
	ID           uint           `json:"id"`
	Title        string         `json:"title"`
	IsGroup      bool           `json:"is_group"`
	Participants []UserResponse `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ToResponse converts a Conversation model to a ConversationResponse
func (c *Conversation) ToResponse() ConversationResponse {
	participants := make([]UserResponse, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, p.User.ToResponse())
	}

	return ConversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		IsGroup:      c.IsGroup,
		Participants: participants,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
