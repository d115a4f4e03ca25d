package models

import (
	"time"
)

// Message represents a chat message persisted for history and offline delivery.
// Sender is nullable: deleting an account keeps its messages.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index" json:"conversation_id"`
	SenderID       *uint     `json:"sender_id"`
	Sender         *User     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Body           string    `json:"body"`
	AttachmentURL  string    `json:"attachment_url"`
	Edited         bool      `gorm:"default:false" json:"is_edited"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateMessageRequest is the request structure for posting a message
type CreateMessageRequest struct {
	Body          string `json:"body"`
	AttachmentURL string `json:"attachment_url"`
}

// UpdateMessageRequest is the request structure for editing a message
type UpdateMessageRequest struct {
	Body          *string `json:"body"`
	AttachmentURL *string `json:"attachment_url"`
}

// MessageResponse is the response structure for message data
type MessageResponse struct {
	ID             uint          `json:"id"`
	ConversationID uint          `json:"conversation_id"`
	Sender         *UserResponse `json:"sender"`
	Body           string        `json:"body"`
	AttachmentURL  string        `json:"attachment_url"`
	Edited         bool          `json:"is_edited"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ToResponse converts a Message model to a MessageResponse
func (m *Message) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Body:           m.Body,
		AttachmentURL:  m.AttachmentURL,
		Edited:         m.Edited,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Sender != nil {
		sender := m.Sender.ToResponse()
		resp.Sender = &sender
	}
	return resp
}
