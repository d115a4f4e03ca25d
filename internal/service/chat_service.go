package service

import (
	"errors"
	"time"

	"livewire/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("user is not a member of this conversation")
	ErrNotSender            = errors.New("only the sender may modify a message")
	ErrNoParticipants       = errors.New("a conversation needs at least one participant")
)

// ChatService handles conversations, membership and message history.
// It also exposes the membership facts the relay consumes.
type ChatService struct {
	db *gorm.DB
}

// NewChatService creates a new chat service
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// ListConversations returns the conversations the user participates in,
// most recently active first.
func (s *ChatService) ListConversations(userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := s.db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Preload("Participants.User").
		Order("conversations.updated_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// CreateConversation creates a conversation with the given participants.
// The creator is always included, duplicates are collapsed.
func (s *ChatService) CreateConversation(creatorID uint, req *models.CreateConversationRequest) (*models.Conversation, error) {
	ids := map[uint]struct{}{creatorID: {}}
	for _, id := range req.ParticipantIDs {
		ids[id] = struct{}{}
	}
	if len(ids) == 0 {
		return nil, ErrNoParticipants
	}

	conversation := models.Conversation{
		Title:   req.Title,
		IsGroup: req.IsGroup,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		now := time.Now()
		for id := range ids {
			role := models.RoleMember
			if id == creatorID {
				role = models.RoleOwner
			}
			participant := models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         id,
				Role:           role,
				JoinedAt:       now,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetConversation(conversation.ID, creatorID)
}

// GetConversation returns a conversation the user participates in.
// Non-members get ErrConversationNotFound, not a membership hint.
func (s *ChatService) GetConversation(conversationID, userID uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Preload("Participants.User").
		First(&conversation, conversationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conversation, nil
}

// UpdateConversation updates a conversation's attributes and, when
// ParticipantIDs is non-nil, replaces the membership set (add new, drop stale).
func (s *ChatService) UpdateConversation(conversationID, userID uint, req *models.UpdateConversationRequest) (*models.Conversation, error) {
	conversation, err := s.GetConversation(conversationID, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.IsGroup != nil {
			updates["is_group"] = *req.IsGroup
		}
		if len(updates) > 0 {
			if err := tx.Model(conversation).Updates(updates).Error; err != nil {
				return err
			}
		}

		if req.ParticipantIDs == nil {
			return nil
		}

		incoming := map[uint]struct{}{}
		for _, id := range req.ParticipantIDs {
			incoming[id] = struct{}{}
		}
		if len(incoming) == 0 {
			return ErrNoParticipants
		}

		existing := map[uint]struct{}{}
		for _, p := range conversation.Participants {
			existing[p.UserID] = struct{}{}
		}

		now := time.Now()
		for id := range incoming {
			if _, ok := existing[id]; ok {
				continue
			}
			participant := models.ConversationParticipant{
				ConversationID: conversationID,
				UserID:         id,
				Role:           models.RoleMember,
				JoinedAt:       now,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}

		var stale []uint
		for id := range existing {
			if _, ok := incoming[id]; !ok {
				stale = append(stale, id)
			}
		}
		if len(stale) > 0 {
			if err := tx.Where("conversation_id = ? AND user_id IN ?", conversationID, stale).
				Delete(&models.ConversationParticipant{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetConversation(conversationID, userID)
}

// DeleteConversation removes a conversation the user participates in
func (s *ChatService) DeleteConversation(conversationID, userID uint) error {
	conversation, err := s.GetConversation(conversationID, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).
			Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).
			Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(conversation).Error
	})
}

// ListMessages returns a page of the conversation's history in creation order
func (s *ChatService) ListMessages(conversationID, userID uint, limit, offset int) ([]models.Message, error) {
	if _, err := s.GetConversation(conversationID, userID); err != nil {
		return nil, err
	}

	var messages []models.Message
	query := s.db.Where("conversation_id = ?", conversationID).
		Preload("Sender").
		Order("created_at ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&messages).Error
	return messages, err
}

// CreateMessage stores a message and bumps the conversation's last activity
func (s *ChatService) CreateMessage(conversationID, senderID uint, req *models.CreateMessageRequest) (*models.Message, error) {
	ok, err := s.IsParticipant(conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	sender := senderID
	message := models.Message{
		ConversationID: conversationID,
		SenderID:       &sender,
		Body:           req.Body,
		AttachmentURL:  req.AttachmentURL,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", message.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	return s.getMessage(conversationID, message.ID)
}

// GetMessage returns a message from a conversation the user participates in
func (s *ChatService) GetMessage(conversationID, messageID, userID uint) (*models.Message, error) {
	if _, err := s.GetConversation(conversationID, userID); err != nil {
		return nil, err
	}
	return s.getMessage(conversationID, messageID)
}

// UpdateMessage edits a message. Only the sender may edit; changing the body
// marks the message edited.
func (s *ChatService) UpdateMessage(conversationID, messageID, userID uint, req *models.UpdateMessageRequest) (*models.Message, error) {
	message, err := s.GetMessage(conversationID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if message.SenderID == nil || *message.SenderID != userID {
		return nil, ErrNotSender
	}

	updates := map[string]any{}
	if req.Body != nil && *req.Body != message.Body {
		updates["body"] = *req.Body
		updates["edited"] = true
	}
	if req.AttachmentURL != nil {
		updates["attachment_url"] = *req.AttachmentURL
	}
	if len(updates) > 0 {
		if err := s.db.Model(message).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.getMessage(conversationID, messageID)
}

// DeleteMessage removes a message. Only the sender may delete.
func (s *ChatService) DeleteMessage(conversationID, messageID, userID uint) error {
	message, err := s.GetMessage(conversationID, messageID, userID)
	if err != nil {
		return err
	}
	if message.SenderID == nil || *message.SenderID != userID {
		return ErrNotSender
	}
	return s.db.Delete(message).Error
}

// Exists reports whether the conversation exists. Consumed by the relay at connect.
func (s *ChatService) Exists(conversationID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Count(&count).Error
	return count > 0, err
}

// IsParticipant reports whether the user is a current member of the
// conversation. Consumed by the relay at connect and per inbound payload.
func (s *ChatService) IsParticipant(conversationID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// TouchLastSeen records when the user last observed the conversation
func (s *ChatService) TouchLastSeen(conversationID, userID uint) error {
	now := time.Now()
	return s.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_seen_at", &now).Error
}

func (s *ChatService) getMessage(conversationID, messageID uint) (*models.Message, error) {
	var message models.Message
	err := s.db.Where("conversation_id = ?", conversationID).
		Preload("Sender").
		First(&message, messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}
