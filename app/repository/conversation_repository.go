package repository

import (
	"errors"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
)

// ErrStaleConversation is returned by Save when the optimistic version check
// fails because another handler updated the row first.
var ErrStaleConversation = errors.New("conversation was modified concurrently")

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository instance
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetByUserID(userID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.Where("user_id = ?", userID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetOrCreate(userID uint) (*models.Conversation, error) {
	conv, err := r.GetByUserID(userID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	conv = &models.Conversation{UserID: userID, State: models.StateNew}
	if err := r.db.Create(conv).Error; err != nil {
		if existing, readErr := r.GetByUserID(userID); readErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return conv, nil
}

// Save writes the conversation guarded by its version column. Two handlers
// racing on the same user cannot both win; the loser gets
// ErrStaleConversation and should re-read and re-run its transition.
func (r *conversationRepository) Save(conv *models.Conversation) error {
	currentVersion := conv.Version
	conv.Version++
	tx := r.db.Model(&models.Conversation{}).
		Where("id = ? AND version = ?", conv.ID, currentVersion).
		Updates(map[string]interface{}{
			"state":                conv.State,
			"context":              conv.Context,
			"last_inbound_msg_id":  conv.LastInboundMsgID,
			"last_outbound_msg_id": conv.LastOutboundMsgID,
			"version":              conv.Version,
		})
	if tx.Error != nil {
		conv.Version = currentVersion
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		conv.Version = currentVersion
		return ErrStaleConversation
	}
	return nil
}

// SeenInboundMessage reports whether messageID matches the last recorded
// inbound message for the user (redelivery of the most recent event).
func (r *conversationRepository) SeenInboundMessage(userID uint, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	conv, err := r.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return conv.LastInboundMsgID == messageID, nil
}
