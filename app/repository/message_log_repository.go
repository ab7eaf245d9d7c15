package repository

import (
	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
)

type messageLogRepository struct {
	db *gorm.DB
}

// NewMessageLogRepository creates a new message log repository instance
func NewMessageLogRepository(db *gorm.DB) MessageLogRepository {
	return &messageLogRepository{db: db}
}

func (r *messageLogRepository) Create(m *models.MessageLog) error {
	return r.db.Create(m).Error
}

func (r *messageLogRepository) ListForUser(userID uint, limit int) ([]models.MessageLog, error) {
	var list []models.MessageLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
