package repository

import (
	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
)

type sankalpRepository struct {
	db *gorm.DB
}

// NewSankalpRepository creates a new sankalp repository instance
func NewSankalpRepository(db *gorm.DB) SankalpRepository {
	return &sankalpRepository{db: db}
}

func (r *sankalpRepository) Create(s *models.Sankalp) error {
	return r.db.Create(s).Error
}

func (r *sankalpRepository) GetByID(id uint) (*models.Sankalp, error) {
	var s models.Sankalp
	err := r.db.First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sankalpRepository) GetByUUID(uuid string) (*models.Sankalp, error) {
	var s models.Sankalp
	err := r.db.Where("uuid = ?", uuid).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sankalpRepository) GetByPaymentLinkID(linkID string) (*models.Sankalp, error) {
	var s models.Sankalp
	err := r.db.Where("payment_link_id = ?", linkID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetPendingForUser returns the user's open PAYMENT_PENDING sankalp, if any.
// The state machine guarantees at most one exists.
func (r *sankalpRepository) GetPendingForUser(userID uint) (*models.Sankalp, error) {
	var s models.Sankalp
	err := r.db.Where("user_id = ? AND status = ?", userID, models.SankalpPaymentPending).
		Order("created_at DESC").First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sankalpRepository) Update(s *models.Sankalp) error {
	return r.db.Save(s).Error
}

// ListPaidForUser returns the most recent paid-path sankalps (seva history).
func (r *sankalpRepository) ListPaidForUser(userID uint, limit int) ([]models.Sankalp, error) {
	var list []models.Sankalp
	err := r.db.Where("user_id = ? AND status IN ?", userID, []string{
		models.SankalpPaid, models.SankalpReceiptSent, models.SankalpClosed,
	}).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
