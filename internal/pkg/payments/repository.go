package payments

import (
	"time"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the reconciliation engine.
// Atomically runs fn inside one transaction; every call made through the
// handle passed to fn shares that transaction.
type Repository interface {
	Atomically(fn func(tx Repository) error) error
	FindSankalpForEvent(event *WebhookEvent) (*models.Sankalp, error)
	PaymentExistsForEvent(providerEventID string) (bool, error)
	CreatePaymentIfNotExists(payment *models.Payment) (bool, error)
	CreateLedgerEntry(entry *models.SevaLedger) error
	SaveSankalp(s *models.Sankalp) error
	MarkUserPaymentConfirmed(userID uint, paidAt time.Time) error
	ResetUserAfterExpiry(userID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Atomically(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// FindSankalpForEvent resolves the sankalp a webhook event refers to, first
// by payment-link identifier, then by the UUID carried in the link notes.
func (r *gormRepository) FindSankalpForEvent(event *WebhookEvent) (*models.Sankalp, error) {
	var s models.Sankalp
	if event.PaymentLinkID != "" {
		err := r.db.Where("payment_link_id = ?", event.PaymentLinkID).First(&s).Error
		if err == nil {
			return &s, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	if event.SankalpUUID != "" {
		err := r.db.Where("uuid = ?", event.SankalpUUID).First(&s).Error
		if err == nil {
			return &s, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	return nil, ErrOrphanPayment
}

// PaymentExistsForEvent reports whether an event identifier has already been
// settled. Used as a cheap pre-check before opening the settlement
// transaction; the unique index remains the authoritative guard.
func (r *gormRepository) PaymentExistsForEvent(providerEventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Where("provider_event_id = ?", providerEventID).
		Count(&count).Error
	return count > 0, err
}

// CreatePaymentIfNotExists inserts a payment row unless one already exists
// for the same provider event identifier. The unique index absorbs the
// conflict; created=false signals an idempotent replay.
func (r *gormRepository) CreatePaymentIfNotExists(payment *models.Payment) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(payment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) CreateLedgerEntry(entry *models.SevaLedger) error {
	return r.db.Create(entry).Error
}

func (r *gormRepository) SaveSankalp(s *models.Sankalp) error {
	return r.db.Save(s).Error
}

// MarkUserPaymentConfirmed moves the user and their conversation into
// PAYMENT_CONFIRMED and stamps the settlement time. The version bump keeps
// the conversation's optimistic lock honest for concurrent inbound handlers.
func (r *gormRepository) MarkUserPaymentConfirmed(userID uint, paidAt time.Time) error {
	if err := r.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"state":           models.StatePaymentConfirmed,
			"last_sankalp_at": &paidAt,
		}).Error; err != nil {
		return err
	}
	return r.db.Model(&models.Conversation{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"state":   models.StatePaymentConfirmed,
			"version": gorm.Expr("version + 1"),
		}).Error
}

// ResetUserAfterExpiry returns the user to the passive daily loop with a
// cleared flow context after their payment link lapsed unpaid.
func (r *gormRepository) ResetUserAfterExpiry(userID uint) error {
	if err := r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("state", models.StateDailyPassive).Error; err != nil {
		return err
	}
	return r.db.Model(&models.Conversation{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"state":   models.StateDailyPassive,
			"context": "{}",
			"version": gorm.Expr("version + 1"),
		}).Error
}
