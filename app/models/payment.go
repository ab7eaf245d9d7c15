package models

import "time"

// Payment is one row per successfully verified payment event. The unique
// index on ProviderEventID is the webhook idempotency guard: a redelivered
// event inserts nothing.
type Payment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SankalpID         uint      `gorm:"not null;index" json:"sankalp_id"`
	ProviderPaymentID string    `gorm:"type:varchar(191);not null" json:"provider_payment_id"`
	ProviderEventID   string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_provider_event" json:"provider_event_id"`
	SignatureVerified bool      `gorm:"not null;default:false" json:"signature_verified"`
	AmountCents       int64     `gorm:"not null" json:"amount_cents"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}
