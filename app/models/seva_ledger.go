package models

import "time"

// SevaLedger records the fee split for exactly one paid sankalp.
// PlatformFeeCents + SevaAmountCents always equals the sankalp amount.
// BatchID stays empty until batch settlement assigns the entry; membership
// is immutable after that.
type SevaLedger struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SankalpID        uint      `gorm:"uniqueIndex;not null" json:"sankalp_id"`
	PlatformFeeCents int64     `gorm:"not null" json:"platform_fee_cents"`
	SevaAmountCents  int64     `gorm:"not null" json:"seva_amount_cents"`
	BatchID          string    `gorm:"type:varchar(50);index" json:"batch_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
