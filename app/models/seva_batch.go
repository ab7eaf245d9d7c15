package models

import "time"

// Batch transfer lifecycle.
const (
	BatchTransferPending     = "PENDING"
	BatchTransferTransferred = "TRANSFERRED"
)

// SevaBatch groups settled ledger entries for one external funds transfer.
type SevaBatch struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	BatchID              string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"batch_id"`
	PeriodStart          time.Time `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd            time.Time `gorm:"type:date;not null" json:"period_end"`
	TotalSevaAmountCents int64     `gorm:"not null" json:"total_seva_amount_cents"`
	TransferStatus       string    `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"transfer_status"`
	TransferReference    string    `gorm:"type:varchar(191)" json:"transfer_reference"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
