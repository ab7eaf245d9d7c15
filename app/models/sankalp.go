package models

import "time"

// Sankalp categories; button payloads carry these values.
const (
	CategoryFamily = "CAT_FAMILY"
	CategoryHealth = "CAT_HEALTH"
	CategoryCareer = "CAT_CAREER"
	CategoryPeace  = "CAT_PEACE"
)

var AllCategories = []string{CategoryFamily, CategoryHealth, CategoryCareer, CategoryPeace}

// Sankalp pricing tiers; button payloads carry these values.
const (
	TierS15 = "TIER_S15"
	TierS30 = "TIER_S30"
	TierS50 = "TIER_S50"
)

// TierAmountCents maps a tier token to its amount in minor currency units.
var TierAmountCents = map[string]int64{
	TierS15: 1500,
	TierS30: 3000,
	TierS50: 5000,
}

// Sankalp lifecycle.
const (
	SankalpInitiated      = "INITIATED"
	SankalpPaymentPending = "PAYMENT_PENDING"
	SankalpPaid           = "PAID"
	SankalpReceiptSent    = "RECEIPT_SENT"
	SankalpClosed         = "CLOSED"
	SankalpExpired        = "EXPIRED"
)

// Sankalp tracks a single donation intent from tier confirmation through
// payment and receipt. Amounts are integer minor units (cents).
type Sankalp struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Category      string    `gorm:"type:varchar(20);not null" json:"category"`
	Deity         string    `gorm:"type:varchar(30)" json:"deity"`
	AuspiciousDay string    `gorm:"type:varchar(10)" json:"auspicious_day"`
	Tier          string    `gorm:"type:varchar(20);not null" json:"tier"`
	AmountCents   int64     `gorm:"not null" json:"amount_cents"`
	Currency      string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Status        string    `gorm:"type:varchar(20);not null;default:'INITIATED';index" json:"status"`
	PaymentLinkID string    `gorm:"type:varchar(191);index" json:"payment_link_id"`
	ProviderRef   string    `gorm:"type:text" json:"provider_ref"` // opaque provider metadata (JSON)
	ReceiptURL    string    `gorm:"type:varchar(500)" json:"receipt_url"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the sankalp reached the paid path (PAID or later).
func (s *Sankalp) IsPaid() bool {
	switch s.Status {
	case SankalpPaid, SankalpReceiptSent, SankalpClosed:
		return true
	default:
		return false
	}
}

// IsValidCategory reports whether token is a recognized category payload.
func IsValidCategory(token string) bool {
	for _, c := range AllCategories {
		if c == token {
			return true
		}
	}
	return false
}

// IsValidTier reports whether token is a recognized tier payload.
func IsValidTier(token string) bool {
	_, ok := TierAmountCents[token]
	return ok
}
