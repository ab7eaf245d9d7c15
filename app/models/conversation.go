package models

import "time"

// Conversation states. The machine in internal/pkg/fsm owns the transition
// rules; these constants are the persisted values.
const (
	StateNew                     = "NEW"
	StateWaitingForRashi         = "WAITING_FOR_RASHI"
	StateWaitingForNakshatra     = "WAITING_FOR_NAKSHATRA"
	StateWaitingForBirthTime     = "WAITING_FOR_BIRTH_TIME"
	StateWaitingForDeity         = "WAITING_FOR_DEITY"
	StateWaitingForAuspiciousDay = "WAITING_FOR_AUSPICIOUS_DAY"
	StateOnboarded               = "ONBOARDED"
	StateDailyPassive            = "DAILY_PASSIVE"
	StateWeeklyPromptSent        = "WEEKLY_PROMPT_SENT"
	StateWaitingForCategory      = "WAITING_FOR_CATEGORY"
	StateWaitingForTier          = "WAITING_FOR_TIER"
	StatePaymentLinkSent         = "PAYMENT_LINK_SENT"
	StatePaymentConfirmed        = "PAYMENT_CONFIRMED"
	StateReceiptSent             = "RECEIPT_SENT"
	StateCooldown                = "COOLDOWN"
)

// ConversationContext is the typed in-progress flow data. Exactly one of the
// embedded flows is active at a time; the zero value means no flow is open.
// It replaces an earlier untyped key/value blob that produced missing-key
// errors at runtime.
type ConversationContext struct {
	SelectedCategory string `json:"selected_category,omitempty"`
	SelectedTier     string `json:"selected_tier,omitempty"`
	PendingSankalpID string `json:"pending_sankalp_id,omitempty"`
}

// IsZero reports whether no donation flow is in progress.
func (c ConversationContext) IsZero() bool {
	return c == ConversationContext{}
}

// Conversation is the single mutable per-user conversation row: current
// state, typed flow context, and the last message identifiers used for
// inbound redelivery dedup. The Version column is bumped on every update so
// concurrent handlers for the same user serialize via optimistic locking.
type Conversation struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	UserID            uint                `gorm:"uniqueIndex;not null" json:"user_id"`
	State             string              `gorm:"type:varchar(40);not null;default:'NEW'" json:"state"`
	Context           ConversationContext `gorm:"serializer:json" json:"context"`
	LastInboundMsgID  string              `gorm:"type:varchar(191)" json:"last_inbound_msg_id"`
	LastOutboundMsgID string              `gorm:"type:varchar(191)" json:"last_outbound_msg_id"`
	Version           uint                `gorm:"not null;default:0" json:"version"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClearContext drops any in-progress flow data.
func (c *Conversation) ClearContext() {
	c.Context = ConversationContext{}
}
