package models

import "time"

// Message directions.
const (
	MessageInbound  = "inbound"
	MessageOutbound = "outbound"
)

// MessageLog is an audit row per chat message crossing the boundary.
type MessageLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Direction string    `gorm:"type:varchar(10);not null" json:"direction"`
	MessageID string    `gorm:"type:varchar(191);index" json:"message_id"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
